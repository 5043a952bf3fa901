package gateway

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/pkg/transport"
)

// Client is one authenticated realtime connection and the rooms it has
// joined. Room membership here mirrors durable session membership for
// fan-out; the session coordinator remains the source of truth.
type Client struct {
	ID          uuid.UUID
	Actor       domain.Actor
	Transport   *transport.Connection
	Rooms       map[string]struct{}
	ConnectedAt time.Time
}

// Roster tracks connection -> identity and room -> connections mappings for
// a single process. All methods are safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[string]map[uuid.UUID]*Client

	logger *slog.Logger
}

func NewRoster(logger *slog.Logger) *Roster {
	return &Roster{
		clients: make(map[uuid.UUID]*Client),
		rooms:   make(map[string]map[uuid.UUID]*Client),
		logger:  logger.With(slog.String("component", "roster")),
	}
}

// Register records a freshly authenticated connection.
func (r *Roster) Register(conn *transport.Connection, actor domain.Actor) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	if _, exists := r.clients[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	c := &Client{
		ID:          connID,
		Actor:       actor,
		Transport:   conn,
		Rooms:       make(map[string]struct{}),
		ConnectedAt: time.Now(),
	}
	r.clients[connID] = c
	r.logger.Debug("Client registered", slog.String("connID", connID.String()), slog.String("userID", actor.ID))
	return c, nil
}

// Deregister removes a connection from the roster and every room it was in,
// returning the client and the rooms it occupied so the caller can emit
// disconnect events and deactivate durable participants.
func (r *Roster) Deregister(connID uuid.UUID) (*Client, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return nil, nil
	}
	delete(r.clients, connID)

	rooms := make([]string, 0, len(c.Rooms))
	for room := range c.Rooms {
		rooms = append(rooms, room)
		r.removeFromRoom(connID, room)
	}
	r.logger.Debug("Client deregistered", slog.String("connID", connID.String()))
	return c, rooms
}

// Get returns the client for a connection id.
func (r *Roster) Get(connID uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Join adds the connection to a room. Joining a room twice is a no-op.
func (r *Roster) Join(connID uuid.UUID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return errors.New("cannot join room: connection not registered")
	}

	members, exists := r.rooms[room]
	if !exists {
		members = make(map[uuid.UUID]*Client)
		r.rooms[room] = members
	}
	members[connID] = c
	c.Rooms[room] = struct{}{}

	r.logger.Debug("Client joined room", slog.String("connID", connID.String()), slog.String("room", room))
	return nil
}

// Leave removes the connection from a room. Leaving a room the connection
// is not in is a no-op.
func (r *Roster) Leave(connID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return
	}
	delete(c.Rooms, room)
	r.removeFromRoom(connID, room)
	r.logger.Debug("Client left room", slog.String("connID", connID.String()), slog.String("room", room))
}

// removeFromRoom must be called with the write lock held. Empty rooms are
// dropped for memory hygiene.
func (r *Roster) removeFromRoom(connID uuid.UUID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// InRoom reports whether the connection currently occupies the room.
func (r *Roster) InRoom(connID uuid.UUID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	if !ok {
		return false
	}
	_, in := c.Rooms[room]
	return in
}

// RoomClients returns the room's current occupants.
func (r *Roster) RoomClients(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// CountForUser returns how many connections a user currently holds.
func (r *Roster) CountForUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, c := range r.clients {
		if c.Actor.ID == userID {
			n++
		}
	}
	return n
}

// OldestForUser returns the user's longest-lived connection, used by the
// connection limiter's cycle mode.
func (r *Roster) OldestForUser(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *Client
	for _, c := range r.clients {
		if c.Actor.ID != userID {
			continue
		}
		if oldest == nil || c.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = c
		}
	}
	return oldest, oldest != nil
}

// AllClients snapshots every registered client, used during shutdown.
func (r *Roster) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
