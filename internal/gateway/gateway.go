// Package gateway authenticates realtime connections, mirrors session
// membership as rooms, and fans events out to room occupants. Durable
// session and participant state stays with the session coordinator; the
// gateway only keeps the connection-level view needed for delivery.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/gateway/bus"
	"github.com/TimyBen/cloud-file-management-system/internal/metrics"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/pkg/transport"
)

type Gateway struct {
	roster      *Roster
	coordinator *session.Coordinator
	bus         bus.Broadcaster
	logger      *slog.Logger
}

func New(coordinator *session.Coordinator, b bus.Broadcaster, logger *slog.Logger) *Gateway {
	g := &Gateway{
		roster:      NewRoster(logger),
		coordinator: coordinator,
		bus:         b,
		logger:      logger.With(slog.String("component", "gateway")),
	}
	b.Subscribe(g.deliver)
	return g
}

// Roster exposes the connection roster for the server's limiter and
// shutdown path.
func (g *Gateway) Roster() *Roster {
	return g.roster
}

// Register attaches an authenticated connection to the gateway.
func (g *Gateway) Register(conn *transport.Connection, actor domain.Actor) (*Client, error) {
	c, err := g.roster.Register(conn, actor)
	if err != nil {
		return nil, err
	}
	metrics.ActiveConnections.Inc()
	return c, nil
}

// deliver pushes a bus frame to every local occupant of the room except the
// excluded connection.
func (g *Gateway) deliver(room, exclude string, data []byte) {
	for _, c := range g.roster.RoomClients(room) {
		if exclude != "" && c.ID.String() == exclude {
			continue
		}
		c.Transport.Send(data)
	}
}

// HandleMessage routes one client frame. It runs on the connection's read
// pump, so one client's events are handled strictly in send order.
func (g *Gateway) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	c, ok := g.roster.Get(connID)
	if !ok {
		g.logger.Error("Message from unregistered connection", slog.String("connID", connID.String()))
		return
	}

	var frame ClientMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		c.Transport.Send(encodeError("malformed message"))
		return
	}

	switch frame.Event {
	case EventJoin:
		g.handleJoin(ctx, c, frame.Payload)
	case EventLeave:
		g.handleLeave(ctx, c, frame.Payload)
	case EventBroadcast:
		g.handleBroadcast(ctx, c, frame.Payload)
	default:
		c.Transport.Send(encodeError("unknown event '" + frame.Event + "'"))
	}
}

// handleJoin admits the connection to a session room. The durable join runs
// first: the coordinator checks the session is alive and the actor has at
// least read access to its file. Only then does the connection enter the
// room. The joiner gets a 'joined' ack; the rest of the room gets
// 'participant-connected' (the joiner is excluded, its ack is the signal).
func (g *Gateway) handleJoin(ctx context.Context, c *Client, payload json.RawMessage) {
	sessionID := gjson.GetBytes(payload, "sessionId").String()
	if sessionID == "" {
		c.Transport.Send(encodeError("join requires 'sessionId'"))
		return
	}
	displayName := gjson.GetBytes(payload, "displayName").String()
	if displayName == "" {
		displayName = c.Actor.Email
	}

	p, err := g.coordinator.Join(ctx, c.Actor, sessionID, displayName)
	if err != nil {
		c.Transport.Send(encodeError(joinErrorMessage(err)))
		return
	}

	if err := g.roster.Join(c.ID, sessionID); err != nil {
		c.Transport.Send(encodeError("join failed"))
		return
	}

	c.Transport.Send(encode(EventJoined, joinedPayload{
		SessionID:   sessionID,
		UserID:      c.Actor.ID,
		DisplayName: p.DisplayName,
	}))
	g.publish(ctx, sessionID, c.ID.String(), EventParticipantConnected, presencePayload{
		SessionID:   sessionID,
		UserID:      c.Actor.ID,
		DisplayName: p.DisplayName,
	})
}

// handleLeave removes the connection from a room it actually occupies. A
// leave for a room the connection never joined is rejected before any
// fan-out, so a client cannot forge presence events for other rooms.
func (g *Gateway) handleLeave(ctx context.Context, c *Client, payload json.RawMessage) {
	sessionID := gjson.GetBytes(payload, "sessionId").String()
	if sessionID == "" {
		c.Transport.Send(encodeError("leave requires 'sessionId'"))
		return
	}
	if !g.roster.InRoom(c.ID, sessionID) {
		c.Transport.Send(encodeError("not a member of session " + sessionID))
		return
	}

	if err := g.coordinator.Leave(ctx, c.Actor.ID, sessionID); err != nil {
		g.logger.Error("Durable leave failed",
			slog.String("sessionID", sessionID),
			slog.String("userID", c.Actor.ID),
			slog.Any("error", err),
		)
	}
	g.roster.Leave(c.ID, sessionID)

	c.Transport.Send(encode(EventLeft, presencePayload{SessionID: sessionID, UserID: c.Actor.ID}))
	g.publish(ctx, sessionID, c.ID.String(), EventParticipantDisconnected, presencePayload{
		SessionID: sessionID,
		UserID:    c.Actor.ID,
	})
}

// handleBroadcast relays an arbitrary event to the sender's room, tagged
// with the sender's identity. The only check is current room membership;
// the sender does not receive its own relay.
func (g *Gateway) handleBroadcast(ctx context.Context, c *Client, payload json.RawMessage) {
	sessionID := gjson.GetBytes(payload, "sessionId").String()
	event := gjson.GetBytes(payload, "event").String()
	if sessionID == "" || event == "" {
		c.Transport.Send(encodeError("broadcast requires 'sessionId' and 'event'"))
		return
	}
	if !g.roster.InRoom(c.ID, sessionID) {
		c.Transport.Send(encodeError("not a member of session " + sessionID))
		return
	}

	inner := gjson.GetBytes(payload, "payload")
	relayed := json.RawMessage(inner.Raw)
	if !inner.Exists() {
		relayed = json.RawMessage("null")
	}
	g.publish(ctx, sessionID, c.ID.String(), event, relayPayload{
		From:    c.Actor.ID,
		Payload: relayed,
	})
}

// HandleDisconnect runs when a connection closes for any reason, explicit
// leave or not. It clears room membership, deactivates the durable
// participant records, and tells each affected room.
func (g *Gateway) HandleDisconnect(connID uuid.UUID, cause error) {
	c, rooms := g.roster.Deregister(connID)
	if c == nil {
		return
	}
	metrics.ActiveConnections.Dec()

	// The connection's context is gone; cleanup gets its own.
	ctx := context.Background()
	for _, room := range rooms {
		if err := g.coordinator.Leave(ctx, c.Actor.ID, room); err != nil {
			g.logger.Error("Participant deactivation on disconnect failed",
				slog.String("sessionID", room),
				slog.String("userID", c.Actor.ID),
				slog.Any("error", err),
			)
		}
		g.publish(ctx, room, connID.String(), EventParticipantDisconnected, presencePayload{
			SessionID: room,
			UserID:    c.Actor.ID,
		})
	}
	g.logger.Info("Connection disconnected",
		slog.String("connID", connID.String()),
		slog.String("userID", c.Actor.ID),
		slog.Int("rooms", len(rooms)),
		slog.Any("cause", cause),
	)
}

func (g *Gateway) publish(ctx context.Context, room, excludeConn, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		g.logger.Error("Failed to marshal event payload", slog.String("event", event), slog.Any("error", err))
		return
	}
	data, err := json.Marshal(ServerMessage{Event: event, Payload: raw})
	if err != nil {
		g.logger.Error("Failed to marshal server message", slog.String("event", event), slog.Any("error", err))
		return
	}
	if err := g.bus.Publish(ctx, room, excludeConn, data); err != nil {
		g.logger.Error("Bus publish failed", slog.String("room", room), slog.Any("error", err))
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(event).Inc()
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, domain.ErrSessionEnded):
		return "session has ended"
	case errors.Is(err, session.ErrForbidden):
		return "access denied"
	}
	return "join failed"
}
