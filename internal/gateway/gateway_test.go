package gateway_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/gateway"
	"github.com/TimyBen/cloud-file-management-system/internal/gateway/bus"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
	"github.com/TimyBen/cloud-file-management-system/internal/store/memstore"
)

// busSpy records every frame published through the bus. Subscribing it after
// gateway.New detaches local delivery, which these tests don't need.
type busSpy struct {
	mu     sync.Mutex
	frames []spyFrame
}

type spyFrame struct {
	Room    string
	Exclude string
	Event   string
	Payload json.RawMessage
}

func (s *busSpy) record(room, exclude string, data []byte) {
	var msg gateway.ServerMessage
	_ = json.Unmarshal(data, &msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, spyFrame{Room: room, Exclude: exclude, Event: msg.Event, Payload: msg.Payload})
}

func (s *busSpy) byEvent(event string) []spyFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []spyFrame
	for _, f := range s.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	gateway     *gateway.Gateway
	coordinator *session.Coordinator
	store       *memstore.Store
	spy         *busSpy
}

// newGatewayFixture builds a gateway over the in-memory store with one file
// owned by "owner", a read share to "alice", and an active session.
func newGatewayFixture(t *testing.T) (*fixture, domain.Session) {
	t.Helper()
	logger := newTestLogger()
	store := memstore.New(logger)
	store.PutFile(domain.File{ID: "file-1", OwnerID: "owner"})

	resolver := authz.NewResolver(store, store, logger)
	registry := share.NewRegistry(store, store, logger)
	coordinator := session.NewCoordinator(resolver, store, logger)

	ctx := context.Background()
	ownerActor := domain.Actor{ID: "owner", Role: domain.GlobalRoleUser}
	if _, err := registry.Share(ctx, "file-1", "owner", "alice", domain.PermissionRead); err != nil {
		t.Fatalf("seeding share: %v", err)
	}
	sess, err := coordinator.Start(ctx, ownerActor, "file-1")
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}

	b := bus.NewLocal()
	gw := gateway.New(coordinator, b, logger)
	spy := &busSpy{}
	b.Subscribe(spy.record)

	return &fixture{gateway: gw, coordinator: coordinator, store: store, spy: spy}, sess
}

func (f *fixture) connect(t *testing.T, a domain.Actor) *gateway.Client {
	t.Helper()
	c, err := f.gateway.Register(newTransportConn(), a)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return c
}

func join(sessionID string) []byte {
	return []byte(`{"event":"join","payload":{"sessionId":"` + sessionID + `","displayName":"Tester"}}`)
}

func TestJoinAdmitsAndAnnounces(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()
	c := f.connect(t, actor("alice"))

	f.gateway.HandleMessage(ctx, c.ID, join(sess.ID))

	if !f.gateway.Roster().InRoom(c.ID, sess.ID) {
		t.Fatal("connection not in room after join")
	}

	// durable participant record exists
	participants, err := f.coordinator.ListParticipants(ctx, domain.Actor{ID: "owner", Role: domain.GlobalRoleUser}, sess.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 1 || participants[0].UserID != "alice" {
		t.Fatalf("unexpected roster: %+v", participants)
	}

	// the room heard about it, with the joiner excluded
	frames := f.spy.byEvent(gateway.EventParticipantConnected)
	if len(frames) != 1 {
		t.Fatalf("participant-connected frames = %d, want 1", len(frames))
	}
	if frames[0].Room != sess.ID || frames[0].Exclude != c.ID.String() {
		t.Errorf("unexpected frame: %+v", frames[0])
	}
}

func TestJoinDeniedForStranger(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()
	c := f.connect(t, actor("mallory"))

	f.gateway.HandleMessage(ctx, c.ID, join(sess.ID))

	if f.gateway.Roster().InRoom(c.ID, sess.ID) {
		t.Fatal("stranger admitted to room")
	}
	if frames := f.spy.byEvent(gateway.EventParticipantConnected); len(frames) != 0 {
		t.Errorf("denied join still announced: %+v", frames)
	}
}

func TestBroadcastRequiresMembership(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()

	member := f.connect(t, actor("alice"))
	outsider := f.connect(t, actor("owner"))
	f.gateway.HandleMessage(ctx, member.ID, join(sess.ID))

	msg := []byte(`{"event":"broadcast","payload":{"sessionId":"` + sess.ID + `","event":"cursor-moved","payload":{"x":3}}}`)

	// outsider never joined the room, so nothing is relayed
	f.gateway.HandleMessage(ctx, outsider.ID, msg)
	if frames := f.spy.byEvent("cursor-moved"); len(frames) != 0 {
		t.Fatalf("non-member broadcast relayed: %+v", frames)
	}

	f.gateway.HandleMessage(ctx, member.ID, msg)
	frames := f.spy.byEvent("cursor-moved")
	if len(frames) != 1 {
		t.Fatalf("cursor-moved frames = %d, want 1", len(frames))
	}
	if frames[0].Exclude != member.ID.String() {
		t.Errorf("sender not excluded from its own relay: %+v", frames[0])
	}

	var relay struct {
		From    string          `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frames[0].Payload, &relay); err != nil {
		t.Fatalf("decoding relay payload: %v", err)
	}
	if relay.From != "alice" {
		t.Errorf("relay.From = %q, want alice", relay.From)
	}
	if string(relay.Payload) != `{"x":3}` {
		t.Errorf("relay.Payload = %s", relay.Payload)
	}
}

func TestDisconnectLeavesRoomsAndDeactivates(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()
	c := f.connect(t, actor("alice"))
	f.gateway.HandleMessage(ctx, c.ID, join(sess.ID))

	// abrupt disconnect: no explicit leave frame
	f.gateway.HandleDisconnect(c.ID, nil)

	if _, found := f.gateway.Roster().Get(c.ID); found {
		t.Error("connection still registered after disconnect")
	}

	frames := f.spy.byEvent(gateway.EventParticipantDisconnected)
	if len(frames) != 1 || frames[0].Room != sess.ID {
		t.Fatalf("participant-disconnected frames = %+v", frames)
	}

	// the durable participant record was deactivated too
	participants, err := f.coordinator.ListParticipants(ctx, domain.Actor{ID: "owner", Role: domain.GlobalRoleUser}, sess.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(participants) != 0 {
		t.Errorf("participants still active after disconnect: %+v", participants)
	}
}

func TestLeaveEventRemovesMembership(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()
	c := f.connect(t, actor("alice"))
	f.gateway.HandleMessage(ctx, c.ID, join(sess.ID))

	f.gateway.HandleMessage(ctx, c.ID, []byte(`{"event":"leave","payload":{"sessionId":"`+sess.ID+`"}}`))

	if f.gateway.Roster().InRoom(c.ID, sess.ID) {
		t.Fatal("still in room after leave")
	}
	if frames := f.spy.byEvent(gateway.EventParticipantDisconnected); len(frames) != 1 {
		t.Errorf("participant-disconnected frames = %d, want 1", len(frames))
	}
}

func TestLeaveRequiresMembership(t *testing.T) {
	f, sess := newGatewayFixture(t)
	ctx := context.Background()

	member := f.connect(t, actor("alice"))
	f.gateway.HandleMessage(ctx, member.ID, join(sess.ID))

	// mallory is authenticated but never joined the room; her leave frame
	// must not fan anything out.
	outsider := f.connect(t, actor("mallory"))
	f.gateway.HandleMessage(ctx, outsider.ID, []byte(`{"event":"leave","payload":{"sessionId":"`+sess.ID+`"}}`))

	if frames := f.spy.byEvent(gateway.EventParticipantDisconnected); len(frames) != 0 {
		t.Fatalf("non-member leave published into the room: %+v", frames)
	}

	// a real member's leave still fans out exactly once
	f.gateway.HandleMessage(ctx, member.ID, []byte(`{"event":"leave","payload":{"sessionId":"`+sess.ID+`"}}`))
	if frames := f.spy.byEvent(gateway.EventParticipantDisconnected); len(frames) != 1 {
		t.Errorf("participant-disconnected frames = %d, want 1", len(frames))
	}
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	f, _ := newGatewayFixture(t)
	ctx := context.Background()
	c := f.connect(t, actor("alice"))

	// none of these may publish anything or panic
	f.gateway.HandleMessage(ctx, c.ID, []byte(`not json`))
	f.gateway.HandleMessage(ctx, c.ID, []byte(`{"event":"warp","payload":{}}`))
	f.gateway.HandleMessage(ctx, c.ID, []byte(`{"event":"join","payload":{}}`))

	f.spy.mu.Lock()
	defer f.spy.mu.Unlock()
	if len(f.spy.frames) != 0 {
		t.Errorf("malformed frames caused publishes: %+v", f.spy.frames)
	}
}
