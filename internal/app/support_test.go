package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/push"
)

// fakeRecords is an in-memory persistence collaborator for core tests. The
// badger-backed implementation has its own tests in internal/store.
type fakeRecords struct {
	mu          sync.Mutex
	rooms       map[domain.RoomID]domain.Room
	messages    []domain.Message
	issues      []domain.Issue
	identities  []domain.Identity
	counsellors map[string]domain.Counsellor
	failWith    error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		rooms:       make(map[domain.RoomID]domain.Room),
		counsellors: make(map[string]domain.Counsellor),
	}
}

func (f *fakeRecords) SaveRoom(room domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeRecords) Rooms() ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecords) SaveMessage(msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeRecords) Messages(roomID domain.RoomID, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeRecords) SaveIssue(issue domain.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.issues = append(f.issues, issue)
	return nil
}

func (f *fakeRecords) Issues() ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Issue(nil), f.issues...), nil
}

func (f *fakeRecords) SaveIdentity(identity domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities = append(f.identities, identity)
	return nil
}

func (f *fakeRecords) SaveCounsellor(counsellor domain.Counsellor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counsellors[counsellor.ID] = counsellor
	return nil
}

func (f *fakeRecords) Counsellor(id string) (*domain.Counsellor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counsellors[id]; ok {
		return &c, nil
	}
	return nil, nil
}

// fakeGateway records push attempts instead of delivering.
type fakeGateway struct {
	mu    sync.Mutex
	sent  []string
	fails int
}

func (g *fakeGateway) Send(_ context.Context, token, _, _ string) push.Receipt {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fails > 0 {
		g.fails--
		return push.Receipt{Token: token, Err: errFake}
	}
	g.sent = append(g.sent, token)
	return push.Receipt{Token: token, OK: true}
}

var errFake = errors.New("gateway down")

// captureEmitter records room events in emission order.
type captureEmitter struct {
	mu     sync.Mutex
	events []RoomEvent
}

func (e *captureEmitter) EmitRoom(ev RoomEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *captureEmitter) snapshot() []RoomEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RoomEvent(nil), e.events...)
}

// nopSender discards frames, for connections whose traffic the test ignores.
type nopSender struct{}

func (nopSender) TrySend([]byte) error { return nil }

// fixture wires the core components around fakes with a controllable clock.
type fixture struct {
	records  *fakeRecords
	gateway  *fakeGateway
	registry *Registry
	notifier *Notifier
	rooms    *Rooms
	matcher  *Matcher
	clock    time.Time
}

func newFixture() *fixture {
	f := &fixture{
		records: newFakeRecords(),
		gateway: &fakeGateway{},
		clock:   time.Date(2020, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	collab := Collaborators{Action: FailLog}
	f.registry = NewRegistry()
	f.notifier = NewNotifier(f.registry, f.gateway, collab)
	f.rooms = NewRooms(f.registry, f.notifier, f.records, collab, 72*time.Hour, 100)
	f.rooms.now = func() time.Time { return f.clock }
	f.matcher = NewMatcher(f.registry, f.rooms, f.records, collab)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// connect registers a live connection for the identity.
func (f *fixture) connect(id string) (*domain.Identity, ConnID) {
	identity := &domain.Identity{ID: domain.IdentityID(id)}
	connID := ConnID("conn-" + id)
	f.registry.Register(connID, identity, nopSender{})
	return identity, connID
}
