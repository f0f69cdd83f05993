package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/domain"
)

// ConnID identifies one live transport connection. Assigned by the adapter.
type ConnID string

// Sender is the transport endpoint of a connection. Owned by the adapter;
// the registry never closes it.
type Sender interface {
	TrySend(payload []byte) error
}

// Conn binds a live connection to its identity, role and room fan-out set.
type Conn struct {
	ID         ConnID
	Identity   *domain.Identity
	Counsellor *domain.Counsellor
	Sender     Sender

	rooms map[domain.RoomID]struct{}
}

// Registry tracks live connections. It is the sole mutator of connection
// state; other components read through its query methods. Operations on an
// unknown ConnID are no-ops so a disconnect race cannot corrupt anything.
type Registry struct {
	mu         sync.RWMutex
	conns      map[ConnID]*Conn
	byIdentity map[domain.IdentityID]ConnID
	order      []ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns:      make(map[ConnID]*Conn),
		byIdentity: make(map[domain.IdentityID]ConnID),
	}
}

func (r *Registry) Register(id ConnID, identity *domain.Identity, sender Sender) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn := &Conn{
		ID:       id,
		Identity: identity,
		Sender:   sender,
		rooms:    make(map[domain.RoomID]struct{}),
	}
	r.conns[id] = conn
	r.byIdentity[identity.ID] = id
	r.order = append(r.order, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("identity", string(identity.ID)).Msg("registered connection")
	return conn
}

// AttachRoom adds roomID to the connection's fan-out set. Idempotent.
func (r *Registry) AttachRoom(id ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.rooms[roomID] = struct{}{}
	}
}

// DetachRoom removes roomID from the connection's fan-out set. Idempotent.
func (r *Registry) DetachRoom(id ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		delete(conn.rooms, roomID)
	}
}

// SetCounsellor promotes the connection to the counsellor role. Counsellor
// availability is derived solely from live connections carrying a profile.
func (r *Registry) SetCounsellor(id ConnID, profile domain.Counsellor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[id]; ok {
		conn.Counsellor = &profile
		log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("counsellor", profile.ID).Msg("counsellor online")
	}
}

// SnapshotRooms captures the fan-out set before teardown.
func (r *Registry) SnapshotRooms(id ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(conn.rooms))
	for roomID := range conn.rooms {
		out = append(out, roomID)
	}
	return out
}

// Unregister removes the connection. Room membership cleanup is the caller's
// job, one room at a time from the pre-teardown snapshot.
func (r *Registry) Unregister(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return
	}
	if current, live := r.byIdentity[conn.Identity.ID]; live && current == id {
		delete(r.byIdentity, conn.Identity.ID)
	}
	delete(r.conns, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unregistered connection")
}

func (r *Registry) Conn(id ConnID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// IsLive reports whether the identity has a live connection right now.
func (r *Registry) IsLive(id domain.IdentityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byIdentity[id]
	return ok
}

// ConnOf returns the live connection of an identity, if any.
func (r *Registry) ConnOf(id domain.IdentityID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.byIdentity[id]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[cid]
	return conn, ok
}

// Counsellors returns live counsellor connections in registration order.
// First one wins a match; no load balancing.
func (r *Registry) Counsellors() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Conn
	for _, cid := range r.order {
		if conn, ok := r.conns[cid]; ok && conn.Counsellor != nil {
			out = append(out, conn)
		}
	}
	return out
}

// LiveInRoom returns the live connections whose fan-out set contains roomID.
func (r *Registry) LiveInRoom(roomID domain.RoomID) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Conn
	for _, conn := range r.conns {
		if _, ok := conn.rooms[roomID]; ok {
			out = append(out, conn)
		}
	}
	return out
}
