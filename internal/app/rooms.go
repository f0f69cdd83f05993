package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
	"github.com/bubble-chat/server/internal/store"
	"github.com/bubble-chat/server/internal/validate"
)

// member tracks one identity's standing in a room. A disconnected member
// keeps its entry (so a reconnect can resume the seat) but stops counting
// against capacity.
type member struct {
	connected bool
}

// roomState guards one room. All mutations happen under mu, which makes the
// capacity check-and-increment atomic with respect to concurrent joins.
type roomState struct {
	mu       sync.Mutex
	room     domain.Room
	messages []domain.Message
	members  map[domain.IdentityID]*member
}

type RoomEventKind int

const (
	RoomEventJoined RoomEventKind = iota
	RoomEventExited
	RoomEventMessage
)

// RoomEvent is one entry in a room's causal event stream.
type RoomEvent struct {
	RoomID  domain.RoomID
	ActorID domain.IdentityID
	Kind    RoomEventKind
	Message *domain.Message
}

// RoomEmitter fans a room event out to the transport. Events are emitted
// while the room lock is held, so per-room delivery order matches mutation
// order. Implementations must not call back into Rooms.
type RoomEmitter interface {
	EmitRoom(ev RoomEvent)
}

// RoomView is the snapshot handed to clients on join/view: room data, capped
// message history oldest-first, and the live participant list.
type RoomView struct {
	domain.Room
	Messages     []domain.Message `json:"messages"`
	Participants []string         `json:"participants"`
}

// CreateParams is the payload for creating a public room.
type CreateParams struct {
	Name        string
	Capacity    int
	Description string
	Categories  []string
}

// Rooms is the authoritative room store. It owns room and message lifetimes;
// nothing mutates a room except through it.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState

	registry *Registry
	notifier *Notifier
	records  store.Records
	collab   Collaborators
	emitter  RoomEmitter

	staleWindow time.Duration
	messageCap  int
	now         func() time.Time
}

func NewRooms(registry *Registry, notifier *Notifier, records store.Records, collab Collaborators, staleWindow time.Duration, messageCap int) *Rooms {
	return &Rooms{
		rooms:       make(map[domain.RoomID]*roomState),
		registry:    registry,
		notifier:    notifier,
		records:     records,
		collab:      collab,
		staleWindow: staleWindow,
		messageCap:  messageCap,
		now:         time.Now,
	}
}

// SetEmitter binds the transport fan-out. Set once during wiring, before any
// connection is served.
func (rs *Rooms) SetEmitter(e RoomEmitter) { rs.emitter = e }

// emitLocked hands an event to the transport. Caller holds state.mu.
func (rs *Rooms) emitLocked(ev RoomEvent) {
	if rs.emitter != nil {
		rs.emitter.EmitRoom(ev)
	}
}

// Restore warm-starts the store from persisted records. Seats are not
// restorable (connections are gone), so every room comes back empty and
// hidden from listings until someone joins again.
func (rs *Rooms) Restore(saved []domain.Room, records store.Records) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, room := range saved {
		room.NumUsers = 0
		messages, err := records.Messages(room.ID, rs.messageCap)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", string(room.ID)).Msg("history not restored")
		}
		rs.rooms[room.ID] = &roomState{
			room:     room,
			messages: messages,
			members:  make(map[domain.IdentityID]*member),
		}
	}
	log.Info().Str("module", "app.rooms").Int("rooms", len(saved)).Msg("restored rooms")
}

// Create makes a public room with the creator as its first member.
func (rs *Rooms) Create(creator domain.IdentityID, params CreateParams) (*RoomView, error) {
	if params.Name == "" {
		return nil, errs.New(errs.NoRoomName, "Room name is not specified.")
	}
	if !validate.UserLimit(params.Capacity) {
		return nil, errs.New(errs.InvalidUserLimit, "User limit must be between 2 and 100.")
	}
	if !validate.Categories(params.Categories) {
		return nil, errs.New(errs.InvalidCategories, "Invalid categories.")
	}
	return rs.create(creator, domain.Room{
		ID:          domain.RoomID(uuid.NewString()),
		Name:        params.Name,
		Kind:        domain.RoomPublic,
		Capacity:    params.Capacity,
		Description: params.Description,
		Categories:  params.Categories,
	}), nil
}

// CreatePrivate makes a capacity-2 private room for a counsellor match and
// seats both parties. Skips the public-room field checks.
func (rs *Rooms) CreatePrivate(name string, user, counsellor domain.IdentityID) *RoomView {
	view := rs.create(user, domain.Room{
		ID:         domain.RoomID(uuid.NewString()),
		Name:       name,
		Kind:       domain.RoomPrivate,
		Capacity:   2,
		Categories: []string{},
	})
	joined, err := rs.Join(view.ID, counsellor)
	if err != nil {
		// Capacity 2 with one seat taken cannot reject; log and fall through.
		log.Error().Err(err).Str("module", "app.rooms").Str("room", string(view.ID)).Msg("counsellor seat rejected")
		return view
	}
	return joined
}

func (rs *Rooms) create(creator domain.IdentityID, room domain.Room) *RoomView {
	room.CreatedBy = creator
	room.IsOpen = true
	room.LastActive = rs.now()
	room.NumUsers = 1

	state := &roomState{
		room:    room,
		members: map[domain.IdentityID]*member{creator: {connected: true}},
	}
	rs.mu.Lock()
	rs.rooms[room.ID] = state
	rs.mu.Unlock()

	rs.notifier.Subscribe(room.ID, creator)
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(room)
	})
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("creator", string(creator)).Msg("room created")
	return rs.viewLocked(state)
}

// Join seats an identity in a room. Re-joining while already seated is an
// idempotent re-delivery of the current snapshot. A member re-joining after a
// disconnect resumes its seat, re-checking capacity.
func (rs *Rooms) Join(roomID domain.RoomID, id domain.IdentityID) (*RoomView, error) {
	state, ok := rs.get(roomID)
	if !ok {
		return nil, errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.room.IsOpen {
		return nil, errs.New(errs.RoomClosed, "Room "+string(roomID)+" is closed.")
	}

	if m, seated := state.members[id]; seated {
		if m.connected {
			return rs.viewLocked(state), nil
		}
		if state.room.NumUsers+1 > state.room.Capacity {
			return nil, errs.New(errs.RoomFull, "Room "+string(roomID)+" is at user limit.")
		}
		m.connected = true
		state.room.NumUsers++
	} else {
		if state.room.NumUsers+1 > state.room.Capacity {
			return nil, errs.New(errs.RoomFull, "Room "+string(roomID)+" is at user limit.")
		}
		state.members[id] = &member{connected: true}
		state.room.NumUsers++
	}
	state.room.LastActive = rs.now()
	rs.emitLocked(RoomEvent{RoomID: roomID, ActorID: id, Kind: RoomEventJoined})

	rs.notifier.Subscribe(roomID, id)
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("identity", string(id)).Msg("joined room")
	return rs.viewLocked(state), nil
}

// Exit removes the identity's seat entirely.
func (rs *Rooms) Exit(roomID domain.RoomID, id domain.IdentityID) (*domain.Room, error) {
	state, ok := rs.get(roomID)
	if !ok {
		return nil, errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	m, seated := state.members[id]
	if !seated {
		return nil, errs.New(errs.UserNotInRoom, "User is not in room "+string(roomID)+".")
	}
	delete(state.members, id)
	if m.connected && state.room.NumUsers > 0 {
		state.room.NumUsers--
	}
	rs.emitLocked(RoomEvent{RoomID: roomID, ActorID: id, Kind: RoomEventExited})

	rs.notifier.Unsubscribe(roomID, id)
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("identity", string(id)).Msg("exited room")
	snapshot := state.room
	return &snapshot, nil
}

// Suspend marks a seat disconnected without giving it up. Called once per
// room on disconnect; each call is independent so one failure cannot block
// cleanup of the other rooms.
func (rs *Rooms) Suspend(roomID domain.RoomID, id domain.IdentityID) bool {
	state, ok := rs.get(roomID)
	if !ok {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	m, seated := state.members[id]
	if !seated || !m.connected {
		return false
	}
	m.connected = false
	if state.room.NumUsers > 0 {
		state.room.NumUsers--
	}
	rs.emitLocked(RoomEvent{RoomID: roomID, ActorID: id, Kind: RoomEventExited})
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	return true
}

// AddMessage appends a message or reaction to the room log. Content checks
// belong to the caller; membership is enforced here.
func (rs *Rooms) AddMessage(roomID domain.RoomID, author domain.IdentityID, kind domain.MessageKind, content string, target domain.IdentityID) (*domain.Message, error) {
	state, ok := rs.get(roomID)
	if !ok {
		return nil, errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, seated := state.members[author]; !seated {
		return nil, errs.New(errs.UserNotInRoom, "User is not in room "+string(roomID)+".")
	}

	msg := domain.NewMessage(roomID, author, kind, content, target)
	state.messages = append(state.messages, msg)
	state.room.LastActive = rs.now()
	rs.emitLocked(RoomEvent{RoomID: roomID, ActorID: author, Kind: RoomEventMessage, Message: &msg})

	_ = rs.collab.Run("save message", func() error {
		return rs.records.SaveMessage(msg)
	})
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	return &msg, nil
}

// List returns the lobby listing: hot rooms first, then public rooms active
// within the staleness window, least recently active first within each tier.
// Private and empty rooms never appear.
func (rs *Rooms) List() []domain.Room {
	cutoff := rs.now().Add(-rs.staleWindow)

	rs.mu.RLock()
	states := lo.Values(rs.rooms)
	rs.mu.RUnlock()

	var out []domain.Room
	for _, state := range states {
		state.mu.Lock()
		room := state.room
		state.mu.Unlock()
		if room.Kind == domain.RoomPrivate || room.NumUsers <= 0 {
			continue
		}
		if room.Kind != domain.RoomHot && room.LastActive.Before(cutoff) {
			continue
		}
		out = append(out, room)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if wi, wj := out[i].Kind.Weight(), out[j].Kind.Weight(); wi != wj {
			return wi < wj
		}
		return out[i].LastActive.Before(out[j].LastActive)
	})
	return out
}

// View returns a read-only snapshot with capped history and live participants.
func (rs *Rooms) View(roomID domain.RoomID) (*RoomView, error) {
	state, ok := rs.get(roomID)
	if !ok {
		return nil, errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return rs.viewLocked(state), nil
}

// Close rejects all future joins regardless of capacity. Rooms are never
// hard-deleted; closed and stale rooms just fall out of listings.
func (rs *Rooms) Close(roomID domain.RoomID) error {
	state, ok := rs.get(roomID)
	if !ok {
		return errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.room.IsOpen = false
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	return nil
}

// Promote marks a room hot: it sorts first in listings and is exempt from
// the staleness filter. Administrative, no inverse operation.
func (rs *Rooms) Promote(roomID domain.RoomID) error {
	state, ok := rs.get(roomID)
	if !ok {
		return errs.New(errs.RoomIDNotFound, "Room "+string(roomID)+" cannot be found.")
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.room.Kind = domain.RoomHot
	_ = rs.collab.Run("save room", func() error {
		return rs.records.SaveRoom(state.room)
	})
	return nil
}

// RoomsOf returns every room holding a seat for the identity, connected or
// not. This is what re-derives membership on reconnect.
func (rs *Rooms) RoomsOf(id domain.IdentityID) []domain.RoomID {
	rs.mu.RLock()
	states := lo.Values(rs.rooms)
	rs.mu.RUnlock()

	var out []domain.RoomID
	for _, state := range states {
		state.mu.Lock()
		if _, seated := state.members[id]; seated {
			out = append(out, state.room.ID)
		}
		state.mu.Unlock()
	}
	return out
}

// IsMember reports whether the identity holds a seat in the room.
func (rs *Rooms) IsMember(roomID domain.RoomID, id domain.IdentityID) bool {
	state, ok := rs.get(roomID)
	if !ok {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	_, seated := state.members[id]
	return seated
}

func (rs *Rooms) get(roomID domain.RoomID) (*roomState, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	state, ok := rs.rooms[roomID]
	return state, ok
}

// viewLocked builds the client snapshot. Caller holds state.mu. The
// participant list comes from the connection registry, not stored state.
func (rs *Rooms) viewLocked(state *roomState) *RoomView {
	messages := state.messages
	if rs.messageCap > 0 && len(messages) > rs.messageCap {
		messages = messages[len(messages)-rs.messageCap:]
	}
	history := make([]domain.Message, len(messages))
	copy(history, messages)

	participants := make([]string, 0, len(state.members))
	for id := range state.members {
		if rs.registry.IsLive(id) {
			participants = append(participants, string(id))
		}
	}
	sort.Strings(participants)

	return &RoomView{
		Room:         state.room,
		Messages:     history,
		Participants: participants,
	}
}
