package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/app"
	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the wire frame in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Controller owns the websocket endpoint and dispatches envelopes to the
// core components.
type Controller struct {
	Registry   *app.Registry
	Identities *app.Identities
	Rooms      *app.Rooms
	Matcher    *app.Matcher
	Notifier   *app.Notifier

	ReadLimit  int64
	PingPeriod time.Duration
}

// client is the per-connection handling context threaded through handlers.
type client struct {
	id       app.ConnID
	identity *domain.Identity
	conn     *Conn
}

// HandleChat upgrades the request and runs the connection to completion.
// The "ct" cookie set by the token middleware is the reconnect secret.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	secret := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		wait := ctl.PingPeriod * 10 / 9
		_ = ws.SetReadDeadline(time.Now().Add(wait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wait))
		})
	}

	conn := newConn(ws, ctl.PingPeriod)
	identity := ctl.Identities.ResolveOrCreate(secret)
	cl := &client{
		id:       app.ConnID(uuid.NewString()),
		identity: identity,
		conn:     conn,
	}
	ctl.Registry.Register(cl.id, identity, conn)
	log.Info().Str("module", "ws").Str("conn", string(cl.id)).Str("identity", string(identity.ID)).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go conn.writePump(ctx)

	ctl.resume(cl)
	ctl.readPump(ctx, cl)
}

// resume re-seats a reconnecting identity in every room it still holds a
// seat in, then tells the client which rooms those are.
func (ctl *Controller) resume(cl *client) {
	roomIDs := ctl.Rooms.RoomsOf(cl.identity.ID)
	joined := make([]string, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if _, err := ctl.Rooms.Join(roomID, cl.identity.ID); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("room", string(roomID)).Msg("seat not resumed")
			continue
		}
		ctl.Registry.AttachRoom(cl.id, roomID)
		joined = append(joined, string(roomID))
	}
	ctl.sendEvent(cl.conn, EvMyRooms, joined)
}

func (ctl *Controller) readPump(ctx context.Context, cl *client) {
	defer func() {
		cl.conn.Close()
		ctl.disconnect(cl)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cl.conn.ws.ReadMessage()
			if err != nil {
				log.Info().Str("module", "ws").Str("conn", string(cl.id)).Msg("connection closed")
				return
			}
			ctl.dispatch(ctx, cl, data)
		}
	}
}

// disconnect tears the connection down. Each room is cleaned up
// independently; a failure on one never blocks the rest.
func (ctl *Controller) disconnect(cl *client) {
	snapshot := ctl.Registry.SnapshotRooms(cl.id)
	ctl.Registry.Unregister(cl.id)
	for _, roomID := range snapshot {
		ctl.Rooms.Suspend(roomID, cl.identity.ID)
	}
	log.Info().Str("module", "ws").Str("conn", string(cl.id)).Int("rooms", len(snapshot)).Msg("disconnected")
}

func (ctl *Controller) dispatch(ctx context.Context, cl *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad envelope")
		return
	}

	switch env.Event {
	case EvCreateRoom:
		ctl.handleCreateRoom(cl, env.Data)
	case EvJoinRoom:
		ctl.handleJoinRoom(cl, env.Data)
	case EvExitRoom:
		ctl.handleExitRoom(cl, env.Data)
	case EvListRooms:
		ctl.handleListRooms(cl)
	case EvViewRoom:
		ctl.handleViewRoom(cl, env.Data)
	case EvMyRooms:
		ctl.handleMyRooms(cl)
	case EvTyping:
		ctl.handleTyping(cl, env.Data, EvTyping)
	case EvStopTyping:
		ctl.handleTyping(cl, env.Data, EvStopTyping)
	case EvAddMessage:
		ctl.handleAddMessage(ctx, cl, env.Data)
	case EvAddReaction:
		ctl.handleAddReaction(ctx, cl, env.Data)
	case EvSetUserName:
		ctl.handleSetUserName(cl, env.Data)
	case EvReportUser:
		ctl.handleReportUser(cl, env.Data)
	case EvFindCounsellor:
		ctl.handleFindCounsellor(cl)
	case EvCounsellorOnline:
		ctl.handleCounsellorOnline(cl, env.Data)
	case EvListIssues:
		ctl.handleListIssues(cl, env.Data)
	case EvRegisterPush:
		ctl.handleRegisterPush(cl, env.Data)
	default:
		log.Warn().Str("module", "ws").Str("event", env.Event).Msg("unknown event")
	}
}

func (ctl *Controller) sendEvent(conn *Conn, event string, v any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: v})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal out envelope")
		return
	}
	if err := conn.TrySend(payload); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("event", event).Msg("send dropped")
	}
}

// sendError delivers exactly one error event to the requesting connection.
func (ctl *Controller) sendError(conn *Conn, appErr *errs.Error) {
	log.Warn().Str("module", "ws").Str("code", string(appErr.Code)).Str("message", appErr.Message).Msg(EvAppError)
	ctl.sendEvent(conn, EvAppError, appErr)
}

// fail maps any error to an app error event; unexpected errors are logged
// and swallowed so they never leak internals to the client.
func (ctl *Controller) fail(conn *Conn, err error) {
	if appErr, ok := errs.As(err); ok {
		ctl.sendError(conn, appErr)
		return
	}
	log.Error().Err(err).Str("module", "ws").Msg("internal error")
}

// sendTo targets a specific registered connection, e.g. the counsellor side
// of a match.
func (ctl *Controller) sendTo(conn *app.Conn, event string, v any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: v})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal out envelope")
		return
	}
	if err := conn.Sender.TrySend(payload); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID)).Str("event", event).Msg("send dropped")
	}
}

// EmitRoom implements app.RoomEmitter: join/exit/message events flow through
// here while the room lock is held, which keeps each room's delivery order
// aligned with its mutation order.
func (ctl *Controller) EmitRoom(ev app.RoomEvent) {
	var event string
	var payload any
	switch ev.Kind {
	case app.RoomEventJoined:
		event = EvJoinRoom
		payload = gin.H{"roomId": ev.RoomID, "userId": ev.ActorID}
	case app.RoomEventExited:
		event = EvExitRoom
		payload = gin.H{"roomId": ev.RoomID, "userId": ev.ActorID}
	case app.RoomEventMessage:
		event = EvAddMessage
		if ev.Message.Kind == domain.MessageReaction {
			event = EvAddReaction
		}
		payload = sentMessage{ev.Message, false}
	default:
		return
	}
	raw, err := json.Marshal(outEnvelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal room event")
		return
	}
	for _, conn := range ctl.Registry.LiveInRoom(ev.RoomID) {
		if conn.Identity.ID == ev.ActorID {
			continue
		}
		if err := conn.Sender.TrySend(raw); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID)).Msg("room event dropped")
		}
	}
}

// broadcast fans an event out to every live connection in the room except
// the sender.
func (ctl *Controller) broadcast(cl *client, roomID domain.RoomID, event string, v any) {
	payload, err := json.Marshal(outEnvelope{Event: event, Data: v})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal broadcast")
		return
	}
	for _, conn := range ctl.Registry.LiveInRoom(roomID) {
		if conn.ID == cl.id {
			continue
		}
		if err := conn.Sender.TrySend(payload); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("conn", string(conn.ID)).Msg("broadcast dropped")
		}
	}
}
