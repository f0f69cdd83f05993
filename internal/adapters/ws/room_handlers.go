package ws

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bubble-chat/server/internal/app"
	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
	"github.com/bubble-chat/server/internal/validate"
)

type roomRef struct {
	RoomID string `json:"roomId"`
}

// resolveRoomID runs the shared roomId checks every room-scoped event needs.
func (ctl *Controller) resolveRoomID(cl *client, data json.RawMessage) (domain.RoomID, bool) {
	var ref roomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.RoomID == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoRoomID, "Room id not specified."))
		return "", false
	}
	if !validate.RoomID(ref.RoomID) {
		ctl.sendError(cl.conn, errs.New(errs.InvalidRoomID, "Invalid room id."))
		return "", false
	}
	return domain.RoomID(ref.RoomID), true
}

type createRoomPayload struct {
	RoomName        string   `json:"roomName"`
	UserLimit       *int     `json:"userLimit"`
	RoomDescription string   `json:"roomDescription"`
	Categories      []string `json:"categories"`
}

func (ctl *Controller) handleCreateRoom(cl *client, data json.RawMessage) {
	var payload createRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ctl.sendError(cl.conn, errs.New(errs.NoRoomName, "Room name is not specified."))
		return
	}
	capacity := 21
	if payload.UserLimit != nil {
		capacity = *payload.UserLimit
	}

	view, err := ctl.Rooms.Create(cl.identity.ID, app.CreateParams{
		Name:        payload.RoomName,
		Capacity:    capacity,
		Description: payload.RoomDescription,
		Categories:  payload.Categories,
	})
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.Registry.AttachRoom(cl.id, view.ID)
	log.Info().Str("module", "ws").Str("conn", string(cl.id)).Str("room", string(view.ID)).Msg(EvCreateRoom)
	ctl.sendEvent(cl.conn, EvCreateRoom, view)
}

func (ctl *Controller) handleJoinRoom(cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	view, err := ctl.Rooms.Join(roomID, cl.identity.ID)
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.Registry.AttachRoom(cl.id, roomID)
	ctl.sendEvent(cl.conn, EvJoinRoom, struct {
		*app.RoomView
		UserID domain.IdentityID `json:"userId"`
	}{view, cl.identity.ID})
}

func (ctl *Controller) handleExitRoom(cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	if _, err := ctl.Rooms.Exit(roomID, cl.identity.ID); err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.Registry.DetachRoom(cl.id, roomID)
	ctl.sendEvent(cl.conn, EvExitRoom, gin.H{
		"roomId": roomID,
		"userId": cl.identity.ID,
	})
}

func (ctl *Controller) handleListRooms(cl *client) {
	ctl.sendEvent(cl.conn, EvListRooms, ctl.Rooms.List())
}

func (ctl *Controller) handleViewRoom(cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	view, err := ctl.Rooms.View(roomID)
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.sendEvent(cl.conn, EvViewRoom, view)
}

func (ctl *Controller) handleMyRooms(cl *client) {
	roomIDs := ctl.Rooms.RoomsOf(cl.identity.ID)
	out := make([]string, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		out = append(out, string(roomID))
	}
	ctl.sendEvent(cl.conn, EvMyRooms, out)
}

// handleTyping relays typing and stop_typing to roommates. The indicator is
// transient so nothing is stored.
func (ctl *Controller) handleTyping(cl *client, data json.RawMessage, event string) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	if !ctl.Rooms.IsMember(roomID, cl.identity.ID) {
		ctl.sendError(cl.conn, errs.New(errs.UserNotInRoom, "User is not in room "+string(roomID)+"."))
		return
	}
	ctl.broadcast(cl, roomID, event, gin.H{
		"roomId": roomID,
		"userId": cl.identity.ID,
	})
}
