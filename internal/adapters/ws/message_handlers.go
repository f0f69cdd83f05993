package ws

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
	"github.com/bubble-chat/server/internal/validate"
)

type addMessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (ctl *Controller) handleAddMessage(ctx context.Context, cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	var payload addMessagePayload
	_ = json.Unmarshal(data, &payload)

	if payload.Message == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoMessage, "No message specified."))
		return
	}
	if !validate.Message(payload.Message) {
		ctl.sendError(cl.conn, errs.New(errs.InvalidMessage, "Message length exceeds limit."))
		return
	}

	msg, err := ctl.Rooms.AddMessage(roomID, cl.identity.ID, domain.MessageText, payload.Message, "")
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.sendEvent(cl.conn, EvAddMessage, sentMessage{msg, true})

	// Push is a fallback for subscribers not live to see the broadcast.
	go ctl.Notifier.NotifyRoom(ctx, roomID, "New message", payload.Message)
}

type addReactionPayload struct {
	RoomID     string `json:"roomId"`
	Reaction   string `json:"reaction"`
	TargetUser string `json:"targetUser"`
}

func (ctl *Controller) handleAddReaction(ctx context.Context, cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	var payload addReactionPayload
	_ = json.Unmarshal(data, &payload)

	if payload.Reaction == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoReaction, "No reaction specified."))
		return
	}
	if payload.TargetUser == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoTargetUser, "No targetUser specified for reaction."))
		return
	}

	msg, err := ctl.Rooms.AddMessage(roomID, cl.identity.ID, domain.MessageReaction, payload.Reaction, domain.IdentityID(payload.TargetUser))
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.sendEvent(cl.conn, EvAddReaction, sentMessage{msg, true})

	go ctl.Notifier.NotifyRoom(ctx, roomID, "New reaction", payload.Reaction)
}

// sentMessage decorates a message with the sender's perspective.
type sentMessage struct {
	*domain.Message
	SentByMe bool `json:"sentByMe"`
}

type reportUserPayload struct {
	RoomID       string `json:"roomId"`
	UserToReport string `json:"userToReport"`
	Reason       string `json:"reason"`
}

func (ctl *Controller) handleReportUser(cl *client, data json.RawMessage) {
	roomID, ok := ctl.resolveRoomID(cl, data)
	if !ok {
		return
	}
	var payload reportUserPayload
	_ = json.Unmarshal(data, &payload)

	if payload.UserToReport == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoUserToReport, "Did not specify user to report."))
		return
	}
	if !ctl.Rooms.IsMember(roomID, domain.IdentityID(payload.UserToReport)) {
		ctl.sendError(cl.conn, errs.New(errs.NoUserToReport, "User is not in room."))
		return
	}

	ctl.broadcast(cl, roomID, EvReportUser, gin.H{
		"roomId":         roomID,
		"reportedUserId": payload.UserToReport,
		"reason":         payload.Reason,
	})
}
