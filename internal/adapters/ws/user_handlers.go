package ws

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/bubble-chat/server/internal/app"
	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
	"github.com/bubble-chat/server/internal/validate"
)

type setUserNamePayload struct {
	NewName string `json:"newName"`
}

func (ctl *Controller) handleSetUserName(cl *client, data json.RawMessage) {
	var payload setUserNamePayload
	_ = json.Unmarshal(data, &payload)

	if payload.NewName == "" {
		ctl.sendError(cl.conn, errs.New(errs.NoName, "newName not specified."))
		return
	}
	if !validate.Str(payload.NewName) {
		ctl.sendError(cl.conn, errs.New(errs.InvalidNewName, "Invalid newName."))
		return
	}

	ctl.Identities.SetName(cl.identity.ID, payload.NewName)
	for _, roomID := range ctl.Registry.SnapshotRooms(cl.id) {
		ctl.broadcast(cl, roomID, EvSetUserName, gin.H{
			"userId":  cl.identity.ID,
			"newName": payload.NewName,
		})
	}
}

func (ctl *Controller) handleFindCounsellor(cl *client) {
	result, err := ctl.Matcher.Match(cl.identity.ID)
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.Registry.AttachRoom(cl.id, result.Room.ID)

	matched := struct {
		*matchedRoom
		UserID domain.IdentityID `json:"userId"`
	}{
		matchedRoom: &matchedRoom{
			RoomView:       result.Room,
			CounsellorID:   result.Counsellor.ID,
			CounsellorName: result.Counsellor.Name,
		},
		UserID: cl.identity.ID,
	}
	ctl.sendEvent(cl.conn, EvFindCounsellor, matched.matchedRoom)
	if counsellor, ok := ctl.Registry.Conn(result.CounsellorConn); ok {
		ctl.sendTo(counsellor, EvFindCounsellor, matched)
	}
}

type matchedRoom struct {
	*app.RoomView
	CounsellorID   string `json:"counsellorId"`
	CounsellorName string `json:"counsellorName"`
}

type counsellorOnlinePayload struct {
	CounsellorID   string `json:"counsellorId"`
	CounsellorName string `json:"counsellorName"`
}

func (ctl *Controller) handleCounsellorOnline(cl *client, data json.RawMessage) {
	var payload counsellorOnlinePayload
	_ = json.Unmarshal(data, &payload)
	if !validate.Str(payload.CounsellorID) {
		ctl.sendError(cl.conn, errs.New(errs.NoName, "counsellorId not specified."))
		return
	}

	ctl.Matcher.CounsellorOnline(cl.id, domain.Counsellor{
		ID:   payload.CounsellorID,
		Name: payload.CounsellorName,
	})
	ctl.sendEvent(cl.conn, EvCounsellorOnline, gin.H{})
}

type listIssuesPayload struct {
	CounsellorID string `json:"counsellorId"`
}

func (ctl *Controller) handleListIssues(cl *client, data json.RawMessage) {
	var payload listIssuesPayload
	_ = json.Unmarshal(data, &payload)

	issues, err := ctl.Matcher.ListIssues(payload.CounsellorID)
	if err != nil {
		ctl.fail(cl.conn, err)
		return
	}
	ctl.sendEvent(cl.conn, EvListIssues, issues)
}

type registerPushPayload struct {
	PushToken string `json:"pushToken"`
}

func (ctl *Controller) handleRegisterPush(cl *client, data json.RawMessage) {
	var payload registerPushPayload
	_ = json.Unmarshal(data, &payload)

	if payload.PushToken == "" {
		ctl.sendError(cl.conn, errs.New(errs.InvalidPushToken, "Push token is invalid."))
		return
	}
	ctl.Notifier.RegisterToken(cl.identity.ID, payload.PushToken)
	ctl.sendEvent(cl.conn, EvRegisterPush, gin.H{})
}
