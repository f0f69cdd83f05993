// Package errs defines the application error taxonomy reported to clients.
// Codes are stable wire strings; clients switch on them.
package errs

// Code is a stable machine-readable error code.
type Code string

const (
	NoRoomID              Code = "no_room_id"
	InvalidRoomID         Code = "invalid_room_id"
	RoomIDNotFound        Code = "room_id_not_found"
	NoRoomName            Code = "no_room_name"
	InvalidUserLimit      Code = "invalid_user_limit"
	InvalidCategories     Code = "invalid_categories"
	RoomClosed            Code = "room_closed"
	UserAlreadyInRoom     Code = "user_already_in_room"
	RoomFull              Code = "room_full"
	UserNotInRoom         Code = "user_not_in_room"
	NoMessage             Code = "no_message"
	InvalidMessage        Code = "invalid_message"
	NoReaction            Code = "no_reaction"
	NoTargetUser          Code = "no_target_user"
	NoName                Code = "no_name"
	InvalidNewName        Code = "invalid_new_name"
	CounsellorUnavailable Code = "counsellor_unavailable"
	NoUserToReport        Code = "no_user_to_report"
	NoOldSocketID         Code = "no_old_socket_id"
	InvalidOldSocketID    Code = "invalid_old_socket_id"
	NoClaimToken          Code = "no_claim_token"
	InvalidClaimToken     Code = "invalid_claim_token"
	ClaimTokenRejected    Code = "claim_token_rejected"
	InvalidPushToken      Code = "invalid_push_token"
)

// Error carries a code plus a human readable message. Exactly one Error is
// delivered to the requesting connection per rejected operation.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// As unwraps err into an *Error if it is one.
func As(err error) (*Error, bool) {
	appErr, ok := err.(*Error)
	return appErr, ok
}
