package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageText     MessageKind = "message"
	MessageReaction MessageKind = "reaction"
)

// Message is an immutable chat event, append-only per room.
type Message struct {
	ID        uuid.UUID   `json:"messageId"`
	RoomID    RoomID      `json:"roomId"`
	AuthorID  IdentityID  `json:"userId"`
	Kind      MessageKind `json:"messageType"`
	Content   string      `json:"content"`
	TargetID  IdentityID  `json:"targetUser,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func NewMessage(roomID RoomID, author IdentityID, kind MessageKind, content string, target IdentityID) Message {
	return Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		AuthorID:  author,
		Kind:      kind,
		Content:   content,
		TargetID:  target,
		CreatedAt: time.Now().UTC(),
	}
}
