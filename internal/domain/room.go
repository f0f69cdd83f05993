// Package domain contains entities without transport or lifecycle logic,
// just meta-data and the few invariants the entities can enforce on their own.
package domain

import "time"

type RoomID string

// RoomKind decides listing and visibility behaviour.
type RoomKind string

const (
	RoomPublic  RoomKind = "public"
	RoomHot     RoomKind = "hot"
	RoomPrivate RoomKind = "private"
)

// Weight orders kinds for listings: hot rooms always sort before public ones.
func (k RoomKind) Weight() int {
	if k == RoomHot {
		return 0
	}
	return 1
}

const (
	MinUserLimit = 2
	MaxUserLimit = 100
)

// Room is the authoritative description of one chat room. NumUsers and
// LastActive are mutated only by the room store under its lock.
type Room struct {
	ID          RoomID     `json:"roomId"`
	Name        string     `json:"roomName"`
	Kind        RoomKind   `json:"roomType"`
	Capacity    int        `json:"userLimit"`
	Description string     `json:"roomDescription"`
	Categories  []string   `json:"categories"`
	CreatedBy   IdentityID `json:"createdBy"`
	IsOpen      bool       `json:"isOpen"`
	LastActive  time.Time  `json:"lastActive"`
	NumUsers    int        `json:"numUsers"`
}
