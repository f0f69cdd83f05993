package domain

import (
	"time"

	"github.com/google/uuid"
)

type IssueKind string

const (
	// IssueUserMissed records a match request made while no counsellor was online.
	IssueUserMissed IssueKind = "user_missed"
	// IssueUserRequested records a successful pairing with a counsellor.
	IssueUserRequested IssueKind = "user_requested"
)

// Issue is one entry of a counsellor's worklist. Issues are append-only;
// there is no acknowledge or resolve transition.
type Issue struct {
	ID           uuid.UUID  `json:"issueId"`
	Kind         IssueKind  `json:"issueType"`
	UserID       IdentityID `json:"userId"`
	CounsellorID string     `json:"counsellorId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func NewMissedIssue(user IdentityID) Issue {
	return Issue{
		ID:        uuid.New(),
		Kind:      IssueUserMissed,
		UserID:    user,
		CreatedAt: time.Now().UTC(),
	}
}

func NewRequestedIssue(user IdentityID, counsellorID string) Issue {
	return Issue{
		ID:           uuid.New(),
		Kind:         IssueUserRequested,
		UserID:       user,
		CounsellorID: counsellorID,
		CreatedAt:    time.Now().UTC(),
	}
}
