package app

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
	"github.com/bubble-chat/server/internal/store"
)

const counsellorRoomName = "Chat with counsellor"

// MatchResult describes a successful pairing: the private room plus the
// counsellor side, so the caller can notify both parties.
type MatchResult struct {
	Room           *RoomView
	Counsellor     domain.Counsellor
	CounsellorConn ConnID
}

// Matcher pairs waiting users with on-duty counsellors and keeps the issue
// worklist. Selection is first live counsellor in registration order.
type Matcher struct {
	registry *Registry
	rooms    *Rooms
	records  store.Records
	collab   Collaborators
}

func NewMatcher(registry *Registry, rooms *Rooms, records store.Records, collab Collaborators) *Matcher {
	return &Matcher{registry: registry, rooms: rooms, records: records, collab: collab}
}

// Match finds a counsellor for the user. With nobody on duty it records a
// missed-user issue and reports counsellor_unavailable; it never creates a
// room in that case.
func (m *Matcher) Match(user domain.IdentityID) (*MatchResult, error) {
	counsellors := m.registry.Counsellors()
	if len(counsellors) == 0 {
		issue := domain.NewMissedIssue(user)
		_ = m.collab.Run("save issue", func() error {
			return m.records.SaveIssue(issue)
		})
		log.Info().Str("module", "app.matcher").Str("user", string(user)).Msg("no counsellors available")
		return nil, errs.New(errs.CounsellorUnavailable, "No counsellors available.")
	}

	chosen := counsellors[0]
	issue := domain.NewRequestedIssue(user, chosen.Counsellor.ID)
	_ = m.collab.Run("save issue", func() error {
		return m.records.SaveIssue(issue)
	})

	view := m.rooms.CreatePrivate(counsellorRoomName, user, chosen.Identity.ID)
	m.registry.AttachRoom(chosen.ID, view.ID)
	if userConn, ok := m.registry.ConnOf(user); ok {
		m.registry.AttachRoom(userConn.ID, view.ID)
	}
	log.Info().Str("module", "app.matcher").Str("user", string(user)).Str("counsellor", chosen.Counsellor.ID).Str("room", string(view.ID)).Msg("matched")
	return &MatchResult{
		Room:           view,
		Counsellor:     *chosen.Counsellor,
		CounsellorConn: chosen.ID,
	}, nil
}

// CounsellorOnline attaches the profile to the connection, reusing the stored
// display name when the counsellor is already known.
func (m *Matcher) CounsellorOnline(connID ConnID, profile domain.Counsellor) domain.Counsellor {
	var known *domain.Counsellor
	_ = m.collab.Run("load counsellor", func() error {
		var err error
		known, err = m.records.Counsellor(profile.ID)
		return err
	})
	if known != nil {
		profile = *known
	} else {
		_ = m.collab.Run("save counsellor", func() error {
			return m.records.SaveCounsellor(profile)
		})
	}
	m.registry.SetCounsellor(connID, profile)
	return profile
}

// ListIssues builds the counsellor's worklist: every missed user, plus the
// requests addressed to this counsellor. Read-only; issues never resolve.
func (m *Matcher) ListIssues(counsellorID string) ([]domain.Issue, error) {
	var issues []domain.Issue
	err := m.collab.Run("list issues", func() error {
		var err error
		issues, err = m.records.Issues()
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Filter(issues, func(issue domain.Issue, _ int) bool {
		if issue.Kind == domain.IssueUserMissed {
			return true
		}
		return issue.Kind == domain.IssueUserRequested && issue.CounsellorID == counsellorID
	}), nil
}
