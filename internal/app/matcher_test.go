package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
)

func TestMatcher_NoCounsellor_RecordsMissedIssue(t *testing.T) {
	f := newFixture()
	user, _ := f.connect("u")

	_, err := f.matcher.Match(user.ID)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.CounsellorUnavailable, appErr.Code)

	issues, err := f.records.Issues()
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, domain.IssueUserMissed, issues[0].Kind)
	require.Equal(t, user.ID, issues[0].UserID)

	// No room is ever created on a miss.
	require.Empty(t, f.rooms.RoomsOf(user.ID))
}

func TestMatcher_PairsWithFirstCounsellorInOrder(t *testing.T) {
	f := newFixture()
	user, _ := f.connect("u")
	_, firstConn := f.connect("c1")
	_, secondConn := f.connect("c2")
	f.registry.SetCounsellor(firstConn, domain.Counsellor{ID: "c1", Name: "Ann"})
	f.registry.SetCounsellor(secondConn, domain.Counsellor{ID: "c2", Name: "Ben"})

	result, err := f.matcher.Match(user.ID)
	require.NoError(t, err)
	require.Equal(t, "c1", result.Counsellor.ID)
	require.Equal(t, "Ann", result.Counsellor.Name)

	require.Equal(t, domain.RoomPrivate, result.Room.Kind)
	require.Equal(t, 2, result.Room.Capacity)
	require.Equal(t, 2, result.Room.NumUsers)

	issues, err := f.records.Issues()
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, domain.IssueUserRequested, issues[0].Kind)
	require.Equal(t, "c1", issues[0].CounsellorID)

	// A third party never sees the private room in listings.
	require.Empty(t, f.rooms.List())
}

func TestMatcher_ListIssues_BuildsWorklist(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.records.SaveIssue(domain.NewMissedIssue("u1")))
	require.NoError(t, f.records.SaveIssue(domain.NewRequestedIssue("u2", "c1")))
	require.NoError(t, f.records.SaveIssue(domain.NewRequestedIssue("u3", "c2")))

	issues, err := f.matcher.ListIssues("c1")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	for _, issue := range issues {
		if issue.Kind == domain.IssueUserRequested {
			require.Equal(t, "c1", issue.CounsellorID)
		}
	}
}

func TestMatcher_CounsellorOnline_ReusesStoredProfile(t *testing.T) {
	f := newFixture()
	_, conn := f.connect("c")

	require.NoError(t, f.records.SaveCounsellor(domain.Counsellor{ID: "c1", Name: "Stored"}))
	profile := f.matcher.CounsellorOnline(conn, domain.Counsellor{ID: "c1", Name: "Ignored"})
	require.Equal(t, "Stored", profile.Name)

	counsellors := f.registry.Counsellors()
	require.Len(t, counsellors, 1)
	require.Equal(t, "Stored", counsellors[0].Counsellor.Name)
}

func TestMatcher_CounsellorOnline_StoresNewProfile(t *testing.T) {
	f := newFixture()
	_, conn := f.connect("c")

	f.matcher.CounsellorOnline(conn, domain.Counsellor{ID: "c9", Name: "Nina"})
	stored, err := f.records.Counsellor("c9")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "Nina", stored.Name)
}
