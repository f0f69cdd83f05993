package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bubble-chat/server/internal/domain"
	"github.com/bubble-chat/server/internal/errs"
)

func publicRoomParams(name string, capacity int) CreateParams {
	return CreateParams{
		Name:       name,
		Capacity:   capacity,
		Categories: []string{"school"},
	}
}

func TestRooms_Create_SeatsCreator(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 5))
	require.NoError(t, err)
	require.Equal(t, 1, view.NumUsers)
	require.Equal(t, domain.RoomPublic, view.Kind)
	require.True(t, view.IsOpen)
	require.Equal(t, []string{"a"}, view.Participants)
}

func TestRooms_Create_RejectsBadInput(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	cases := []struct {
		name   string
		params CreateParams
		code   errs.Code
	}{
		{"missing name", CreateParams{Capacity: 5, Categories: []string{"school"}}, errs.NoRoomName},
		{"limit too low", publicRoomParams("R", 1), errs.InvalidUserLimit},
		{"limit too high", publicRoomParams("R", 101), errs.InvalidUserLimit},
		{"no categories", CreateParams{Name: "R", Capacity: 5}, errs.InvalidCategories},
		{"unknown category", CreateParams{Name: "R", Capacity: 5, Categories: []string{"velociraptors"}}, errs.InvalidCategories},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.rooms.Create(a.ID, tc.params)
			require.Error(t, err)
			appErr, ok := errs.As(err)
			require.True(t, ok)
			require.Equal(t, tc.code, appErr.Code)
		})
	}
}

// Capacity 2: A creates, B joins, C rejected, B exits, C joins.
func TestRooms_CapacityScenario(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")
	c, _ := f.connect("c")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 2))
	require.NoError(t, err)
	require.Equal(t, 1, view.NumUsers)
	roomID := view.ID

	view, err = f.rooms.Join(roomID, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.NumUsers)

	_, err = f.rooms.Join(roomID, c.ID)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.RoomFull, appErr.Code)

	got, err := f.rooms.View(roomID)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumUsers)

	_, err = f.rooms.Exit(roomID, b.ID)
	require.NoError(t, err)
	got, err = f.rooms.View(roomID)
	require.NoError(t, err)
	require.Equal(t, 1, got.NumUsers)

	view, err = f.rooms.Join(roomID, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, view.NumUsers)
}

func TestRooms_Join_Idempotent(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)
	_, err = f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)

	again, err := f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, again.NumUsers)
}

func TestRooms_Join_UnknownAndClosed(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")

	_, err := f.rooms.Join("no-such-room", b.ID)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.RoomIDNotFound, appErr.Code)

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)
	require.NoError(t, f.rooms.Close(view.ID))

	_, err = f.rooms.Join(view.ID, b.ID)
	appErr, ok = errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.RoomClosed, appErr.Code)
}

func TestRooms_Exit_MembershipConsistency(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)
	_, err = f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)

	_, err = f.rooms.Exit(view.ID, b.ID)
	require.NoError(t, err)
	require.Empty(t, f.rooms.RoomsOf(b.ID))
	require.Equal(t, []domain.RoomID{view.ID}, f.rooms.RoomsOf(a.ID))

	_, err = f.rooms.Exit(view.ID, b.ID)
	appErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.UserNotInRoom, appErr.Code)
}

func TestRooms_AddMessage_RequiresMembership(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)

	_, err = f.rooms.AddMessage(view.ID, b.ID, domain.MessageText, "hi", "")
	appErr, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.UserNotInRoom, appErr.Code)

	msg, err := f.rooms.AddMessage(view.ID, a.ID, domain.MessageText, "hi", "")
	require.NoError(t, err)
	require.Equal(t, "hi", msg.Content)

	got, err := f.rooms.View(view.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.Equal(t, a.ID, got.Messages[0].AuthorID)
}

func TestRooms_View_CapsHistoryMostRecentOldestFirst(t *testing.T) {
	f := newFixture()
	f.rooms.messageCap = 100
	a, _ := f.connect("a")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)
	for i := 0; i < 150; i++ {
		f.advance(time.Second)
		_, err = f.rooms.AddMessage(view.ID, a.ID, domain.MessageText, fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)
	}

	got, err := f.rooms.View(view.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 100)
	require.Equal(t, "m50", got.Messages[0].Content)
	require.Equal(t, "m149", got.Messages[99].Content)
	for i := 1; i < len(got.Messages); i++ {
		require.False(t, got.Messages[i].CreatedAt.Before(got.Messages[i-1].CreatedAt))
	}
}

func TestRooms_List_SortsHotFirstThenLeastRecentlyActive(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	older, err := f.rooms.Create(a.ID, publicRoomParams("older", 3))
	require.NoError(t, err)
	f.advance(time.Hour)
	newer, err := f.rooms.Create(a.ID, publicRoomParams("newer", 3))
	require.NoError(t, err)
	f.advance(time.Hour)
	hot, err := f.rooms.Create(a.ID, publicRoomParams("hot", 3))
	require.NoError(t, err)
	f.rooms.Promote(hot.ID)

	listed := f.rooms.List()
	require.Len(t, listed, 3)
	require.Equal(t, hot.ID, listed[0].ID)
	require.Equal(t, older.ID, listed[1].ID)
	require.Equal(t, newer.ID, listed[2].ID)
}

func TestRooms_List_StalenessFilterSparesHotRooms(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	stale, err := f.rooms.Create(a.ID, publicRoomParams("stale", 3))
	require.NoError(t, err)
	hot, err := f.rooms.Create(a.ID, publicRoomParams("hot", 3))
	require.NoError(t, err)
	f.rooms.Promote(hot.ID)

	f.advance(73 * time.Hour)
	fresh, err := f.rooms.Create(a.ID, publicRoomParams("fresh", 3))
	require.NoError(t, err)

	listed := f.rooms.List()
	require.Len(t, listed, 2)
	require.Equal(t, hot.ID, listed[0].ID)
	require.Equal(t, fresh.ID, listed[1].ID)
	for _, room := range listed {
		require.NotEqual(t, stale.ID, room.ID)
	}
}

func TestRooms_List_ExcludesPrivateAndEmptyRooms(t *testing.T) {
	f := newFixture()
	a, connA := f.connect("a")
	b, _ := f.connect("b")

	private := f.rooms.CreatePrivate("Chat with counsellor", a.ID, b.ID)
	require.Equal(t, domain.RoomPrivate, private.Kind)
	require.Equal(t, 2, private.NumUsers)

	emptied, err := f.rooms.Create(a.ID, publicRoomParams("emptied", 3))
	require.NoError(t, err)
	f.registry.AttachRoom(connA, emptied.ID)
	require.True(t, f.rooms.Suspend(emptied.ID, a.ID))

	require.Empty(t, f.rooms.List())
}

func TestRooms_SuspendAndResume_KeepsSeat(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")
	b, _ := f.connect("b")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 2))
	require.NoError(t, err)
	_, err = f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)

	require.True(t, f.rooms.Suspend(view.ID, b.ID))
	got, err := f.rooms.View(view.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.NumUsers)

	// Seat survives the disconnect, so the room still shows up for B.
	require.Contains(t, f.rooms.RoomsOf(b.ID), view.ID)

	// A second suspend for the same member is a no-op.
	require.False(t, f.rooms.Suspend(view.ID, b.ID))

	resumed, err := f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, resumed.NumUsers)
}

func TestRooms_NumUsersNeverNegative(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 2))
	require.NoError(t, err)

	require.True(t, f.rooms.Suspend(view.ID, a.ID))
	require.False(t, f.rooms.Suspend(view.ID, a.ID))
	got, err := f.rooms.View(view.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.NumUsers)
}

func TestRooms_Restore_RecoversRoomsWithoutSeats(t *testing.T) {
	f := newFixture()
	a, _ := f.connect("a")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 3))
	require.NoError(t, err)
	_, err = f.rooms.AddMessage(view.ID, a.ID, domain.MessageText, "persisted", "")
	require.NoError(t, err)

	reborn := newFixture()
	reborn.records = f.records
	saved, err := f.records.Rooms()
	require.NoError(t, err)
	reborn.rooms.Restore(saved, f.records)

	got, err := reborn.rooms.View(view.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.NumUsers)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "persisted", got.Messages[0].Content)
}

func TestRooms_EventsFollowMutationOrder(t *testing.T) {
	f := newFixture()
	em := &captureEmitter{}
	f.rooms.SetEmitter(em)

	a, _ := f.connect("a")
	b, _ := f.connect("b")

	view, err := f.rooms.Create(a.ID, publicRoomParams("R", 5))
	require.NoError(t, err)

	_, err = f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)
	_, err = f.rooms.AddMessage(view.ID, a.ID, domain.MessageText, "hi", "")
	require.NoError(t, err)
	// Idempotent re-join of a connected member emits nothing.
	_, err = f.rooms.Join(view.ID, b.ID)
	require.NoError(t, err)
	require.True(t, f.rooms.Suspend(view.ID, b.ID))
	_, err = f.rooms.Exit(view.ID, a.ID)
	require.NoError(t, err)

	events := em.snapshot()
	require.Len(t, events, 4)
	require.Equal(t, RoomEventJoined, events[0].Kind)
	require.Equal(t, b.ID, events[0].ActorID)
	require.Equal(t, RoomEventMessage, events[1].Kind)
	require.Equal(t, "hi", events[1].Message.Content)
	require.Equal(t, RoomEventExited, events[2].Kind)
	require.Equal(t, b.ID, events[2].ActorID)
	require.Equal(t, RoomEventExited, events[3].Kind)
	require.Equal(t, a.ID, events[3].ActorID)
}
