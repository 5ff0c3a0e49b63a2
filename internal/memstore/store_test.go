package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/models"
)

var now = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, s *Store, name string) models.Room {
	t.Helper()
	room := models.Room{Name: name, Type: models.RoomTypeMeeting, Capacity: 4, IsActive: true}
	require.NoError(t, s.InsertRoom(context.Background(), &room))
	return room
}

func TestWithTx_UndoesOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	room := seedRoom(t, s, "R1")

	kept := models.Reservation{RoomID: room.ID, Title: "kept", StartTime: now, EndTime: now.Add(time.Hour), Status: models.StatusConfirmed}
	require.NoError(t, s.InsertReservation(ctx, &kept))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(txCtx context.Context) error {
		added := models.Reservation{RoomID: room.ID, Title: "added", StartTime: now.Add(2 * time.Hour), EndTime: now.Add(3 * time.Hour)}
		require.NoError(t, s.InsertReservation(txCtx, &added))

		changed := kept
		changed.Status = models.StatusCancelled
		require.NoError(t, s.UpdateReservation(txCtx, changed))

		// Nested calls join the outer transaction.
		require.NoError(t, s.WithTx(txCtx, func(inner context.Context) error {
			return s.DeleteReservation(inner, kept.ID)
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := s.ListByRange(ctx, now.Add(-time.Hour), now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].Title)
	assert.Equal(t, models.StatusConfirmed, all[0].Status)
}

func TestListActiveOverlapping(t *testing.T) {
	s := New()
	ctx := context.Background()
	r1 := seedRoom(t, s, "R1")
	r2 := seedRoom(t, s, "R2")

	for _, r := range []models.Reservation{
		{RoomID: r1.ID, Title: "a", StartTime: now, EndTime: now.Add(time.Hour), Status: models.StatusConfirmed},
		{RoomID: r1.ID, Title: "b", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour), Status: models.StatusPending},
		{RoomID: r1.ID, Title: "c", StartTime: now.Add(30 * time.Minute), EndTime: now.Add(90 * time.Minute), Status: models.StatusCancelled},
		{RoomID: r2.ID, Title: "d", StartTime: now, EndTime: now.Add(2 * time.Hour), Status: models.StatusConfirmed},
	} {
		require.NoError(t, s.InsertReservation(ctx, &r))
	}

	got, err := s.ListActiveOverlapping(ctx, r1.ID, now.Add(30*time.Minute), now.Add(61*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "b", got[1].Title)

	got, err = s.ListActiveOverlapping(ctx, r1.ID, now.Add(2*time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRooms_UniqueNamesAndSync(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedRoom(t, s, "Boardroom")

	dup := models.Room{Name: "BOARDROOM", Capacity: 2}
	assert.ErrorIs(t, s.InsertRoom(ctx, &dup), models.ErrValidation)

	err := s.SyncRooms(ctx, []models.Room{
		{ID: 5, Name: "Lab", Type: models.RoomTypeTraining, Capacity: 20, IsActive: true},
	}, now)
	require.NoError(t, err)

	active, err := s.ListRooms(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(5), active[0].ID)
	assert.Equal(t, now, active[0].CreatedAt)

	all, err := s.ListRooms(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Auto ids continue after explicitly inserted ones.
	next := seedRoom(t, s, "Huddle")
	assert.Equal(t, int64(6), next.ID)
}

func TestReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	room := seedRoom(t, s, "R1")

	r := models.Reservation{RoomID: room.ID, Title: "x", StartTime: now, EndTime: now.Add(time.Hour), Attendees: []string{"a"}}
	require.NoError(t, s.InsertReservation(ctx, &r))

	got, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	got.Attendees[0] = "mutated"

	again, err := s.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Attendees)

	_, err = s.GetReservation(ctx, 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
