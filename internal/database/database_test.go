package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/config"
	"roombook/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var epoch = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, db *DB, name string) models.Room {
	t.Helper()
	room := models.Room{Name: name, Type: models.RoomTypeMeeting, Capacity: 6, Amenities: []string{"tv"}, IsActive: true, CreatedAt: epoch, UpdatedAt: epoch}
	require.NoError(t, db.InsertRoom(context.Background(), &room))
	return room
}

func TestRooms_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	room := seedRoom(t, db, "Room 1")
	assert.NotZero(t, room.ID)

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Room 1", got.Name)
	assert.Equal(t, []string{"tv"}, got.Amenities)
	assert.True(t, got.CreatedAt.Equal(epoch))

	dup := models.Room{Name: "room 1", Capacity: 2, Type: models.RoomTypeOther, IsActive: true}
	err = db.InsertRoom(ctx, &dup)
	assert.ErrorIs(t, err, models.ErrValidation)

	got.Capacity = 12
	got.IsActive = false
	require.NoError(t, db.UpdateRoom(ctx, got))

	active, err := db.ListRooms(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := db.ListRooms(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 12, all[0].Capacity)

	_, err = db.GetRoom(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, db.UpdateRoom(ctx, models.Room{ID: 999, Name: "x"}), models.ErrNotFound)
}

func TestSyncRooms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := []models.Room{
		{ID: 1, Name: "A", Type: models.RoomTypeMeeting, Capacity: 4, IsActive: true},
		{ID: 2, Name: "B", Type: models.RoomTypeTraining, Capacity: 10, IsActive: true},
	}
	require.NoError(t, db.SyncRooms(ctx, first, epoch))

	second := []models.Room{{ID: 1, Name: "A+", Type: models.RoomTypeMeeting, Capacity: 5, IsActive: true}}
	later := epoch.Add(time.Hour)
	require.NoError(t, db.SyncRooms(ctx, second, later))

	a, err := db.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A+", a.Name)
	assert.True(t, a.CreatedAt.Equal(epoch), "created_at preserved")
	assert.True(t, a.UpdatedAt.Equal(later))

	b, err := db.GetRoom(ctx, 2)
	require.NoError(t, err)
	assert.False(t, b.IsActive, "missing rooms are deactivated")
}

func TestReservations_Queries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, "R1")
	other := seedRoom(t, db, "R2")

	insert := func(roomID int64, startHour, endHour int, status models.Status) models.Reservation {
		loc := time.FixedZone("UTC+2", 2*60*60)
		r := models.Reservation{
			RoomID:    roomID,
			Title:     "t",
			Organizer: "o",
			StartTime: time.Date(2024, 1, 8, startHour, 0, 0, 0, loc),
			EndTime:   time.Date(2024, 1, 8, endHour, 0, 0, 0, loc),
			Attendees: []string{"a@example.com"},
			Status:    status,
			CreatedAt: epoch,
			UpdatedAt: epoch,
		}
		require.NoError(t, db.InsertReservation(ctx, &r))
		return r
	}

	a := insert(room.ID, 11, 12, models.StatusConfirmed)
	b := insert(room.ID, 9, 10, models.StatusCancelled)
	c := insert(room.ID, 10, 11, models.StatusPending)
	insert(other.ID, 10, 11, models.StatusConfirmed)

	got, err := db.GetReservation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(a.StartTime))
	assert.Equal(t, time.UTC, got.StartTime.Location())
	assert.Equal(t, []string{"a@example.com"}, got.Attendees)

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	list, err := db.ListByRoomAndRange(ctx, room.ID, from, to)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{b.ID, c.ID, a.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})

	all, err := db.ListByRange(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// 09:30-10:30 local touches the cancelled b and the pending c; only c is active.
	loc := time.FixedZone("UTC+2", 2*60*60)
	overlapping, err := db.ListActiveOverlapping(ctx, room.ID,
		time.Date(2024, 1, 8, 9, 30, 0, 0, loc), time.Date(2024, 1, 8, 10, 30, 0, 0, loc))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, c.ID, overlapping[0].ID)

	// Back-to-back with a is free.
	overlapping, err = db.ListActiveOverlapping(ctx, room.ID,
		time.Date(2024, 1, 8, 12, 0, 0, 0, loc), time.Date(2024, 1, 8, 13, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	got.Status = models.StatusCancelled
	require.NoError(t, db.UpdateReservation(ctx, got))
	reloaded, err := db.GetReservation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, reloaded.Status)

	require.NoError(t, db.DeleteReservation(ctx, a.ID))
	_, err = db.GetReservation(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, db.DeleteReservation(ctx, a.ID), models.ErrNotFound)
	assert.ErrorIs(t, db.UpdateReservation(ctx, got), models.ErrNotFound)
}

func TestWithTx_RollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	room := seedRoom(t, db, "R1")

	err := db.WithTx(ctx, func(txCtx context.Context) error {
		r := models.Reservation{RoomID: room.ID, Title: "t", Organizer: "o", StartTime: epoch, EndTime: epoch.Add(time.Hour), Status: models.StatusConfirmed, CreatedAt: epoch, UpdatedAt: epoch}
		if err := db.InsertReservation(txCtx, &r); err != nil {
			return err
		}
		return models.NewValidationError("title", "rejected")
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	list, err := db.ListByRange(ctx, epoch.Add(-time.Hour), epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBackupService(t *testing.T) {
	db := newTestDB(t)
	seedRoom(t, db, "R1")
	logger := zerolog.New(io.Discard)
	dir := filepath.Join(t.TempDir(), "backups")

	svc := NewBackupService(db, config.BackupConfig{Enabled: true, Path: dir, RetentionDays: 7}, &logger)
	svc.now = func() time.Time { return time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC) }

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()
	rooms, err := restored.ListRooms(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	old := filepath.Join(dir, "backup_20000101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o600))
	stale := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, os.Chtimes(old, stale, stale))

	svc.now = time.Now
	svc.CleanupOldBackups()
	assert.NoFileExists(t, old)
	assert.FileExists(t, path)
}
