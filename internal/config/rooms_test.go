package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/models"
	"roombook/internal/slots"
)

const roomsYAML = `
rooms:
  - id: 1
    name: Room 1
    type: meeting
    capacity: 8
    amenities: [projector, whiteboard, projector]
  - id: 2
    name: Lab
    type: training
    capacity: 20
    is_active: false
    schedule:
      start_time: "10:00"
      end_time: "16:00"
      slot_minutes: 60
defaults:
  schedule:
    start_time: "09:00"
    end_time: "18:00"
    slot_minutes: 30
    break_start: "13:00"
    break_end: "14:00"
  days_off: [6, 7]
holidays:
  - date: "2024-01-01"
    name: New Year
`

func TestLoadRoomsConfig(t *testing.T) {
	cfg, err := LoadRoomsConfig(writeFile(t, "rooms.yaml", roomsYAML))
	require.NoError(t, err)

	rooms := cfg.Models()
	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"projector", "whiteboard"}, rooms[0].Amenities)
	assert.True(t, rooms[0].IsActive)
	assert.False(t, rooms[1].IsActive)
	assert.Equal(t, models.RoomTypeTraining, rooms[1].Type)

	// Room 1 inherits the default schedule.
	require.NotNil(t, cfg.Rooms[0].Schedule)
	assert.Equal(t, "13:00", cfg.Rooms[0].Schedule.BreakStart)
}

func TestRoomsConfig_Schedule(t *testing.T) {
	cfg, err := LoadRoomsConfig(writeFile(t, "rooms.yaml", roomsYAML))
	require.NoError(t, err)
	fallback := slots.ScheduleInfo{Window: slots.Window{Start: "07:00", End: "22:00"}}

	tuesday := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	info := cfg.Schedule(2, tuesday, fallback)
	assert.Equal(t, "10:00", info.Window.Start)
	assert.Equal(t, time.Hour, info.SlotDuration)
	assert.False(t, info.IsClosed)

	info = cfg.Schedule(1, tuesday, fallback)
	assert.Equal(t, "09:00", info.Window.Start)
	assert.Equal(t, "13:00", info.BreakStart)

	saturday := time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)
	assert.True(t, cfg.Schedule(1, saturday, fallback).IsClosed)

	holiday := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, cfg.Schedule(1, holiday, fallback).IsClosed)

	var empty *RoomsConfig
	assert.Equal(t, fallback, empty.Schedule(1, tuesday, fallback))
}

func TestRoomsConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  RoomsConfig
	}{
		{"empty", RoomsConfig{}},
		{"zero id", RoomsConfig{Rooms: []RoomConfig{{ID: 0, Name: "A", Capacity: 1}}}},
		{"duplicate id", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1}, {ID: 1, Name: "B", Capacity: 1}}}},
		{"duplicate name", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1}, {ID: 2, Name: " a ", Capacity: 1}}}},
		{"missing name", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Capacity: 1}}}},
		{"zero capacity", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A"}}}},
		{"bad type", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1, Type: "ballroom"}}}},
		{"bad schedule", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1,
			Schedule: &ScheduleConfig{StartTime: "18:00", EndTime: "09:00", SlotMinutes: 30}}}}},
		{"break outside hours", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1,
			Schedule: &ScheduleConfig{StartTime: "09:00", EndTime: "12:00", SlotMinutes: 30, BreakStart: "12:00", BreakEnd: "13:00"}}}}},
		{"bad holiday", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1}}, Holidays: []HolidayConfig{{Date: "01/01/2024"}}}},
		{"bad day off", RoomsConfig{Rooms: []RoomConfig{{ID: 1, Name: "A", Capacity: 1}}, Defaults: RoomDefaults{DaysOff: []int{0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestWatchRooms_ReloadsOnChange(t *testing.T) {
	path := writeFile(t, "rooms.yaml", roomsYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var loads []*RoomsConfig
	err := WatchRooms(ctx, path, 10*time.Millisecond, func(cfg *RoomsConfig) {
		mu.Lock()
		loads = append(loads, cfg)
		mu.Unlock()
	}, nil)
	require.NoError(t, err)

	updated := "rooms:\n  - id: 1\n    name: Room 1\n    capacity: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(loads) == 2 && len(loads[1].Rooms) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchRooms_InitialLoadError(t *testing.T) {
	err := WatchRooms(context.Background(), writeFile(t, "rooms.yaml", "rooms: []\n"), time.Second, nil, nil)
	assert.Error(t, err)

	err = WatchRooms(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), time.Second, nil, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchRooms_RejectedReloadGoesToErrorHandler(t *testing.T) {
	path := writeFile(t, "rooms.yaml", roomsYAML)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var loads int
	var errs []error
	err := WatchRooms(ctx, path, 10*time.Millisecond, func(*RoomsConfig) {
		mu.Lock()
		loads++
		mu.Unlock()
	}, func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	require.NoError(t, err)

	// Duplicate ids fail validation.
	broken := "rooms:\n  - id: 1\n    name: A\n    capacity: 2\n  - id: 1\n    name: B\n    capacity: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(broken), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The rejected version is reported once, not on every tick.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "reload rooms config")
	assert.Equal(t, 1, loads, "only the initial load reached onUpdate")
}
