// Package memstore is an in-process repository for rooms and reservations,
// used by tests and by deployments that run without a database file.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"roombook/internal/models"
)

type txKey struct{}

type tx struct {
	undo []func()
}

// Store keeps rooms and reservations in maps. Transactions are serialized.
type Store struct {
	writeMu sync.Mutex // held for the duration of WithTx

	mu                sync.RWMutex
	rooms             map[int64]models.Room
	reservations      map[int64]models.Reservation
	nextRoomID        int64
	nextReservationID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		rooms:        make(map[int64]models.Room),
		reservations: make(map[int64]models.Reservation),
	}
}

// WithTx runs fn while holding the store's write lock. Mutations made by fn are
// undone if it returns an error. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t := &tx{}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// write runs mutate under the data lock, recording undo when inside a transaction.
// Writes outside WithTx take the write lock themselves.
func (s *Store) write(ctx context.Context, mutate func() (undo func(), err error)) error {
	t := txFromContext(ctx)
	if t == nil {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	undo, err := mutate()
	if err != nil {
		return err
	}
	if t != nil && undo != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Rooms

func (s *Store) GetRoom(_ context.Context, id int64) (models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return models.Room{}, models.NewNotFoundError("room", id)
	}
	return cloneRoom(room), nil
}

func (s *Store) ListRooms(_ context.Context, activeOnly bool) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if activeOnly && !room.IsActive {
			continue
		}
		out = append(out, cloneRoom(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertRoom(ctx context.Context, room *models.Room) error {
	return s.write(ctx, func() (func(), error) {
		if err := s.checkNameFree(room.Name, room.ID); err != nil {
			return nil, err
		}
		if room.ID == 0 {
			s.nextRoomID++
			room.ID = s.nextRoomID
		} else if _, exists := s.rooms[room.ID]; exists {
			return nil, models.NewValidationError("id", "already exists")
		} else if room.ID > s.nextRoomID {
			s.nextRoomID = room.ID
		}
		id := room.ID
		s.rooms[id] = cloneRoom(*room)
		return func() { delete(s.rooms, id) }, nil
	})
}

func (s *Store) UpdateRoom(ctx context.Context, room models.Room) error {
	return s.write(ctx, func() (func(), error) {
		prev, ok := s.rooms[room.ID]
		if !ok {
			return nil, models.NewNotFoundError("room", room.ID)
		}
		if err := s.checkNameFree(room.Name, room.ID); err != nil {
			return nil, err
		}
		room.CreatedAt = prev.CreatedAt
		s.rooms[room.ID] = cloneRoom(room)
		return func() { s.rooms[prev.ID] = prev }, nil
	})
}

// SyncRooms upserts rooms by id and deactivates those missing from the list.
func (s *Store) SyncRooms(ctx context.Context, rooms []models.Room, now time.Time) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		keep := make(map[int64]struct{}, len(rooms))
		for _, room := range rooms {
			keep[room.ID] = struct{}{}
			existing, err := s.GetRoom(txCtx, room.ID)
			if err != nil {
				room.CreatedAt = now
				room.UpdatedAt = now
				if err := s.InsertRoom(txCtx, &room); err != nil {
					return err
				}
				continue
			}
			room.CreatedAt = existing.CreatedAt
			room.UpdatedAt = now
			if err := s.UpdateRoom(txCtx, room); err != nil {
				return err
			}
		}

		all, err := s.ListRooms(txCtx, true)
		if err != nil {
			return err
		}
		for _, room := range all {
			if _, ok := keep[room.ID]; ok {
				continue
			}
			room.IsActive = false
			room.UpdatedAt = now
			if err := s.UpdateRoom(txCtx, room); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) checkNameFree(name string, selfID int64) error {
	for id, room := range s.rooms {
		if id != selfID && strings.EqualFold(room.Name, name) {
			return models.NewValidationError("name", "already exists")
		}
	}
	return nil
}

// Reservations

func (s *Store) GetReservation(_ context.Context, id int64) (models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.Reservation{}, models.NewNotFoundError("reservation", id)
	}
	return cloneReservation(r), nil
}

// ListActiveOverlapping returns non-cancelled reservations of roomID intersecting [start, end).
func (s *Store) ListActiveOverlapping(_ context.Context, roomID int64, start, end time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.RoomID != roomID || !r.IsActive() {
			continue
		}
		if r.StartTime.Before(end) && start.Before(r.EndTime) {
			out = append(out, cloneReservation(r))
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *Store) InsertReservation(ctx context.Context, r *models.Reservation) error {
	return s.write(ctx, func() (func(), error) {
		if _, ok := s.rooms[r.RoomID]; !ok {
			return nil, models.NewNotFoundError("room", r.RoomID)
		}
		s.nextReservationID++
		r.ID = s.nextReservationID
		id := r.ID
		s.reservations[id] = cloneReservation(*r)
		return func() { delete(s.reservations, id) }, nil
	})
}

func (s *Store) UpdateReservation(ctx context.Context, r models.Reservation) error {
	return s.write(ctx, func() (func(), error) {
		prev, ok := s.reservations[r.ID]
		if !ok {
			return nil, models.NewNotFoundError("reservation", r.ID)
		}
		if _, ok := s.rooms[r.RoomID]; !ok {
			return nil, models.NewNotFoundError("room", r.RoomID)
		}
		s.reservations[r.ID] = cloneReservation(r)
		return func() { s.reservations[prev.ID] = prev }, nil
	})
}

func (s *Store) DeleteReservation(ctx context.Context, id int64) error {
	return s.write(ctx, func() (func(), error) {
		prev, ok := s.reservations[id]
		if !ok {
			return nil, models.NewNotFoundError("reservation", id)
		}
		delete(s.reservations, id)
		return func() { s.reservations[id] = prev }, nil
	})
}

func (s *Store) ListByRoomAndRange(_ context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error) {
	return s.list(func(r models.Reservation) bool {
		return r.RoomID == roomID && startsIn(r, from, to)
	}), nil
}

func (s *Store) ListByRange(_ context.Context, from, to time.Time) ([]models.Reservation, error) {
	return s.list(func(r models.Reservation) bool { return startsIn(r, from, to) }), nil
}

func (s *Store) list(match func(models.Reservation) bool) []models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reservation, 0)
	for _, r := range s.reservations {
		if match(r) {
			out = append(out, cloneReservation(r))
		}
	}
	sortReservations(out)
	return out
}

func startsIn(r models.Reservation, from, to time.Time) bool {
	return !r.StartTime.Before(from) && r.StartTime.Before(to)
}

func sortReservations(list []models.Reservation) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}

func cloneRoom(r models.Room) models.Room {
	r.Amenities = append([]string{}, r.Amenities...)
	return r
}

func cloneReservation(r models.Reservation) models.Reservation {
	r.Attendees = append([]string{}, r.Attendees...)
	return r
}
