// Package reservation owns every mutation of reservations: creation, rescheduling,
// confirmation and cancellation, each checked against overlapping bookings of the room.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"roombook/internal/clock"
	"roombook/internal/conflict"
	"roombook/internal/events"
	"roombook/internal/lock"
	"roombook/internal/metrics"
	"roombook/internal/models"
)

// Repository is the storage the service runs its transactions against.
// Methods called with the ctx handed to WithTx's fn join that transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetRoom(ctx context.Context, id int64) (models.Room, error)
	GetReservation(ctx context.Context, id int64) (models.Reservation, error)
	ListActiveOverlapping(ctx context.Context, roomID int64, start, end time.Time) ([]models.Reservation, error)
	InsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservation(ctx context.Context, r models.Reservation) error
	DeleteReservation(ctx context.Context, id int64) error
	ListByRoomAndRange(ctx context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error)
	ListByRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// Service coordinates locks, transactions and conflict detection.
type Service struct {
	repo          Repository
	detector      *conflict.Detector
	locker        lock.Locker
	clock         clock.Clock
	bus           *events.EventBus
	logger        *zerolog.Logger
	defaultStatus models.Status
	loc           *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultStatus sets the status of reservations created without one.
func WithDefaultStatus(status models.Status) Option {
	return func(s *Service) {
		if status == models.StatusPending || status == models.StatusConfirmed {
			s.defaultStatus = status
		}
	}
}

// WithEventBus publishes lifecycle events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLocation sets the operating timezone returned times are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService wires a reservation service. A nil locker falls back to an in-process one.
func NewService(repo Repository, locker lock.Locker, clk clock.Clock, logger *zerolog.Logger, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Service{
		repo:          repo,
		detector:      conflict.NewDetector(repo),
		locker:        locker,
		clock:         clk,
		logger:        logger,
		defaultStatus: models.StatusConfirmed,
		loc:           time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detector exposes the conflict detector, e.g. to back slot availability.
func (s *Service) Detector() *conflict.Detector {
	return s.detector
}

// Location returns the operating timezone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// CreateInput holds the caller-supplied fields of a new reservation.
type CreateInput struct {
	RoomID      int64
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Organizer   string
	Attendees   []string
	// Status is optional; the configured default applies when empty.
	Status models.Status
}

// Create stores a new reservation if its interval is free in the room.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Reservation, error) {
	r := models.Reservation{
		RoomID:      in.RoomID,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Organizer:   in.Organizer,
		Attendees:   in.Attendees,
		Status:      in.Status,
	}
	if r.Status == "" {
		r.Status = s.defaultStatus
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return models.Reservation{}, err
	}
	if r.Status == models.StatusCancelled {
		return models.Reservation{}, models.NewValidationError("status", "must be pending or confirmed on create")
	}

	unlock, err := lock.LockRooms(ctx, s.locker, r.RoomID)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("lock room %d: %w", r.RoomID, err)
	}
	defer unlock()

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureBookable(txCtx, r.RoomID); err != nil {
			return err
		}
		if err := s.checkConflict(txCtx, r.RoomID, r.StartTime, r.EndTime, 0); err != nil {
			return err
		}

		now := s.clock.Now()
		r.CreatedAt = now
		r.UpdatedAt = now
		return s.repo.InsertReservation(txCtx, &r)
	})
	if err != nil {
		s.logRejected(err, "create", r)
		return models.Reservation{}, err
	}

	metrics.IncReservationCreated(string(r.Status))
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("room_id", r.RoomID).
		Time("start", r.StartTime).
		Time("end", r.EndTime).
		Str("status", string(r.Status)).
		Msg("reservation created")

	r = s.localize(r)
	s.bus.Publish(events.Event{Type: events.ReservationCreated, Reservation: r})
	return r, nil
}

// Changes lists the fields an update sets; nil fields are left unchanged.
type Changes struct {
	RoomID      *int64
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Organizer   *string
	Attendees   *[]string
	Status      *models.Status
}

func (c Changes) empty() bool {
	return c.RoomID == nil && c.Title == nil && c.Description == nil && c.StartTime == nil &&
		c.EndTime == nil && c.Organizer == nil && c.Attendees == nil && c.Status == nil
}

func (c Changes) apply(r models.Reservation) models.Reservation {
	if c.RoomID != nil {
		r.RoomID = *c.RoomID
	}
	if c.Title != nil {
		r.Title = *c.Title
	}
	if c.Description != nil {
		r.Description = *c.Description
	}
	if c.StartTime != nil {
		r.StartTime = *c.StartTime
	}
	if c.EndTime != nil {
		r.EndTime = *c.EndTime
	}
	if c.Organizer != nil {
		r.Organizer = *c.Organizer
	}
	if c.Attendees != nil {
		r.Attendees = append([]string(nil), (*c.Attendees)...)
	}
	if c.Status != nil {
		r.Status = *c.Status
	}
	return r
}

// maxRoomMoves bounds how often Update re-locks when another writer moves the
// reservation to a different room between the read and the lock.
const maxRoomMoves = 3

// Update applies changes to a reservation. Moving it to another room or time
// re-runs conflict detection, ignoring the reservation itself.
func (s *Service) Update(ctx context.Context, id int64, changes Changes) (models.Reservation, error) {
	if changes.empty() {
		return s.Get(ctx, id)
	}

	for attempt := 0; attempt < maxRoomMoves; attempt++ {
		current, err := s.repo.GetReservation(ctx, id)
		if err != nil {
			return models.Reservation{}, err
		}

		updated, previous, moved, err := s.updateLocked(ctx, id, current.RoomID, changes)
		if moved {
			continue
		}
		if err != nil {
			s.logRejected(err, "update", previous)
			return models.Reservation{}, err
		}
		if updated.UpdatedAt.Equal(previous.UpdatedAt) {
			// Nothing changed.
			return s.localize(updated), nil
		}

		metrics.IncReservationUpdated()
		if previous.Status != updated.Status && updated.Status == models.StatusCancelled {
			metrics.IncReservationCancelled()
		}
		s.logger.Info().
			Int64("reservation_id", updated.ID).
			Int64("room_id", updated.RoomID).
			Time("start", updated.StartTime).
			Time("end", updated.EndTime).
			Str("status", string(updated.Status)).
			Msg("reservation updated")

		updated = s.localize(updated)
		s.bus.Publish(events.Event{Type: updateEventType(previous.Status, updated.Status), Reservation: updated, Previous: s.localize(previous)})
		return updated, nil
	}
	return models.Reservation{}, fmt.Errorf("update reservation %d: room changed concurrently", id)
}

func (s *Service) updateLocked(ctx context.Context, id, lockedRoom int64, changes Changes) (updated, previous models.Reservation, moved bool, err error) {
	rooms := []int64{lockedRoom}
	if changes.RoomID != nil {
		rooms = append(rooms, *changes.RoomID)
	}
	unlock, err := lock.LockRooms(ctx, s.locker, rooms...)
	if err != nil {
		return updated, previous, false, fmt.Errorf("lock rooms: %w", err)
	}
	defer unlock()

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetReservation(txCtx, id)
		if err != nil {
			return err
		}
		previous = current
		if current.RoomID != lockedRoom {
			moved = true
			return nil
		}

		next := changes.apply(current)
		next.Normalize()
		if err := next.Validate(); err != nil {
			return err
		}

		if current.Status == models.StatusCancelled {
			return &models.InvalidTransitionError{From: current.Status, To: next.Status}
		}
		if next.Status != current.Status {
			if err := models.CheckTransition(current.Status, next.Status); err != nil {
				return err
			}
		}

		if !changed(current, next) {
			updated = current
			return nil
		}

		relocated := next.RoomID != current.RoomID ||
			!next.StartTime.Equal(current.StartTime) ||
			!next.EndTime.Equal(current.EndTime)
		if relocated && next.IsActive() {
			if next.RoomID != current.RoomID {
				if err := s.ensureBookable(txCtx, next.RoomID); err != nil {
					return err
				}
			}
			if err := s.checkConflict(txCtx, next.RoomID, next.StartTime, next.EndTime, id); err != nil {
				return err
			}
		}

		next.UpdatedAt = s.clock.Now()
		if !next.UpdatedAt.After(current.UpdatedAt) {
			next.UpdatedAt = current.UpdatedAt.Add(time.Nanosecond)
		}
		if err := s.repo.UpdateReservation(txCtx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, previous, moved, err
}

func changed(a, b models.Reservation) bool {
	if a.RoomID != b.RoomID || a.Title != b.Title || a.Description != b.Description ||
		a.Organizer != b.Organizer || a.Status != b.Status ||
		!a.StartTime.Equal(b.StartTime) || !a.EndTime.Equal(b.EndTime) ||
		len(a.Attendees) != len(b.Attendees) {
		return true
	}
	for i := range a.Attendees {
		if a.Attendees[i] != b.Attendees[i] {
			return true
		}
	}
	return false
}

func updateEventType(from, to models.Status) string {
	switch {
	case from != to && to == models.StatusCancelled:
		return events.ReservationCancelled
	case from != to && to == models.StatusConfirmed:
		return events.ReservationConfirmed
	default:
		return events.ReservationUpdated
	}
}

// Cancel moves a reservation to cancelled, releasing its interval.
// Cancelling an already cancelled reservation is an invalid transition.
func (s *Service) Cancel(ctx context.Context, id int64) (models.Reservation, error) {
	r, err := s.transition(ctx, id, models.StatusCancelled)
	if err != nil {
		return models.Reservation{}, err
	}
	metrics.IncReservationCancelled()
	s.bus.Publish(events.Event{Type: events.ReservationCancelled, Reservation: r})
	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (s *Service) Confirm(ctx context.Context, id int64) (models.Reservation, error) {
	r, err := s.transition(ctx, id, models.StatusConfirmed)
	if err != nil {
		return models.Reservation{}, err
	}
	metrics.IncReservationUpdated()
	s.bus.Publish(events.Event{Type: events.ReservationConfirmed, Reservation: r})
	return r, nil
}

func (s *Service) transition(ctx context.Context, id int64, to models.Status) (models.Reservation, error) {
	var result models.Reservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetReservation(txCtx, id)
		if err != nil {
			return err
		}
		if err := models.CheckTransition(current.Status, to); err != nil {
			return err
		}

		current.Status = to
		current.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateReservation(txCtx, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("reservation_id", id).Str("to", string(to)).Msg("status change rejected")
		return models.Reservation{}, err
	}

	s.logger.Info().Int64("reservation_id", id).Str("status", string(to)).Msg("reservation status changed")
	return s.localize(result), nil
}

// Get returns a reservation by id.
func (s *Service) Get(ctx context.Context, id int64) (models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	return s.localize(r), nil
}

// Delete removes a reservation permanently. It is an administrative operation.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted models.Reservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservation(txCtx, id)
		if err != nil {
			return err
		}
		deleted = r
		return s.repo.DeleteReservation(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Warn().Int64("reservation_id", id).Int64("room_id", deleted.RoomID).Msg("reservation deleted")
	s.bus.Publish(events.Event{Type: events.ReservationDeleted, Reservation: s.localize(deleted)})
	return nil
}

// ListByRoomAndRange returns the room's reservations starting in [from, to),
// every status included, ordered by start time then id.
func (s *Service) ListByRoomAndRange(ctx context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	list, err := s.repo.ListByRoomAndRange(ctx, roomID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations of room %d: %w", roomID, err)
	}
	return s.localizeAll(list), nil
}

// ListByRange returns reservations of every room starting in [from, to).
func (s *Service) ListByRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	list, err := s.repo.ListByRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.localizeAll(list), nil
}

// MaxRangeDays caps the window of range listings.
const MaxRangeDays = 90

func validateRange(from, to time.Time) error {
	if from.IsZero() {
		return models.NewValidationError("from", "is required")
	}
	if to.IsZero() {
		return models.NewValidationError("to", "is required")
	}
	if to.Before(from) {
		return models.NewValidationError("to", "must not be before from")
	}
	if to.Sub(from) > MaxRangeDays*24*time.Hour {
		return models.NewValidationError("to", fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}
	return nil
}

func (s *Service) ensureBookable(ctx context.Context, roomID int64) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return models.NewValidationError("room_id", fmt.Sprintf("room %d is not active", roomID))
	}
	return nil
}

func (s *Service) checkConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) error {
	hit, err := s.detector.FindConflict(ctx, roomID, start, end, excludeID)
	if err != nil {
		return err
	}
	if hit != nil {
		metrics.IncReservationConflict()
		return &models.ConflictError{RoomID: roomID, Existing: s.localize(*hit)}
	}
	return nil
}

func (s *Service) logRejected(err error, op string, r models.Reservation) {
	switch {
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidTransition):
		s.logger.Debug().Err(err).Str("op", op).Int64("room_id", r.RoomID).Msg("reservation rejected")
	default:
		s.logger.Error().Err(err).Str("op", op).Int64("room_id", r.RoomID).Msg("reservation failed")
	}
}

func (s *Service) localize(r models.Reservation) models.Reservation {
	r.StartTime = r.StartTime.In(s.loc)
	r.EndTime = r.EndTime.In(s.loc)
	if !r.CreatedAt.IsZero() {
		r.CreatedAt = r.CreatedAt.In(s.loc)
	}
	if !r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.UpdatedAt.In(s.loc)
	}
	return r
}

func (s *Service) localizeAll(list []models.Reservation) []models.Reservation {
	for i := range list {
		list[i] = s.localize(list[i])
	}
	return list
}
