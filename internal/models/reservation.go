package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// transitions lists allowed moves; cancelled is terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// CanTransition checks if moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransitionError if from→to is not allowed.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// Reservation is a booking of a room for a half-open interval [StartTime, EndTime).
type Reservation struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"room_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Organizer   string    `json:"organizer"`
	Attendees   []string  `json:"attendees"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive reports whether the reservation still holds its interval.
func (r *Reservation) IsActive() bool {
	return r.Status != StatusCancelled
}

// Duration returns the length of the reserved interval.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// OverlapsWith reports whether both intervals share at least one instant.
// End boundaries are exclusive, so back-to-back reservations do not overlap.
func (r *Reservation) OverlapsWith(other *Reservation) bool {
	return r.StartTime.Before(other.EndTime) && other.StartTime.Before(r.EndTime)
}

// ContainsTime checks if t falls within [StartTime, EndTime).
func (r *Reservation) ContainsTime(t time.Time) bool {
	return !t.Before(r.StartTime) && t.Before(r.EndTime)
}

// Normalize trims text fields and drops blank attendees.
func (r *Reservation) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Organizer = strings.TrimSpace(r.Organizer)
	attendees := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}
	r.Attendees = attendees
}

// Validate checks the fields a reservation must always satisfy.
func (r *Reservation) Validate() error {
	if r.RoomID <= 0 {
		return NewValidationError("room_id", "is required")
	}
	if r.Title == "" {
		return NewValidationError("title", "is required")
	}
	if r.Organizer == "" {
		return NewValidationError("organizer", "is required")
	}
	if !r.Status.Valid() {
		return NewValidationError("status", "must be one of pending, confirmed, cancelled")
	}
	return ValidateInterval(r.StartTime, r.EndTime)
}

// ValidateInterval rejects missing bounds and empty or inverted intervals.
func ValidateInterval(start, end time.Time) error {
	if start.IsZero() {
		return NewValidationError("start_time", "is required")
	}
	if end.IsZero() {
		return NewValidationError("end_time", "is required")
	}
	if !start.Before(end) {
		return NewValidationError("end_time", "must be after start_time")
	}
	return nil
}

// Interval returns the reserved bounds.
func (r *Reservation) Interval() (time.Time, time.Time) {
	return r.StartTime, r.EndTime
}
