// Package conflict decides whether a requested interval collides with
// existing reservations of the same room.
package conflict

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/models"
)

// Source returns reservations of a room that may overlap [start, end).
// Implementations are allowed to over-fetch; the detector re-checks every candidate.
type Source interface {
	ListActiveOverlapping(ctx context.Context, roomID int64, start, end time.Time) ([]models.Reservation, error)
}

// Detector finds overlaps between a requested interval and stored reservations.
type Detector struct {
	source Source
}

// NewDetector creates a detector reading candidates from source.
func NewDetector(source Source) *Detector {
	return &Detector{source: source}
}

// Overlaps reports whether [s1, e1) and [s2, e2) intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FirstOverlap returns the first non-cancelled reservation overlapping [start, end),
// skipping excludeID. It returns nil when the interval is free.
func FirstOverlap(existing []models.Reservation, start, end time.Time, excludeID int64) *models.Reservation {
	for i := range existing {
		r := &existing[i]
		if !r.IsActive() || (excludeID != 0 && r.ID == excludeID) {
			continue
		}
		if Overlaps(start, end, r.StartTime, r.EndTime) {
			return r
		}
	}
	return nil
}

// FindConflict returns the reservation blocking [start, end) on roomID, or nil.
// excludeID (0 for none) lets an update skip the reservation being changed.
func (d *Detector) FindConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) (*models.Reservation, error) {
	if err := models.ValidateInterval(start, end); err != nil {
		return nil, err
	}

	candidates, err := d.source.ListActiveOverlapping(ctx, roomID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list reservations for room %d: %w", roomID, err)
	}

	sameRoom := candidates[:0:0]
	for _, c := range candidates {
		if c.RoomID == roomID {
			sameRoom = append(sameRoom, c)
		}
	}

	hit := FirstOverlap(sameRoom, start, end, excludeID)
	if hit == nil {
		return nil, nil
	}
	found := *hit
	return &found, nil
}

// HasConflict reports whether [start, end) overlaps another active reservation on roomID.
func (d *Detector) HasConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) (bool, error) {
	hit, err := d.FindConflict(ctx, roomID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return hit != nil, nil
}

// IsSlotBooked lets the detector back the slot generator's availability overlay.
func (d *Detector) IsSlotBooked(ctx context.Context, roomID int64, start, end time.Time) (bool, error) {
	return d.HasConflict(ctx, roomID, start, end, 0)
}
