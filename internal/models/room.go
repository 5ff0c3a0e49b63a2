package models

import (
	"strings"
	"time"
)

// RoomType classifies a bookable room.
type RoomType string

const (
	RoomTypeMeeting  RoomType = "meeting"
	RoomTypeTraining RoomType = "training"
	RoomTypeService  RoomType = "service"
	RoomTypeOther    RoomType = "other"
)

// Valid reports whether t is one of the known room types.
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeMeeting, RoomTypeTraining, RoomTypeService, RoomTypeOther:
		return true
	}
	return false
}

// Room is a bookable resource from the catalog.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        RoomType  `json:"type"`
	Capacity    int       `json:"capacity"`
	Description string    `json:"description"`
	Amenities   []string  `json:"amenities"`
	Location    string    `json:"location,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize trims text fields, defaults the type and deduplicates amenities.
func (r *Room) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	if r.Type == "" {
		r.Type = RoomTypeMeeting
	}
	r.Amenities = NormalizeAmenities(r.Amenities)
}

// Validate checks catalog constraints for a room.
func (r *Room) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "is required")
	}
	if !r.Type.Valid() {
		return NewValidationError("type", "must be one of meeting, training, service, other")
	}
	if r.Capacity <= 0 {
		return NewValidationError("capacity", "must be positive")
	}
	return nil
}

// NormalizeAmenities keeps the first occurrence of each non-blank amenity.
func NormalizeAmenities(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
