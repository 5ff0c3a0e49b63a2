// Package catalog manages the bookable rooms.
package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"roombook/internal/cache"
	"roombook/internal/clock"
	"roombook/internal/config"
	"roombook/internal/models"
	"roombook/internal/slots"
)

// Repository stores rooms.
type Repository interface {
	ListRooms(ctx context.Context, activeOnly bool) ([]models.Room, error)
	GetRoom(ctx context.Context, id int64) (models.Room, error)
	InsertRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room models.Room) error
	SyncRooms(ctx context.Context, rooms []models.Room, now time.Time) error
}

// Service reads and edits the room catalog, caching reads in Redis when configured.
type Service struct {
	repo     Repository
	cache    *cache.Rooms
	clock    clock.Clock
	logger   *zerolog.Logger
	fallback slots.ScheduleInfo
	seed     atomic.Pointer[config.RoomsConfig]
}

// NewService creates a catalog service. cache may be nil.
// fallback is the schedule of rooms rooms.yaml says nothing about.
func NewService(repo Repository, roomCache *cache.Rooms, clk clock.Clock, logger *zerolog.Logger, fallback slots.ScheduleInfo) *Service {
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{repo: repo, cache: roomCache, clock: clk, logger: logger, fallback: fallback}
}

// RoomInput holds editable room fields.
type RoomInput struct {
	Name        string
	Type        models.RoomType
	Capacity    int
	Description string
	Amenities   []string
	Location    string
	IsActive    *bool
}

// List returns rooms ordered by id.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Room, error) {
	if rooms, ok := s.cache.GetList(ctx, activeOnly); ok {
		return rooms, nil
	}

	rooms, err := s.repo.ListRooms(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	s.cache.SetList(ctx, activeOnly, rooms)
	return rooms, nil
}

// Get returns a room or a NotFoundError.
func (s *Service) Get(ctx context.Context, id int64) (models.Room, error) {
	if room, ok := s.cache.GetRoom(ctx, id); ok {
		return room, nil
	}

	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, err
	}
	s.cache.SetRoom(ctx, room)
	return room, nil
}

// Create adds a room. Names are unique regardless of case.
func (s *Service) Create(ctx context.Context, in RoomInput) (models.Room, error) {
	room := models.Room{
		Name:        in.Name,
		Type:        in.Type,
		Capacity:    in.Capacity,
		Description: in.Description,
		Amenities:   in.Amenities,
		Location:    in.Location,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	room.Normalize()
	if err := room.Validate(); err != nil {
		return models.Room{}, err
	}

	now := s.clock.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	if err := s.repo.InsertRoom(ctx, &room); err != nil {
		return models.Room{}, err
	}

	s.cache.Invalidate(ctx, room.ID)
	s.logger.Info().Int64("room_id", room.ID).Str("name", room.Name).Msg("room created")
	return room, nil
}

// Update replaces the editable fields of a room.
func (s *Service) Update(ctx context.Context, id int64, in RoomInput) (models.Room, error) {
	current, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, err
	}

	room := current
	room.Name = in.Name
	room.Type = in.Type
	room.Capacity = in.Capacity
	room.Description = in.Description
	room.Amenities = in.Amenities
	room.Location = in.Location
	if in.IsActive != nil {
		room.IsActive = *in.IsActive
	}
	room.Normalize()
	if err := room.Validate(); err != nil {
		return models.Room{}, err
	}

	room.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return models.Room{}, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info().Int64("room_id", id).Msg("room updated")
	return room, nil
}

// Deactivate hides a room from new reservations. Existing reservations stay.
func (s *Service) Deactivate(ctx context.Context, id int64) (models.Room, error) {
	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, err
	}
	if !room.IsActive {
		return room, nil
	}

	room.IsActive = false
	room.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRoom(ctx, room); err != nil {
		return models.Room{}, err
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Info().Int64("room_id", id).Msg("room deactivated")
	return room, nil
}

// SyncFromConfig applies rooms.yaml: listed rooms are upserted, the rest deactivated.
// The config also becomes the source of per-room schedules.
func (s *Service) SyncFromConfig(ctx context.Context, cfg *config.RoomsConfig) error {
	if cfg == nil {
		return fmt.Errorf("rooms config is nil")
	}

	rooms := cfg.Models()
	for _, room := range rooms {
		if err := room.Validate(); err != nil {
			return fmt.Errorf("room %d: %w", room.ID, err)
		}
	}

	if err := s.repo.SyncRooms(ctx, rooms, s.clock.Now()); err != nil {
		return fmt.Errorf("sync rooms: %w", err)
	}
	s.seed.Store(cfg)

	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to flush room cache")
	}
	s.logger.Info().Int("rooms", len(rooms)).Msg("room catalog synced from config")
	return nil
}

// Schedule returns the bookable hours of a room on date.
func (s *Service) Schedule(roomID int64, date time.Time) slots.ScheduleInfo {
	return s.seed.Load().Schedule(roomID, date, s.fallback)
}
