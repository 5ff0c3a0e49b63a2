package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roombook/internal/models"
	"roombook/internal/slots"
)

// RoomConfig represents a single room of the catalog seed.
type RoomConfig struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	Type        string          `yaml:"type"`
	Capacity    int             `yaml:"capacity"`
	Description string          `yaml:"description"`
	Amenities   []string        `yaml:"amenities"`
	Location    string          `yaml:"location"`
	IsActive    *bool           `yaml:"is_active,omitempty"`
	Schedule    *ScheduleConfig `yaml:"schedule,omitempty"`
}

// ScheduleConfig represents the bookable hours of a room.
type ScheduleConfig struct {
	StartTime   string `yaml:"start_time"`            // "09:00"
	EndTime     string `yaml:"end_time"`              // "18:00"
	SlotMinutes int    `yaml:"slot_minutes"`          // 30
	BreakStart  string `yaml:"break_start,omitempty"` // "13:00"
	BreakEnd    string `yaml:"break_end,omitempty"`   // "14:00"
}

// HolidayConfig closes every room for a date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// RoomDefaults applies to rooms without their own settings.
type RoomDefaults struct {
	Schedule *ScheduleConfig `yaml:"schedule"`
	DaysOff  []int           `yaml:"days_off"` // 1=Mon, 7=Sun
}

// RoomsConfig is the root configuration for rooms.yaml.
type RoomsConfig struct {
	Rooms    []RoomConfig    `yaml:"rooms"`
	Defaults RoomDefaults    `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadRoomsConfig loads and validates the room catalog from a YAML file.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	ids := make(map[int64]bool)
	names := make(map[string]bool)

	for i, room := range c.Rooms {
		if room.ID <= 0 {
			return fmt.Errorf("room[%d]: id must be positive, got %d", i, room.ID)
		}
		if ids[room.ID] {
			return fmt.Errorf("room[%d]: duplicate id %d", i, room.ID)
		}
		ids[room.ID] = true

		name := strings.ToLower(strings.TrimSpace(room.Name))
		if name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("room[%d]: duplicate name '%s'", i, room.Name)
		}
		names[name] = true

		if room.Capacity <= 0 {
			return fmt.Errorf("room[%d]: capacity must be positive", i)
		}
		if room.Type != "" && !models.RoomType(room.Type).Valid() {
			return fmt.Errorf("room[%d]: unknown type '%s'", i, room.Type)
		}

		if room.Schedule != nil {
			if err := validateSchedule(room.Schedule, fmt.Sprintf("room[%d].schedule", i)); err != nil {
				return err
			}
		}
	}

	if c.Defaults.Schedule != nil {
		if err := validateSchedule(c.Defaults.Schedule, "defaults.schedule"); err != nil {
			return err
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	for i, d := range c.Defaults.DaysOff {
		if d < 1 || d > 7 {
			return fmt.Errorf("defaults.days_off[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, d)
		}
	}

	return nil
}

func validateSchedule(s *ScheduleConfig, prefix string) error {
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("%s.slot_minutes must be positive", prefix)
	}
	if _, err := slots.GenerateTimeSlots(slots.Window{Start: s.StartTime, End: s.EndTime}, time.Duration(s.SlotMinutes)*time.Minute); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}

	if s.BreakStart == "" && s.BreakEnd == "" {
		return nil
	}
	breakStart, err := slots.ParseClock(s.BreakStart)
	if err != nil {
		return fmt.Errorf("%s.break_start: %w", prefix, err)
	}
	breakEnd, err := slots.ParseClock(s.BreakEnd)
	if err != nil {
		return fmt.Errorf("%s.break_end: %w", prefix, err)
	}
	if breakEnd <= breakStart {
		return fmt.Errorf("%s: break_end must be after break_start", prefix)
	}
	start, _ := slots.ParseClock(s.StartTime)
	end, _ := slots.ParseClock(s.EndTime)
	if breakStart < start || breakEnd > end {
		return fmt.Errorf("%s: break must be within working hours", prefix)
	}
	return nil
}

func (c *RoomsConfig) applyDefaults() {
	for i := range c.Rooms {
		if c.Rooms[i].Schedule == nil && c.Defaults.Schedule != nil {
			c.Rooms[i].Schedule = c.Defaults.Schedule
		}
		if c.Rooms[i].Type == "" {
			c.Rooms[i].Type = string(models.RoomTypeMeeting)
		}
	}
}

// Models converts the seed into catalog rooms.
func (c *RoomsConfig) Models() []models.Room {
	out := make([]models.Room, 0, len(c.Rooms))
	for _, rc := range c.Rooms {
		active := true
		if rc.IsActive != nil {
			active = *rc.IsActive
		}
		room := models.Room{
			ID:          rc.ID,
			Name:        rc.Name,
			Type:        models.RoomType(rc.Type),
			Capacity:    rc.Capacity,
			Description: rc.Description,
			Amenities:   rc.Amenities,
			Location:    rc.Location,
			IsActive:    active,
		}
		room.Normalize()
		out = append(out, room)
	}
	return out
}

// Schedule returns the slot schedule of a room on date. Rooms without their own
// schedule use fallback. Days off and holidays close the day.
func (c *RoomsConfig) Schedule(roomID int64, date time.Time, fallback slots.ScheduleInfo) slots.ScheduleInfo {
	if c == nil {
		return fallback
	}

	info := fallback
	if c.Defaults.Schedule != nil {
		info = scheduleInfo(c.Defaults.Schedule)
	}
	for _, rc := range c.Rooms {
		if rc.ID == roomID && rc.Schedule != nil {
			info = scheduleInfo(rc.Schedule)
			break
		}
	}

	weekday := int(date.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	for _, d := range c.Defaults.DaysOff {
		if d == weekday {
			info.IsClosed = true
		}
	}
	day := date.Format("2006-01-02")
	for _, h := range c.Holidays {
		if h.Date == day {
			info.IsClosed = true
		}
	}
	return info
}

func scheduleInfo(s *ScheduleConfig) slots.ScheduleInfo {
	return slots.ScheduleInfo{
		Window:       slots.Window{Start: s.StartTime, End: s.EndTime},
		BreakStart:   s.BreakStart,
		BreakEnd:     s.BreakEnd,
		SlotDuration: time.Duration(s.SlotMinutes) * time.Minute,
	}
}
