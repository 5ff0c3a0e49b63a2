package slots

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"roombook/internal/clock"
	"roombook/internal/models"
)

const minutesPerDay = 24 * 60

// Window is an operating window expressed as "HH:MM" bounds; End may be "24:00".
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Slot represents a dated time slot.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// SlotInfo is a simplified representation for API responses.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "10:30"
	Available bool   `json:"available"`
}

// ScheduleInfo contains schedule parameters for a day.
type ScheduleInfo struct {
	Window       Window
	BreakStart   string // "13:00" (optional)
	BreakEnd     string // "14:00" (optional)
	SlotDuration time.Duration
	IsClosed     bool
}

// BookingChecker checks if an interval of a room is taken.
type BookingChecker interface {
	IsSlotBooked(ctx context.Context, roomID int64, start, end time.Time) (bool, error)
}

// GenerateTimeSlots returns the ordered start-of-slot labels inside the window.
// A label is emitted only when the whole slot fits before the window end.
func GenerateTimeSlots(window Window, granularity time.Duration) ([]string, error) {
	start, end, step, err := parseWindow(window, granularity)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, (end-start)/step)
	for cursor := start; cursor+step <= end; cursor += step {
		labels = append(labels, formatMinutes(cursor))
	}
	return labels, nil
}

// GenerateEndTimes returns the labels a slot may end at: Start+granularity … End.
func GenerateEndTimes(window Window, granularity time.Duration) ([]string, error) {
	start, end, step, err := parseWindow(window, granularity)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, (end-start)/step)
	for cursor := start + step; cursor <= end; cursor += step {
		labels = append(labels, formatMinutes(cursor))
	}
	return labels, nil
}

func parseWindow(window Window, granularity time.Duration) (start, end, step int, err error) {
	if granularity <= 0 {
		return 0, 0, 0, models.NewValidationError("granularity", "must be positive")
	}
	if granularity%time.Minute != 0 {
		return 0, 0, 0, models.NewValidationError("granularity", "must be a whole number of minutes")
	}

	start, err = ParseClock(window.Start)
	if err != nil {
		return 0, 0, 0, models.NewValidationError("start", err.Error())
	}
	end, err = ParseClock(window.End)
	if err != nil {
		return 0, 0, 0, models.NewValidationError("end", err.Error())
	}
	if end <= start {
		return 0, 0, 0, models.NewValidationError("end", "must be after start")
	}
	return start, end, int(granularity / time.Minute), nil
}

// ParseClock converts "HH:MM" into minutes since midnight. "24:00" is accepted.
// The hour has one or two digits, the minutes exactly two.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format %q, expected HH:MM", s)
	}
	if n := len(parts[0]); n < 1 || n > 2 || !allDigits(parts[0]) {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if len(parts[1]) != 2 || !allDigits(parts[1]) {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	total := hour*60 + minute
	if minute > 59 || total > minutesPerDay {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return total, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Generator builds dated slots for a room and overlays availability.
type Generator struct {
	checker BookingChecker
	clock   clock.Clock
}

// NewGenerator creates a new slot generator. A nil checker marks every slot free.
func NewGenerator(checker BookingChecker, clk clock.Clock) *Generator {
	if clk == nil {
		clk = clock.NewSystem(nil)
	}
	return &Generator{checker: checker, clock: clk}
}

// DaySlots generates all slots of date for roomID based on schedule.
// Slots overlapping the break are skipped; booked and past slots are unavailable.
func (g *Generator) DaySlots(ctx context.Context, roomID int64, date time.Time, schedule ScheduleInfo) ([]Slot, error) {
	if schedule.IsClosed {
		return nil, nil
	}

	if schedule.SlotDuration <= 0 {
		schedule.SlotDuration = 30 * time.Minute
	}

	labels, err := GenerateTimeSlots(schedule.Window, schedule.SlotDuration)
	if err != nil {
		return nil, err
	}

	var breakStart, breakEnd time.Time
	hasBreak := schedule.BreakStart != "" && schedule.BreakEnd != ""
	if hasBreak {
		if breakStart, err = timeOnDate(date, schedule.BreakStart); err != nil {
			return nil, models.NewValidationError("break_start", err.Error())
		}
		if breakEnd, err = timeOnDate(date, schedule.BreakEnd); err != nil {
			return nil, models.NewValidationError("break_end", err.Error())
		}
	}

	now := g.clock.Now()
	slots := make([]Slot, 0, len(labels))

	for _, label := range labels {
		slotStart, err := timeOnDate(date, label)
		if err != nil {
			return nil, err
		}
		slotEnd := slotStart.Add(schedule.SlotDuration)

		if hasBreak && slotStart.Before(breakEnd) && breakStart.Before(slotEnd) {
			continue
		}

		booked := false
		if g.checker != nil {
			booked, err = g.checker.IsSlotBooked(ctx, roomID, slotStart, slotEnd)
			if err != nil {
				return nil, fmt.Errorf("check slot: %w", err)
			}
		}

		slots = append(slots, Slot{
			StartTime: slotStart,
			EndTime:   slotEnd,
			Available: !booked && !slotStart.Before(now),
		})
	}

	return slots, nil
}

func timeOnDate(date time.Time, clockStr string) (time.Time, error) {
	minutes, err := ParseClock(clockStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location()), nil
}

// ToSlotInfo converts slots to SlotInfo for responses.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:     s.StartTime.Format("15:04"),
			End:       s.EndTime.Format("15:04"),
			Available: s.Available,
		}
	}
	return result
}

// AvailableSlots returns only available slots.
func AvailableSlots(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// ConsecutiveRuns groups available slots into runs of back-to-back slots.
func ConsecutiveRuns(slots []Slot) [][]Slot {
	available := AvailableSlots(slots)
	if len(available) == 0 {
		return nil
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].StartTime.Before(available[j].StartTime)
	})

	var groups [][]Slot
	current := []Slot{available[0]}

	for i := 1; i < len(available); i++ {
		if available[i].StartTime.Equal(current[len(current)-1].EndTime) {
			current = append(current, available[i])
		} else {
			groups = append(groups, current)
			current = []Slot{available[i]}
		}
	}
	return append(groups, current)
}

// DurationOptions lists the bookable durations starting at startTime,
// one per additional back-to-back available slot.
func DurationOptions(slots []Slot, startTime time.Time) []time.Duration {
	startIdx := -1
	for i, s := range slots {
		if s.StartTime.Equal(startTime) && s.Available {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil
	}

	var options []time.Duration
	for i := startIdx; i < len(slots); i++ {
		if !slots[i].Available {
			break
		}
		if i > startIdx && !slots[i].StartTime.Equal(slots[i-1].EndTime) {
			break
		}
		options = append(options, slots[i].EndTime.Sub(startTime))
	}
	return options
}
