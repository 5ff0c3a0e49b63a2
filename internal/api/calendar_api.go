package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"roombook/internal/calendar"
	"roombook/internal/export"
	"roombook/internal/models"
	"roombook/internal/slots"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CalendarResponse is the response of GET /api/calendar.
type CalendarResponse struct {
	WeekStart string         `json:"week_start"`
	WeekEnd   string         `json:"week_end"`
	PrevWeek  string         `json:"prev_week"`
	NextWeek  string         `json:"next_week"`
	Rows      []calendar.Row `json:"rows"`
}

// TimeSlotsResponse is the response of GET /api/time-slots.
type TimeSlotsResponse struct {
	StartTimes []string `json:"start_times"`
	EndTimes   []string `json:"end_times"`
}

// handleCalendar projects a week of reservations onto rooms.
// GET /api/calendar?week=YYYY-MM-DD&nav=prev|next|current&include_cancelled=true
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	grid, err := s.weekGrid(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		WeekStart: grid.WeekStart.Format(dateLayout),
		WeekEnd:   grid.WeekEnd.Format(dateLayout),
		PrevWeek:  calendar.PreviousWeek(grid.WeekStart).Format(dateLayout),
		NextWeek:  calendar.NextWeek(grid.WeekStart).Format(dateLayout),
		Rows:      grid.Rows,
	})
}

// handleCalendarExport downloads the projected week as an Excel workbook.
// GET /api/calendar/export?week=YYYY-MM-DD
func (s *HTTPServer) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	grid, err := s.weekGrid(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWeek(&buf, grid); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("export week: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(grid)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) weekGrid(r *http.Request) (calendar.Grid, error) {
	q := r.URL.Query()
	anchor, err := s.weekAnchor(q.Get("week"), q.Get("nav"))
	if err != nil {
		return calendar.Grid{}, err
	}
	return s.project(r.Context(), anchor, q.Get("include_cancelled") == "true")
}

func (s *HTTPServer) weekAnchor(week, nav string) (time.Time, error) {
	loc := s.reservations.Location()
	anchor := calendar.CurrentWeek(s.clock).In(loc)
	if week != "" {
		parsed, err := time.ParseInLocation(dateLayout, week, loc)
		if err != nil {
			return time.Time{}, models.NewValidationError("week", "must be YYYY-MM-DD")
		}
		anchor = parsed
	}

	switch nav {
	case "", "none":
	case "prev":
		anchor = calendar.PreviousWeek(anchor)
	case "next":
		anchor = calendar.NextWeek(anchor)
	case "current":
		anchor = calendar.CurrentWeek(s.clock).In(loc)
	default:
		return time.Time{}, models.NewValidationError("nav", "must be prev, next or current")
	}
	return anchor, nil
}

func (s *HTTPServer) project(ctx context.Context, anchor time.Time, includeCancelled bool) (calendar.Grid, error) {
	rooms, err := s.rooms.List(ctx, true)
	if err != nil {
		return calendar.Grid{}, err
	}

	start := calendar.WeekStart(anchor)
	list, err := s.reservations.ListByRange(ctx, start, start.AddDate(0, 0, calendar.DaysInWeek))
	if err != nil {
		return calendar.Grid{}, err
	}
	if !includeCancelled {
		active := list[:0]
		for _, res := range list {
			if res.IsActive() {
				active = append(active, res)
			}
		}
		list = active
	}

	return calendar.Project(anchor, rooms, calendar.GroupByRoom(list)), nil
}

// handleTimeSlots lists the slot start and end labels of an operating window.
// GET /api/time-slots?start=08:00&end=18:00&step=30
func (s *HTTPServer) handleTimeSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := s.opts.Window
	if v := q.Get("start"); v != "" {
		window.Start = v
	}
	if v := q.Get("end"); v != "" {
		window.End = v
	}

	step := s.opts.SlotDuration
	if v := q.Get("step"); v != "" {
		parsed, err := parseStep(v)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		step = parsed
	}

	starts, err := slots.GenerateTimeSlots(window, step)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ends, err := slots.GenerateEndTimes(window, step)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimeSlotsResponse{StartTimes: starts, EndTimes: ends})
}

// parseStep accepts whole minutes ("30") or a Go duration ("1h").
func parseStep(v string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(v); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, models.NewValidationError("step", "must be minutes or a duration like 30m")
	}
	return d, nil
}
