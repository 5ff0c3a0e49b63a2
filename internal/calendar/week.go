// Package calendar projects reservations onto a Monday-first week grid.
package calendar

import (
	"sort"
	"time"

	"roombook/internal/clock"
	"roombook/internal/models"
)

// DaysInWeek is the number of columns of a grid.
const DaysInWeek = 7

// WeekStart returns Monday 00:00 of the week containing anchor, in anchor's location.
func WeekStart(anchor time.Time) time.Time {
	offset := int(anchor.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset = 6 // Sunday closes the week
	}
	day := anchor.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, anchor.Location())
}

// WeekDays returns the seven midnights Monday..Sunday of the anchor's week.
func WeekDays(anchor time.Time) [DaysInWeek]time.Time {
	var days [DaysInWeek]time.Time
	start := WeekStart(anchor)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// PreviousWeek shifts the anchor back by seven days.
func PreviousWeek(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, -DaysInWeek)
}

// NextWeek shifts the anchor forward by seven days.
func NextWeek(anchor time.Time) time.Time {
	return anchor.AddDate(0, 0, DaysInWeek)
}

// CurrentWeek resets the anchor to today.
func CurrentWeek(clk clock.Clock) time.Time {
	return clk.Now()
}

// Cell is one day of one room.
type Cell struct {
	Date         time.Time            `json:"date"`
	Reservations []models.Reservation `json:"reservations"`
}

// Row holds the week of a single room.
type Row struct {
	Room  models.Room      `json:"room"`
	Cells [DaysInWeek]Cell `json:"cells"`
}

// Grid is a day×room projection of a week.
type Grid struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Rows      []Row     `json:"rows"`
}

// Project builds the grid of the week containing weekAnchor.
// Rows follow the order of rooms; a reservation lands in the cell of the day its
// StartTime falls on (in the anchor's location), even when it runs past midnight.
// Reservations outside the week or of rooms not listed are left out.
func Project(weekAnchor time.Time, rooms []models.Room, reservationsByRoom map[int64][]models.Reservation) Grid {
	days := WeekDays(weekAnchor)
	loc := weekAnchor.Location()
	weekStart := days[0]
	weekEnd := weekStart.AddDate(0, 0, DaysInWeek)

	grid := Grid{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Rows:      make([]Row, 0, len(rooms)),
	}

	for _, room := range rooms {
		row := Row{Room: room}
		for i := range row.Cells {
			row.Cells[i] = Cell{Date: days[i], Reservations: []models.Reservation{}}
		}

		for _, res := range reservationsByRoom[room.ID] {
			if res.RoomID != room.ID {
				continue
			}
			start := res.StartTime.In(loc)
			if start.Before(weekStart) || !start.Before(weekEnd) {
				continue
			}
			idx := dayIndex(days, start)
			row.Cells[idx].Reservations = append(row.Cells[idx].Reservations, res)
		}

		for i := range row.Cells {
			SortByStart(row.Cells[i].Reservations)
		}
		grid.Rows = append(grid.Rows, row)
	}

	return grid
}

func dayIndex(days [DaysInWeek]time.Time, t time.Time) int {
	for i := DaysInWeek - 1; i >= 0; i-- {
		if !t.Before(days[i]) {
			return i
		}
	}
	return 0
}

// SortByStart orders reservations by start time, then by id.
func SortByStart(list []models.Reservation) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}

// GroupByRoom indexes reservations by room id, preserving input order.
func GroupByRoom(reservations []models.Reservation) map[int64][]models.Reservation {
	out := make(map[int64][]models.Reservation)
	for _, r := range reservations {
		out[r.RoomID] = append(out[r.RoomID], r)
	}
	return out
}

// Days returns the dates of the grid's columns.
func (g *Grid) Days() [DaysInWeek]time.Time {
	return WeekDays(g.WeekStart)
}

// Cell returns the cell of roomID on the given weekday, or nil if the room is absent.
func (g *Grid) Cell(roomID int64, day time.Weekday) *Cell {
	idx := (int(day) + 6) % DaysInWeek // Monday = 0
	for i := range g.Rows {
		if g.Rows[i].Room.ID == roomID {
			return &g.Rows[i].Cells[idx]
		}
	}
	return nil
}

// Count returns the number of reservations placed on the grid.
func (g *Grid) Count() int {
	n := 0
	for _, row := range g.Rows {
		for _, c := range row.Cells {
			n += len(c.Reservations)
		}
	}
	return n
}
