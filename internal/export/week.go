package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"roombook/internal/calendar"
	"roombook/internal/models"
)

const dayLayout = "Mon 02.01"

// WriteWeek renders grid as a workbook with a room-by-day sheet and a flat
// list of the week's reservations.
func WriteWeek(wr io.Writer, grid calendar.Grid) error {
	wb := NewWorkbook()
	defer wb.Close()

	if err := writeGridSheet(wb, grid); err != nil {
		return err
	}
	if err := writeListSheet(wb, grid); err != nil {
		return err
	}
	return wb.Save(wr)
}

// FileName returns the download name of a week's workbook.
func FileName(grid calendar.Grid) string {
	return fmt.Sprintf("calendar_%s.xlsx", grid.WeekStart.Format("2006-01-02"))
}

func writeGridSheet(wb *Workbook, grid calendar.Grid) error {
	if err := wb.AddSheet("Week " + grid.WeekStart.Format("2006-01-02")); err != nil {
		return err
	}

	header := []string{"Room"}
	for _, day := range grid.Days() {
		header = append(header, day.Format(dayLayout))
	}
	if err := wb.WriteHeader(header); err != nil {
		return err
	}

	for _, row := range grid.Rows {
		values := []any{row.Room.Name}
		for _, cell := range row.Cells {
			lines := make([]string, 0, len(cell.Reservations))
			for _, r := range cell.Reservations {
				lines = append(lines, cellLine(r, grid.WeekStart.Location()))
			}
			values = append(values, strings.Join(lines, "\n"))
		}
		if err := wb.WriteWrappedRow(values); err != nil {
			return err
		}
	}

	if err := wb.SetColumnWidth("A", "A", 20); err != nil {
		return err
	}
	return wb.SetColumnWidth("B", "H", 28)
}

func cellLine(r models.Reservation, loc *time.Location) string {
	line := fmt.Sprintf("%s-%s %s", r.StartTime.In(loc).Format("15:04"), r.EndTime.In(loc).Format("15:04"), r.Title)
	if r.Status != models.StatusConfirmed {
		line += fmt.Sprintf(" (%s)", r.Status)
	}
	return line
}

func writeListSheet(wb *Workbook, grid calendar.Grid) error {
	if err := wb.AddSheet("Reservations"); err != nil {
		return err
	}
	if err := wb.WriteHeader([]string{"ID", "Room", "Title", "Organizer", "Start", "End", "Status", "Attendees"}); err != nil {
		return err
	}

	loc := grid.WeekStart.Location()
	for _, row := range grid.Rows {
		for _, cell := range row.Cells {
			for _, r := range cell.Reservations {
				if err := wb.WriteRow([]any{
					r.ID,
					row.Room.Name,
					r.Title,
					r.Organizer,
					r.StartTime.In(loc).Format("2006-01-02 15:04"),
					r.EndTime.In(loc).Format("2006-01-02 15:04"),
					string(r.Status),
					strings.Join(r.Attendees, ", "),
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
