package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"roombook/internal/calendar"
	"roombook/internal/models"
)

func TestWriteWeek(t *testing.T) {
	wednesday := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	rooms := []models.Room{{ID: 1, Name: "R1"}, {ID: 2, Name: "R2"}}
	reservations := []models.Reservation{
		{ID: 7, RoomID: 1, Title: "Retro", Organizer: "alice", StartTime: wednesday, EndTime: wednesday.Add(time.Hour), Status: models.StatusConfirmed, Attendees: []string{"bob", "carol"}},
		{ID: 8, RoomID: 1, Title: "1:1", Organizer: "dave", StartTime: wednesday.Add(2 * time.Hour), EndTime: wednesday.Add(150 * time.Minute), Status: models.StatusPending},
	}
	grid := calendar.Project(wednesday, rooms, calendar.GroupByRoom(reservations))

	var buf bytes.Buffer
	require.NoError(t, WriteWeek(&buf, grid))
	assert.Equal(t, "calendar_2024-01-08.xlsx", FileName(grid))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Week 2024-01-08", "Reservations"}, f.GetSheetList())

	header, err := f.GetCellValue("Week 2024-01-08", "D1")
	require.NoError(t, err)
	assert.Equal(t, "Wed 10.01", header)

	cell, err := f.GetCellValue("Week 2024-01-08", "D2")
	require.NoError(t, err)
	assert.Equal(t, "14:00-15:00 Retro\n16:00-16:30 1:1 (pending)", cell)

	empty, err := f.GetCellValue("Week 2024-01-08", "D3")
	require.NoError(t, err)
	assert.Empty(t, empty)

	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"7", "R1", "Retro", "alice", "2024-01-10 14:00", "2024-01-10 15:00", "confirmed", "bob, carol"}, rows[1])
}

func TestWorkbook_RequiresSheet(t *testing.T) {
	wb := NewWorkbook()
	defer wb.Close()
	assert.Error(t, wb.WriteRow([]any{"x"}))
}
