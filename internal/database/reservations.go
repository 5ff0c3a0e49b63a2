package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roombook/internal/models"
)

const reservationColumns = `id, room_id, title, description, start_time, end_time, organizer, attendees, status, created_at, updated_at`

func scanReservation(row rowScanner) (models.Reservation, error) {
	var (
		r                          models.Reservation
		start, end, attendees      string
		status, createdAt, updated string
	)
	if err := row.Scan(&r.ID, &r.RoomID, &r.Title, &r.Description, &start, &end,
		&r.Organizer, &attendees, &status, &createdAt, &updated); err != nil {
		return models.Reservation{}, err
	}
	r.Status = models.Status(status)
	if err := json.Unmarshal([]byte(attendees), &r.Attendees); err != nil {
		return models.Reservation{}, fmt.Errorf("decode attendees of reservation %d: %w", r.ID, err)
	}

	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&r.StartTime, start}, {&r.EndTime, end}, {&r.CreatedAt, createdAt}, {&r.UpdatedAt, updated},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return models.Reservation{}, fmt.Errorf("decode time of reservation %d: %w", r.ID, err)
		}
	}
	return r, nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (models.Reservation, error) {
	row := db.conn(ctx).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reservation{}, models.NewNotFoundError("reservation", id)
	}
	if err != nil {
		return models.Reservation{}, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return r, nil
}

// ListActiveOverlapping returns non-cancelled reservations of roomID intersecting [start, end).
func (db *DB) ListActiveOverlapping(ctx context.Context, roomID int64, start, end time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE room_id = ? AND start_time < ? AND end_time > ? AND status <> ?
		ORDER BY start_time, id`,
		roomID, formatTime(end), formatTime(start), string(models.StatusCancelled),
	)
}

// ListByRoomAndRange returns reservations of roomID starting in [from, to), all statuses.
func (db *DB) ListByRoomAndRange(ctx context.Context, roomID int64, from, to time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE room_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time, id`,
		roomID, formatTime(from), formatTime(to),
	)
}

// ListByRange returns reservations of every room starting in [from, to).
func (db *DB) ListByRange(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time, id`,
		formatTime(from), formatTime(to),
	)
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	list := make([]models.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (db *DB) InsertReservation(ctx context.Context, r *models.Reservation) error {
	attendees, err := json.Marshal(nonNil(r.Attendees))
	if err != nil {
		return err
	}

	res, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO reservations (room_id, title, description, start_time, end_time, organizer, attendees, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.Title, r.Description, formatTime(r.StartTime), formatTime(r.EndTime),
		r.Organizer, string(attendees), string(r.Status), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	r.ID, err = res.LastInsertId()
	return err
}

func (db *DB) UpdateReservation(ctx context.Context, r models.Reservation) error {
	attendees, err := json.Marshal(nonNil(r.Attendees))
	if err != nil {
		return err
	}

	res, err := db.conn(ctx).ExecContext(ctx, `
		UPDATE reservations
		SET room_id = ?, title = ?, description = ?, start_time = ?, end_time = ?, organizer = ?,
			attendees = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		r.RoomID, r.Title, r.Description, formatTime(r.StartTime), formatTime(r.EndTime), r.Organizer,
		string(attendees), string(r.Status), formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("reservation", r.ID)
	}
	return nil
}

func (db *DB) DeleteReservation(ctx context.Context, id int64) error {
	res, err := db.conn(ctx).ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("reservation", id)
	}
	return nil
}
