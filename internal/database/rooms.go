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

const roomColumns = `id, name, type, capacity, description, amenities, location, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (models.Room, error) {
	var (
		room                 models.Room
		roomType, amenities  string
		createdAt, updatedAt string
	)
	if err := row.Scan(&room.ID, &room.Name, &roomType, &room.Capacity, &room.Description,
		&amenities, &room.Location, &room.IsActive, &createdAt, &updatedAt); err != nil {
		return models.Room{}, err
	}
	room.Type = models.RoomType(roomType)
	if err := json.Unmarshal([]byte(amenities), &room.Amenities); err != nil {
		return models.Room{}, fmt.Errorf("decode amenities of room %d: %w", room.ID, err)
	}
	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (models.Room, error) {
	row := db.conn(ctx).QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, models.NewNotFoundError("room", id)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("get room %d: %w", id, err)
	}
	return room, nil
}

func (db *DB) ListRooms(ctx context.Context, activeOnly bool) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (db *DB) InsertRoom(ctx context.Context, room *models.Room) error {
	amenities, err := json.Marshal(nonNil(room.Amenities))
	if err != nil {
		return err
	}

	var id any
	if room.ID != 0 {
		id = room.ID
	}
	res, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO rooms (id, name, type, capacity, description, amenities, location, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, room.Name, string(room.Type), room.Capacity, room.Description, string(amenities),
		room.Location, room.IsActive, formatTime(room.CreatedAt), formatTime(room.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("name", "already exists")
		}
		return fmt.Errorf("insert room: %w", err)
	}

	if room.ID == 0 {
		if room.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) UpdateRoom(ctx context.Context, room models.Room) error {
	amenities, err := json.Marshal(nonNil(room.Amenities))
	if err != nil {
		return err
	}

	res, err := db.conn(ctx).ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, type = ?, capacity = ?, description = ?, amenities = ?, location = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		room.Name, string(room.Type), room.Capacity, room.Description, string(amenities),
		room.Location, room.IsActive, formatTime(room.UpdatedAt), room.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("name", "already exists")
		}
		return fmt.Errorf("update room %d: %w", room.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("room", room.ID)
	}
	return nil
}

// SyncRooms applies the configured catalog: rooms are upserted by id keeping
// their created_at, and rooms missing from the list are marked inactive.
func (db *DB) SyncRooms(ctx context.Context, rooms []models.Room, now time.Time) error {
	return db.WithTx(ctx, func(txCtx context.Context) error {
		conn := db.conn(txCtx)
		seen := make(map[int64]struct{}, len(rooms))

		for _, room := range rooms {
			amenities, err := json.Marshal(nonNil(room.Amenities))
			if err != nil {
				return err
			}

			_, err = conn.ExecContext(txCtx, `
				INSERT INTO rooms (id, name, type, capacity, description, amenities, location, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM rooms WHERE id = ?), ?), ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					type = excluded.type,
					capacity = excluded.capacity,
					description = excluded.description,
					amenities = excluded.amenities,
					location = excluded.location,
					is_active = excluded.is_active,
					updated_at = excluded.updated_at`,
				room.ID, room.Name, string(room.Type), room.Capacity, room.Description, string(amenities),
				room.Location, room.IsActive, room.ID, formatTime(now), formatTime(now),
			)
			if err != nil {
				if isUniqueViolation(err) {
					return models.NewValidationError("name", fmt.Sprintf("%q already used by another room", room.Name))
				}
				return fmt.Errorf("sync room %d: %w", room.ID, err)
			}
			seen[room.ID] = struct{}{}
		}

		rows, err := conn.QueryContext(txCtx, `SELECT id FROM rooms WHERE is_active = 1`)
		if err != nil {
			return err
		}
		var stale []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if _, ok := seen[id]; !ok {
				stale = append(stale, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range stale {
			if _, err := conn.ExecContext(txCtx, `UPDATE rooms SET is_active = 0, updated_at = ? WHERE id = ?`, formatTime(now), id); err != nil {
				return fmt.Errorf("deactivate room %d: %w", id, err)
			}
		}
		return nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
