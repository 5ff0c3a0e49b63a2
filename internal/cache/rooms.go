// Package cache keeps read-mostly room catalog entries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roombook/internal/models"
)

const prefix = "roombook:rooms:"

// Rooms caches single rooms and room lists as JSON. A nil *Rooms is a valid,
// always-missing cache.
type Rooms struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewRooms returns a cache on client, or nil when client is nil or ttl disabled.
// Failed writes are logged to logger, which may be nil.
func NewRooms(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Rooms {
	if client == nil || ttl <= 0 {
		return nil
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Rooms{client: client, ttl: ttl, logger: logger}
}

func roomKey(id int64) string {
	return fmt.Sprintf("%sid:%d", prefix, id)
}

func listKey(activeOnly bool) string {
	if activeOnly {
		return prefix + "list:active"
	}
	return prefix + "list:all"
}

// GetRoom returns the cached room and whether it was found.
func (c *Rooms) GetRoom(ctx context.Context, id int64) (models.Room, bool) {
	var room models.Room
	return room, c.read(ctx, roomKey(id), &room)
}

// SetRoom stores a room.
func (c *Rooms) SetRoom(ctx context.Context, room models.Room) {
	c.write(ctx, roomKey(room.ID), room)
}

// GetList returns the cached room list and whether it was found.
func (c *Rooms) GetList(ctx context.Context, activeOnly bool) ([]models.Room, bool) {
	var rooms []models.Room
	return rooms, c.read(ctx, listKey(activeOnly), &rooms)
}

// SetList stores a room list.
func (c *Rooms) SetList(ctx context.Context, activeOnly bool, rooms []models.Room) {
	c.write(ctx, listKey(activeOnly), rooms)
}

// Invalidate drops both lists and the given rooms.
func (c *Rooms) Invalidate(ctx context.Context, ids ...int64) {
	if c == nil {
		return
	}
	keys := []string{listKey(true), listKey(false)}
	for _, id := range ids {
		keys = append(keys, roomKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("room cache invalidate failed")
	}
}

// Flush drops every cached catalog entry, e.g. after a config sync.
func (c *Rooms) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan room cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Rooms) read(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Rooms) write(ctx context.Context, key string, val any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("room cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("room cache write failed")
	}
}
