package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombook/internal/models"
)

func newCache(t *testing.T) (*miniredis.Miniredis, *Rooms) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRooms(client, time.Minute, nil)
}

func TestRooms_RoundTrip(t *testing.T) {
	mr, c := newCache(t)
	ctx := context.Background()

	_, ok := c.GetRoom(ctx, 1)
	assert.False(t, ok)

	room := models.Room{ID: 1, Name: "R1", Type: models.RoomTypeMeeting, Capacity: 8, Amenities: []string{"tv"}, IsActive: true}
	c.SetRoom(ctx, room)
	got, ok := c.GetRoom(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, room.Name, got.Name)
	assert.Equal(t, room.Amenities, got.Amenities)

	c.SetList(ctx, true, []models.Room{room})
	list, ok := c.GetList(ctx, true)
	require.True(t, ok)
	assert.Len(t, list, 1)
	_, ok = c.GetList(ctx, false)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok = c.GetRoom(ctx, 1)
	assert.False(t, ok, "entries expire after ttl")
}

func TestRooms_InvalidateAndFlush(t *testing.T) {
	_, c := newCache(t)
	ctx := context.Background()

	c.SetRoom(ctx, models.Room{ID: 1})
	c.SetRoom(ctx, models.Room{ID: 2})
	c.SetList(ctx, false, []models.Room{{ID: 1}, {ID: 2}})

	c.Invalidate(ctx, 1)
	_, ok := c.GetRoom(ctx, 1)
	assert.False(t, ok)
	_, ok = c.GetList(ctx, false)
	assert.False(t, ok)
	_, ok = c.GetRoom(ctx, 2)
	assert.True(t, ok)

	require.NoError(t, c.Flush(ctx))
	_, ok = c.GetRoom(ctx, 2)
	assert.False(t, ok)
}

func TestRooms_NilIsNoop(t *testing.T) {
	var c *Rooms
	ctx := context.Background()
	assert.Nil(t, NewRooms(nil, time.Minute, nil))

	c.SetRoom(ctx, models.Room{ID: 1})
	_, ok := c.GetRoom(ctx, 1)
	assert.False(t, ok)
	c.Invalidate(ctx, 1)
	assert.NoError(t, c.Flush(ctx))
}

func TestRooms_WriteFailuresAreLogged(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c := NewRooms(client, time.Minute, &logger)
	ctx := context.Background()

	mr.SetError("ERR out of memory")
	c.SetRoom(ctx, models.Room{ID: 9})
	c.Invalidate(ctx, 9)
	mr.SetError("")

	out := buf.String()
	assert.Contains(t, out, "room cache write failed")
	assert.Contains(t, out, "roombook:rooms:id:9")
	assert.Contains(t, out, "room cache invalidate failed")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"level":"warn"`)))
}
