package lock

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesSameRoom(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.rooms, "idle rooms are released")
}

func TestLocal_DifferentRoomsIndependent(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock1, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	defer unlock1()

	unlock2, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	unlock2()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op

	again, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	again()
}

func TestLockRooms_OrderedAndDeduplicated(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := LockRooms(ctx, l, 1, 2)
			if assert.NoError(t, err) {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			unlock, err := LockRooms(ctx, l, 2, 1, 2)
			if assert.NoError(t, err) {
				unlock()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock acquiring room pairs")
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_LockAndRelease(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, RedisOptions{AcquireTimeout: 50 * time.Millisecond, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("roombook:lock:room:7"))

	_, err = l.Lock(ctx, 7)
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.False(t, mr.Exists("roombook:lock:room:7"))

	unlock, err = l.Lock(ctx, 7)
	require.NoError(t, err)
	unlock()
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedis(client, RedisOptions{TTL: time.Second})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 3)
	require.NoError(t, err)

	// The lease expired and another instance took the lock.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("roombook:lock:room:3", "other"))

	unlock()
	val, err := mr.Get("roombook:lock:room:3")
	require.NoError(t, err)
	assert.Equal(t, "other", val)
}

func TestRedis_WaitsForHolder(t *testing.T) {
	_, client := newRedis(t)
	l := NewRedis(client, RedisOptions{AcquireTimeout: 2 * time.Second, RetryInterval: 5 * time.Millisecond})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	second, err := l.Lock(ctx, 1)
	require.NoError(t, err)
	second()
}

func TestRedis_ReleaseFailureIsLogged(t *testing.T) {
	mr, client := newRedis(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	l := NewRedis(client, RedisOptions{TTL: time.Minute, Logger: &logger})

	unlock, err := l.Lock(context.Background(), 4)
	require.NoError(t, err)

	mr.SetError("ERR connection reset")
	unlock()
	mr.SetError("")

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "room lock release failed")
	assert.Contains(t, buf.String(), "roombook:lock:room:4")
	assert.True(t, mr.Exists("roombook:lock:room:4"), "key stays until ttl")
}

func TestRedis_ReleaseOfForeignTokenIsQuiet(t *testing.T) {
	mr, client := newRedis(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	l := NewRedis(client, RedisOptions{TTL: time.Second, Logger: &logger})

	unlock, err := l.Lock(context.Background(), 5)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("roombook:lock:room:5", "other"))

	unlock()
	assert.Empty(t, buf.String())
}
