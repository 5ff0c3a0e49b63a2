package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roombook/internal/metrics"
)

// ErrNotAcquired is returned when the lock stays busy past the acquire timeout.
var ErrNotAcquired = errors.New("room lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tunes the distributed locker.
type RedisOptions struct {
	Prefix         string
	TTL            time.Duration
	AcquireTimeout time.Duration
	RetryInterval  time.Duration
	// Logger receives release failures. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Redis is a distributed room lock for multi-instance deployments.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedis creates a locker on top of an existing client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "roombook:lock:room:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Redis{client: client, opts: opts}
}

func (r *Redis) key(roomID int64) string {
	return fmt.Sprintf("%s%d", r.opts.Prefix, roomID)
}

// Lock sets the room key with NX and retries until acquired, the acquire
// timeout elapses or ctx is done.
func (r *Redis) Lock(ctx context.Context, roomID int64) (func(), error) {
	started := time.Now()
	key := r.key(roomID)
	token := uuid.NewString()

	deadline := time.NewTimer(r.opts.AcquireTimeout)
	defer deadline.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: room %d", ErrNotAcquired, roomID)
		case <-time.After(r.opts.RetryInterval):
		}
	}
	metrics.ObserveLockWait(time.Since(started))

	return func() {
		// Release must not depend on the request context which may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil {
			r.opts.Logger.Warn().Err(err).Str("key", key).Dur("ttl", r.opts.TTL).
				Msg("room lock release failed, key held until ttl")
		}
	}, nil
}
