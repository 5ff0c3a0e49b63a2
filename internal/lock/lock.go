// Package lock serializes writers of the same room.
package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"roombook/internal/metrics"
)

// Locker acquires an exclusive lock on a room. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, roomID int64) (func(), error)
}

// Local is an in-process lock keyed by room id.
type Local struct {
	mu    sync.Mutex
	rooms map[int64]*roomLock
}

type roomLock struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{rooms: make(map[int64]*roomLock)}
}

// Lock blocks until the room is free or ctx is done.
func (l *Local) Lock(ctx context.Context, roomID int64) (func(), error) {
	started := time.Now()

	l.mu.Lock()
	rl, ok := l.rooms[roomID]
	if !ok {
		rl = &roomLock{ch: make(chan struct{}, 1)}
		l.rooms[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(roomID, rl, false)
		return nil, ctx.Err()
	}
	metrics.ObserveLockWait(time.Since(started))

	var once sync.Once
	return func() {
		once.Do(func() { l.release(roomID, rl, true) })
	}, nil
}

func (l *Local) release(roomID int64, rl *roomLock, held bool) {
	if held {
		<-rl.ch
	}
	l.mu.Lock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.rooms, roomID)
	}
	l.mu.Unlock()
}

// LockRooms acquires several rooms in ascending id order so that two callers
// locking the same pair can never deadlock. Duplicate ids are locked once.
func LockRooms(ctx context.Context, locker Locker, roomIDs ...int64) (func(), error) {
	ids := make([]int64, 0, len(roomIDs))
	seen := make(map[int64]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	unlocks := make([]func(), 0, len(ids))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, id := range ids {
		unlock, err := locker.Lock(ctx, id)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}
