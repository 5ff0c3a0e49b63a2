package config

import (
	"context"
	"fmt"
	"os"
	"time"
)

// roomsWatcher polls one rooms file and tracks the last accepted version.
type roomsWatcher struct {
	path     string
	lastMod  time.Time
	missing  bool
	onUpdate func(*RoomsConfig)
	onError  func(error)
}

// WatchRooms loads the rooms file at path, hands it to onUpdate, then polls
// every interval and hands over each changed version that validates.
// A failing initial load is returned. Later failures go to onError and the
// previous catalog stays in effect. Either callback may be nil.
func WatchRooms(ctx context.Context, path string, interval time.Duration, onUpdate func(*RoomsConfig), onError func(error)) error {
	if path == "" {
		path = "configs/rooms.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &roomsWatcher{path: path, onUpdate: onUpdate, onError: onError}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat rooms config: %w", err)
	}
	cfg, err := LoadRoomsConfig(path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.update(cfg)

	go w.run(ctx, interval)
	return nil
}

func (w *roomsWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *roomsWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		// Editors replace files non-atomically; report a missing file once.
		if !w.missing {
			w.missing = true
			w.fail(fmt.Errorf("stat rooms config: %w", err))
		}
		return
	}
	w.missing = false
	if !info.ModTime().After(w.lastMod) {
		return
	}

	cfg, err := LoadRoomsConfig(w.path)
	// A rejected version is not retried until the file changes again.
	w.lastMod = info.ModTime()
	if err != nil {
		w.fail(fmt.Errorf("reload rooms config: %w", err))
		return
	}
	w.update(cfg)
}

func (w *roomsWatcher) update(cfg *RoomsConfig) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}

func (w *roomsWatcher) fail(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
