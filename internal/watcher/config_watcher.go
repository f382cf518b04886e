// Package watcher reloads jira-river's configuration file when it
// changes on disk, backing `river config validate --watch` (SPEC_FULL.md's
// domain-stack wiring for fsnotify).
//
// Grounded on the teacher's internal/watcher.fileWatcher: the same
// debounce-timer-over-a-signal-channel idiom and stopOnce/doneCh
// shutdown pattern, trimmed from a recursive multi-directory,
// extension-filtered source tree watch down to the one file this
// project needs to watch.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher implements Watcher for a single configuration file.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration

	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New watches path's containing directory (so atomic
// rename-on-save, as most editors do, is still observed) and fires
// onChange only for events on path itself.
func New(path string) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	return &ConfigWatcher{
		watcher:  fsw,
		path:     filepath.Clean(path),
		debounce: 300 * time.Millisecond,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (cw *ConfigWatcher) Start(ctx context.Context, onChange func()) {
	ctx, cancel := context.WithCancel(ctx)
	cw.cancel = cancel
	go cw.run(ctx, onChange)
}

func (cw *ConfigWatcher) run(ctx context.Context, onChange func()) {
	defer close(cw.doneCh)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			onChange()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

// Stop stops watching and releases the fsnotify handle. Safe to call
// even if Start was never called, and idempotent.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		if cw.cancel != nil {
			cw.cancel()
			<-cw.doneCh
		} else {
			close(cw.doneCh)
		}
		err = cw.watcher.Close()
	})
	return err
}
