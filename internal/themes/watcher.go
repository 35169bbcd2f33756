package themes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a rescan.
const DefaultDebounce = 500 * time.Millisecond

// Watch rescans the catalog whenever a manifest under the themes root
// changes and calls onChange after each successful rescan. It blocks until
// ctx is done.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating themes dir: %w", err)
	}
	if err := c.watchTree(fsw); err != nil {
		return err
	}

	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !c.isRelevantEvent(event) {
				continue
			}

			// A new theme directory needs its own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fsw.Add(event.Name); err != nil {
						c.logger.Warn("Failed to watch theme directory",
							zap.String("dir", event.Name),
							zap.Error(err))
					}
				}
			}

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case <-timerC():
			timer = nil
			if err := c.Load(); err != nil {
				c.logger.Error("Theme rescan failed", zap.Error(err))
				continue
			}
			if onChange != nil {
				onChange()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("Theme watcher error", zap.Error(err))

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

func (c *Catalog) watchTree(fsw *fsnotify.Watcher) error {
	if err := fsw.Add(c.dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", c.dir, err)
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read themes dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(c.dir, entry.Name())
		if err := fsw.Add(sub); err != nil {
			return fmt.Errorf("watching directory %s: %w", sub, err)
		}
	}
	return nil
}

// isRelevantEvent reports whether the event can change the catalog:
// manifest edits, and theme directories appearing or disappearing.
func (c *Catalog) isRelevantEvent(event fsnotify.Event) bool {
	if filepath.Base(event.Name) == ManifestName {
		return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
	}
	if filepath.Dir(event.Name) == filepath.Clean(c.dir) {
		return event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
	}
	return false
}
