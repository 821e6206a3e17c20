// Package watch retrains automatically when recordings change: it watches
// a data directory for CSV churn and invokes a callback after a debounce
// window, so a burst of file copies triggers a single retrain.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches rapid file events into one retrain.
const DefaultDebounce = 2 * time.Second

// Watcher observes a directory for CSV changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *zap.Logger
	fs       *fsnotify.Watcher
}

// New builds a watcher over dir.
func New(dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, debounce: debounce, logger: logger, fs: fs}, nil
}

func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
		return false
	}
	return event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) ||
		event.Op.Has(fsnotify.Rename)
}

// Run blocks until ctx is canceled, invoking onChange once per settled
// burst of CSV events.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("recording changed",
				zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			timer = nil
			fire = nil
			w.logger.Info("data directory changed, retraining", zap.String("dir", w.dir))
			onChange()
		}
	}
}
