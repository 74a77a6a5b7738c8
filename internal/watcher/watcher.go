// Package watcher turns filesystem changes in the shared directory into
// data-updated events.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"loan-desk-backend/internal/events"
	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/store"
)

// Notifier publishes events without failing the caller.
type Notifier interface {
	Notify(ctx context.Context, evt events.Event)
}

// ChangeNotifier watches the shared directory. Events are hints: they may
// repeat and may arrive out of order relative to this process's own writes.
type ChangeNotifier struct {
	dir       string
	resources map[string]string
	watcher   *fsnotify.Watcher
	notifier  Notifier
	now       func() time.Time
}

// New watches dir for changes to the given resource keys.
func New(dir string, keys []string, n Notifier) (*ChangeNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to resolve shared directory: %w", err)
	}
	if err := w.Add(abs); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	resources := make(map[string]string, len(keys))
	for _, k := range keys {
		resources[store.FileName(k)] = k
	}
	return &ChangeNotifier{dir: abs, resources: resources, watcher: w, notifier: n, now: time.Now}, nil
}

// Run forwards matching events until ctx is done, then closes the watcher.
func (c *ChangeNotifier) Run(ctx context.Context) {
	defer c.watcher.Close()
	slog.Info("Watching shared directory", logfields.Path(c.dir))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			key, match := c.resources[filepath.Base(ev.Name)]
			if !match || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("Shared resource changed", logfields.Resource(key), slog.String("op", ev.Op.String()))
			c.notifier.Notify(ctx, events.DataUpdated{Resource: key, Timestamp: c.now()})
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Shared directory watcher error", logfields.Error(err))
		}
	}
}
