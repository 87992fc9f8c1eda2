package scene

import (
	"context"
	"time"

	"go.uber.org/zap"

	"magic-workflow/log"
)

const DefaultWatchInterval = 3 * time.Second

// Watcher polls the collection file and calls onChange when another writer
// has modified it. Changes are not merged: onChange is expected to reload.
type Watcher struct {
	collection *Collection
	interval   time.Duration
	onChange   func(ctx context.Context) error
}

// NewWatcher returns a watcher that reloads c directly when onChange is nil.
func NewWatcher(c *Collection, interval time.Duration, onChange func(ctx context.Context) error) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if onChange == nil {
		onChange = func(context.Context) error { return c.Reload() }
	}
	return &Watcher{collection: c, interval: interval, onChange: onChange}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll checks once and reports whether a change was handled.
func (w *Watcher) Poll(ctx context.Context) bool {
	changed, err := w.collection.ChangedOnDisk()
	if err != nil {
		log.GetLogger().Debug("[Watcher] stat failed", zap.String("path", w.collection.Path()), zap.Error(err))
		return false
	}
	if !changed {
		return false
	}

	log.GetLogger().Info("[Watcher] scenes file changed on disk, reloading", zap.String("path", w.collection.Path()))
	if err = w.onChange(ctx); err != nil {
		log.GetLogger().Error("[Watcher] reload failed", zap.String("path", w.collection.Path()), zap.Error(err))
		return false
	}
	return true
}
