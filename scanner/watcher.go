package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"melodex/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher mirrors a local directory tree into the index by translating
// filesystem events into synchronizer calls. Events are batched: changed
// files funnel through ScanFiles (which already treats vanished ids as
// implicit deletes), removals trigger a reconcile. Delivery is
// at-least-once; every downstream call is idempotent.
type Watcher struct {
	sync      *Synchronizer
	userID    int64
	localRoot string
	storeRoot string
	interval  time.Duration
}

// NewWatcher creates a watcher mapping localRoot on disk to storeRoot
// inside the file store.
func NewWatcher(sync *Synchronizer, userID int64, localRoot, storeRoot string) *Watcher {
	return &Watcher{
		sync:      sync,
		userID:    userID,
		localRoot: filepath.Clean(localRoot),
		storeRoot: path.Clean(storeRoot),
		interval:  10 * time.Second,
	}
}

func (w *Watcher) storePath(localPath string) string {
	rel, err := filepath.Rel(w.localRoot, localPath)
	if err != nil {
		return ""
	}
	return path.Join(w.storeRoot, filepath.ToSlash(rel))
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(w.localRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch directory tree: %w", err)
	}

	batchT := time.NewTimer(w.interval)
	batchT.Stop()

	pending := map[string]struct{}{}
	reconcile := false

	flush := func() {
		if len(pending) > 0 {
			ids := make([]string, 0, len(pending))
			for id := range pending {
				ids = append(ids, id)
			}
			pending = map[string]struct{}{}
			if _, err := w.sync.ScanFiles(ctx, w.userID, ids); err != nil {
				logger.Error("watch scan failed", logger.ErrorField(err))
			}
		}
		if reconcile {
			reconcile = false
			if err := w.sync.Reconcile(ctx, w.userID); err != nil {
				logger.Error("watch reconcile failed", logger.ErrorField(err))
			}
		}
	}

	logger.Info("watching library",
		logger.String("localRoot", w.localRoot), logger.String("storeRoot", w.storeRoot))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-batchT.C:
			flush()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event, pending, &reconcile)
			batchT.Reset(w.interval)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, pending map[string]struct{}, reconcile *bool) {
	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				logger.Warn("failed to watch new directory", logger.ErrorField(err))
			}
			// Files may have landed before the watch was in place.
			_ = filepath.WalkDir(event.Name, func(p string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					pending[w.storePath(p)] = struct{}{}
				}
				return nil
			})
			return
		}
		pending[w.storePath(event.Name)] = struct{}{}
	case event.Op.Has(fsnotify.Write):
		pending[w.storePath(event.Name)] = struct{}{}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// The old id will fail the availability diff.
		*reconcile = true
	}
}
