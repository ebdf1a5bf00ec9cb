package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lh-go/internal/lh"
)

// DefaultSettle is how long a path must be quiet before its change is reported.
// Editors tend to emit several events per save.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports settled writes below one or more directory trees.
type Watcher struct {
	fsw     *fsnotify.Watcher
	skip    func(path string) bool
	logger  lh.Logger
	settle  time.Duration
	mu      sync.Mutex
	watched map[string]struct{}
}

// NewWatcher creates a recursive watcher. Directories and files for which skip
// returns true are never reported; skip may be nil.
func NewWatcher(skip func(path string) bool, logger lh.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if logger == nil {
		logger = lh.NewNopLogger()
	}
	return &Watcher{
		fsw:     fsw,
		skip:    skip,
		logger:  logger,
		settle:  DefaultSettle,
		watched: make(map[string]struct{}),
	}, nil
}

// SetSettle overrides the quiet period. Zero reports events immediately.
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// Add watches root and every directory below it that is not skipped.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("watch: skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(path) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.watched[dir] = struct{}{}
	return nil
}

// Run delivers settled writes of regular files to onChange until ctx is done
// or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		for path := range pending {
			delete(pending, path)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			onChange(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if w.skip(ev.Name) || isTempFile(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.Add(ev.Name); err != nil {
						w.logger.Warn("watch: cannot follow new directory", "path", ev.Name, "error", err)
					}
					continue
				}
			}
			pending[ev.Name] = struct{}{}
			if w.settle <= 0 {
				flush()
				continue
			}
			timer.Reset(w.settle)
		case <-timer.C:
			flush()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch: event queue overflowed, some saves may be missed")
				continue
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isTempFile(path string) bool {
	base := filepath.Base(path)
	return len(base) >= len(lh.TempFilePrefix) && base[:len(lh.TempFilePrefix)] == lh.TempFilePrefix
}
