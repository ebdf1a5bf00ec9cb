package preferences

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"lh-go/internal/lh"
)

// FileSource reads settings from a TOML or YAML file. A missing file is an
// empty source. Watch reloads the file when it changes and reports the ids of
// the known settings whose values differ.
type FileSource struct {
	path   string
	logger lh.Logger

	mu     sync.RWMutex
	values map[string]any

	subs    subscribers
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSource loads path. The format follows the extension: .yaml/.yml is
// YAML, anything else TOML.
func NewFileSource(path string, logger lh.Logger) (*FileSource, error) {
	if logger == nil {
		logger = lh.NewNopLogger()
	}
	s := &FileSource{path: path, logger: logger}
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	s.values = values
	return s, nil
}

// Path returns the settings file location.
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Lookup(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupNested(s.values, id)
}

func (s *FileSource) Subscribe(fn func(ids []string)) func() {
	return s.subs.add(fn)
}

func (s *FileSource) load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", s.path, err)
	}

	values := map[string]any{}
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", s.path, err)
		}
	default:
		if _, err := toml.Decode(string(data), &values); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", s.path, err)
		}
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// Reload re-reads the file and notifies subscribers of changed settings.
// On a parse error the previous values are kept.
func (s *FileSource) Reload() error {
	values, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.values
	s.values = values
	s.mu.Unlock()

	var changed []string
	for _, id := range KnownIDs {
		before, _ := lookupNested(old, id)
		after, _ := lookupNested(values, id)
		if !reflect.DeepEqual(before, after) {
			changed = append(changed, id)
		}
	}
	s.subs.notify(changed)
	return nil
}

// Watch starts reloading the file on change. The parent directory is watched
// so editors that replace the file are followed.
func (s *FileSource) Watch() error {
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("creating settings watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		s.mu.Unlock()
		w.Close()
		return fmt.Errorf("watching settings %s: %w", s.path, err)
	}
	s.watcher = w
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(w, s.done)
	return nil
}

func (s *FileSource) loop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	target := filepath.Clean(s.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("settings reload failed, keeping previous values", "path", s.path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("settings watcher error", "path", s.path, "error", err)
		}
	}
}

// Close stops watching. It is safe to call without Watch.
func (s *FileSource) Close() error {
	s.mu.Lock()
	w, done := s.watcher, s.done
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}

var _ Notifier = (*FileSource)(nil)
