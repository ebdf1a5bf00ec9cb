// Package preferences resolves the history policy from a key-value settings
// source and keeps it current as the source changes.
package preferences

import (
	"math"
	"sync"
	"time"

	"lh-go/internal/fs"
	"lh-go/internal/lh"
)

// Setting ids.
const (
	IDMaxEntriesPerFile = "local-history.maxEntriesPerFile"
	IDFileLimit         = "local-history.fileLimit"
	IDFileSizeLimit     = "local-history.fileSizeLimit"
	IDSaveDelay         = "local-history.saveDelay"
	IDAutoSaveDelay     = "local-history.autoSaveDelay"
	IDExcludeFiles      = "local-history.excludeFiles"
	IDSkipEmptyFiles    = "local-history.skipEmptyFiles"
	IDFilesExclude      = "files.exclude"
)

// KnownIDs lists every setting the Store reads.
var KnownIDs = []string{
	IDMaxEntriesPerFile,
	IDFileLimit,
	IDFileSizeLimit,
	IDSaveDelay,
	IDAutoSaveDelay,
	IDExcludeFiles,
	IDSkipEmptyFiles,
	IDFilesExclude,
}

// Defaults and minimums.
const (
	DefaultMaxEntriesPerFile = 10
	DefaultFileLimit         = 30
	DefaultFileSizeLimit     = 5.0
	DefaultSaveDelay         = 300000 * time.Millisecond
	DefaultSkipEmptyFiles    = true

	MinMaxEntriesPerFile = 1
	MinFileLimit         = 1
	MinFileSizeLimit     = 0
	MinSaveDelayMillis   = 0
)

// DefaultExcludeFiles is the default of local-history.excludeFiles.
func DefaultExcludeFiles() map[string]bool {
	return map[string]bool{"**/.local-history/**": true}
}

// DefaultFilesExclude is the default of files.exclude.
func DefaultFilesExclude() map[string]bool {
	return map[string]bool{
		"**/.git":      true,
		"**/.svn":      true,
		"**/.hg":       true,
		"**/CVS":       true,
		"**/.DS_Store": true,
	}
}

// Store holds the resolved policy values. It is safe for concurrent use and
// implements lh.Policy.
type Store struct {
	src    Source
	cancel func()

	mu                sync.RWMutex
	maxEntriesPerFile int
	fileLimit         int
	fileSizeLimit     float64
	saveDelay         time.Duration
	skipEmptyFiles    bool
	excludedFiles     map[string]bool
	matcher           *fs.ExclusionMatcher
}

// New resolves every value from src. If src is a Notifier the Store follows
// its change notifications until Close. A nil src yields defaults.
func New(src Source) *Store {
	if src == nil {
		src = NewMapSource(nil)
	}
	s := &Store{src: src}
	s.refresh(KnownIDs)
	if n, ok := src.(Notifier); ok {
		s.cancel = n.Subscribe(s.refresh)
	}
	return s
}

// Close releases the change subscription.
func (s *Store) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// refresh re-resolves only the values affected by ids.
func (s *Store) refresh(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		switch id {
		case IDMaxEntriesPerFile:
			s.maxEntriesPerFile = s.intValue(id, DefaultMaxEntriesPerFile, MinMaxEntriesPerFile)
		case IDFileLimit:
			s.fileLimit = s.intValue(id, DefaultFileLimit, MinFileLimit)
		case IDFileSizeLimit:
			s.fileSizeLimit = s.floatValue(id, DefaultFileSizeLimit, MinFileSizeLimit)
		case IDSaveDelay, IDAutoSaveDelay:
			s.saveDelay = s.resolveSaveDelay()
		case IDSkipEmptyFiles:
			s.skipEmptyFiles = s.boolValue(id, DefaultSkipEmptyFiles)
		case IDExcludeFiles, IDFilesExclude:
			s.setExcluded(s.resolveExcluded())
		}
	}
}

func (s *Store) resolveSaveDelay() time.Duration {
	for _, id := range []string{IDSaveDelay, IDAutoSaveDelay} {
		v, ok := s.src.Lookup(id)
		if !ok {
			continue
		}
		if ms, ok := toFloat(v); ok && ms >= MinSaveDelayMillis {
			return time.Duration(ms * float64(time.Millisecond))
		}
	}
	return DefaultSaveDelay
}

// resolveExcluded merges the own patterns with files.exclude; files.exclude
// wins on conflicting keys.
func (s *Store) resolveExcluded() map[string]bool {
	own := DefaultExcludeFiles()
	if v, ok := s.src.Lookup(IDExcludeFiles); ok {
		if m, ok := toBoolMap(v); ok {
			own = m
		}
	}
	general := DefaultFilesExclude()
	if v, ok := s.src.Lookup(IDFilesExclude); ok {
		if m, ok := toBoolMap(v); ok {
			general = m
		}
	}
	for k, v := range general {
		own[k] = v
	}
	return own
}

func (s *Store) setExcluded(m map[string]bool) {
	s.excludedFiles = m
	s.matcher = fs.NewExclusionMatcher(m)
}

func (s *Store) intValue(id string, def, min int) int {
	v, ok := s.src.Lookup(id)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < float64(min) || f > math.MaxInt32 {
		return def
	}
	return int(f)
}

func (s *Store) floatValue(id string, def, min float64) float64 {
	v, ok := s.src.Lookup(id)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok || f < min {
		return def
	}
	return f
}

func (s *Store) boolValue(id string, def bool) bool {
	v, ok := s.src.Lookup(id)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func toBoolMap(v any) (map[string]bool, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	out := make(map[string]bool, len(m))
	for k, val := range m {
		b, ok := val.(bool)
		if !ok {
			return nil, false
		}
		out[k] = b
	}
	return out, true
}

func (s *Store) MaxEntriesPerFile() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxEntriesPerFile
}

func (s *Store) FileLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileLimit
}

// FileSizeLimit is in megabytes.
func (s *Store) FileSizeLimit() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileSizeLimit
}

func (s *Store) SaveDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveDelay
}

func (s *Store) SkipEmptyFiles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipEmptyFiles
}

// ExcludedFiles returns a copy of the merged exclusion patterns.
func (s *Store) ExcludedFiles() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.excludedFiles))
	for k, v := range s.excludedFiles {
		out[k] = v
	}
	return out
}

// IsExcluded reports whether path matches an enabled exclusion pattern.
func (s *Store) IsExcluded(path string) bool {
	s.mu.RLock()
	m := s.matcher
	s.mu.RUnlock()
	return m.Match(path)
}

// SetFileLimit overrides the resolved value until the next change of its setting.
func (s *Store) SetFileLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileLimit = n
}

func (s *Store) SetMaxEntriesPerFile(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxEntriesPerFile = n
}

func (s *Store) SetFileSizeLimit(mb float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileSizeLimit = mb
}

func (s *Store) SetSaveDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveDelay = d
}

func (s *Store) SetSkipEmptyFiles(b bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipEmptyFiles = b
}

func (s *Store) SetExcludedFiles(m map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]bool, len(m))
	for k, v := range m {
		cp[k] = v
	}
	s.setExcluded(cp)
}

var _ lh.Policy = (*Store)(nil)
