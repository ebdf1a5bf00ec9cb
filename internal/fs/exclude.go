package fs

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExclusionMatcher checks paths against glob patterns with "**" support.
// A path is excluded when it or any of its parent directories matches, so a
// pattern naming a directory also covers everything below it.
type ExclusionMatcher struct {
	patterns []string
}

// NewExclusionMatcher builds a matcher from a pattern -> enabled map. Only
// enabled, syntactically valid patterns are kept.
func NewExclusionMatcher(patterns map[string]bool) *ExclusionMatcher {
	var kept []string
	for p, enabled := range patterns {
		p = strings.TrimSpace(p)
		if !enabled || p == "" || !doublestar.ValidatePattern(p) {
			continue
		}
		kept = append(kept, p)
	}
	sort.Strings(kept)
	return &ExclusionMatcher{patterns: kept}
}

// Patterns returns the active patterns, sorted.
func (m *ExclusionMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether path is excluded. Absolute paths are matched both
// with and without their leading separator so "**/x" and "/abs/x" both work.
func (m *ExclusionMatcher) Match(path string) bool {
	if len(m.patterns) == 0 || path == "" {
		return false
	}

	p := filepath.Clean(path)
	p = p[len(filepath.VolumeName(p)):]
	p = filepath.ToSlash(p)

	for cur := p; cur != "" && cur != "/" && cur != "."; cur = parent(cur) {
		rel := strings.TrimPrefix(cur, "/")
		for _, pattern := range m.patterns {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
			if strings.HasPrefix(pattern, "/") {
				if ok, _ := doublestar.Match(pattern, cur); ok {
					return true
				}
			}
		}
	}
	return false
}

func parent(slashPath string) string {
	i := strings.LastIndex(slashPath, "/")
	if i <= 0 {
		return ""
	}
	return slashPath[:i]
}
