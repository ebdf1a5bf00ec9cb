package lh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// LoadHistory lists the revisions stored in a revision directory, newest
// first. A missing directory yields an empty history. Files whose names
// carry no capture timestamp are skipped.
func (s *Service) LoadHistory(ctx context.Context, dir string) ([]*Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.listRevisions(dir)
}

// ViewHistory lists the revisions of a tracked file, newest first, capped at
// the MaxEntriesPerFile preference.
func (s *Service) ViewHistory(ctx context.Context, trackedPath string) ([]*Revision, error) {
	revisions, err := s.LoadHistory(ctx, s.layout.Dir(trackedPath))
	if err != nil {
		return nil, err
	}
	if limit := s.policy.MaxEntriesPerFile(); limit > 0 && len(revisions) > limit {
		revisions = revisions[:limit]
	}
	return revisions, nil
}

func (s *Service) listRevisions(dir string) ([]*Revision, error) {
	entries, err := s.fsmgr.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.logger.Warn("reading revision directory failed", "dir", dir, "error", err)
		return nil, fmt.Errorf("reading revision directory: %w", err)
	}

	var revisions []*Revision
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		parsed, err := parseRevisionName(entry.Name())
		if err != nil {
			s.logger.Warn("skipping file without revision timestamp", "dir", dir, "name", entry.Name())
			continue
		}
		revisions = append(revisions, &Revision{
			FileName:   entry.Name(),
			Timestamp:  parsed.timestamp,
			Path:       filepath.Join(dir, entry.Name()),
			Reason:     parsed.reason,
			CapturedAt: parsed.capturedAt,
			ModTime:    info.ModTime(),
			Size:       info.Size(),
		})
	}

	sort.SliceStable(revisions, func(i, j int) bool {
		a, b := revisions[i], revisions[j]
		if !a.CapturedAt.Equal(b.CapturedAt) {
			return a.CapturedAt.After(b.CapturedAt)
		}
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
		return a.FileName > b.FileName
	})
	return revisions, nil
}

// newestByModTime returns the revision with the latest modification time.
func newestByModTime(revisions []*Revision) *Revision {
	var newest *Revision
	for _, r := range revisions {
		if newest == nil || r.ModTime.After(newest.ModTime) {
			newest = r
		}
	}
	return newest
}

// byModTimeAscending returns a copy of revisions ordered oldest first.
func byModTimeAscending(revisions []*Revision) []*Revision {
	sorted := append([]*Revision(nil), revisions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ModTime.Before(sorted[j].ModTime)
	})
	return sorted
}
