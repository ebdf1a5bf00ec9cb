package lh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

const day = 24 * time.Hour

// RemoveOldFiles deletes every revision under the history root whose
// modification time is more than days days old, after confirmation.
// Returns the number of revisions removed.
func (s *Service) RemoveOldFiles(ctx context.Context, days int) (int, error) {
	return s.purge(ctx, s.layout.Root(), days)
}

// RemoveWorkspaceHistory is RemoveOldFiles restricted to the revision
// directories of files under workspace.
func (s *Service) RemoveWorkspaceHistory(ctx context.Context, workspace string, days int) (int, error) {
	dir, err := s.WorkspaceRevisionDir(workspace)
	if err != nil {
		return 0, err
	}
	if _, err := s.fsmgr.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNoHistory, workspace)
		}
		return 0, fmt.Errorf("stat workspace revision directory: %w", err)
	}
	return s.purge(ctx, dir, days)
}

func (s *Service) purge(ctx context.Context, dir string, days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDays, days)
	}
	cutoff := s.clock.Now().Add(-time.Duration(days) * day)

	var expired []string
	err := s.walkFiles(ctx, dir, func(path string, info fs.FileInfo) {
		if info.ModTime().Before(cutoff) {
			expired = append(expired, path)
		}
	})
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		s.logger.Info("no revisions to purge", "dir", dir, "days", days)
		return 0, nil
	}

	prompt := fmt.Sprintf("Permanently delete %d revision(s) older than %d day(s)?", len(expired), days)
	if err := s.confirmed(ctx, prompt); err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.fsmgr.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("purging revision failed", "path", path, "error", err)
			continue
		}
		removed++
		s.record(ctx, ActionPurged, s.sourceOf(filepath.Dir(path)), filepath.Base(path))
	}

	if s.removeEmptyDirs(dir) {
		s.prune(dir)
	}
	s.logger.Info("revisions purged", "dir", dir, "days", days, "removed", removed)
	return removed, nil
}

// walkFiles calls fn for every regular file below dir. A missing dir is empty.
func (s *Service) walkFiles(ctx context.Context, dir string, fn func(path string, info fs.FileInfo)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.fsmgr.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := s.walkFiles(ctx, path, fn); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode().IsRegular() {
			fn(path, info)
		}
	}
	return nil
}
