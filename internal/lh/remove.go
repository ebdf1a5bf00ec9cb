package lh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// RemoveRevision deletes one revision file and prunes revision directories
// left empty, up to but excluding the history root.
func (s *Service) RemoveRevision(ctx context.Context, revisionPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	revisionPath = filepath.Clean(revisionPath)
	if err := s.requireInRoot(revisionPath); err != nil {
		return err
	}

	if _, err := s.fsmgr.Stat(revisionPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("revision not found", "path", revisionPath)
			return fmt.Errorf("%w: %s", ErrRevisionNotFound, revisionPath)
		}
		return fmt.Errorf("stat revision: %w", err)
	}
	if err := s.fsmgr.Remove(revisionPath); err != nil {
		s.logger.Warn("removing revision failed", "path", revisionPath, "error", err)
		return fmt.Errorf("removing revision: %w", err)
	}

	dir := filepath.Dir(revisionPath)
	s.record(ctx, ActionRemoved, s.sourceOf(dir), filepath.Base(revisionPath))
	s.logger.Info("revision removed", "path", revisionPath)
	s.prune(dir)
	return nil
}

// ClearHistory deletes every revision of a tracked file after confirmation.
// Returns the number of revisions removed.
func (s *Service) ClearHistory(ctx context.Context, trackedPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dir := s.layout.Dir(trackedPath)
	if _, err := s.fsmgr.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNoHistory, trackedPath)
		}
		return 0, fmt.Errorf("stat revision directory: %w", err)
	}

	revisions, err := s.listRevisions(dir)
	if err != nil {
		return 0, err
	}
	prompt := fmt.Sprintf("Permanently delete all %d revision(s) of %s?", len(revisions), trackedPath)
	if err := s.confirmed(ctx, prompt); err != nil {
		return 0, err
	}

	removed := 0
	for _, rev := range revisions {
		if err := s.fsmgr.Remove(rev.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing revision failed", "path", rev.Path, "error", err)
			return removed, fmt.Errorf("removing revision: %w", err)
		}
		removed++
	}
	s.prune(dir)
	s.record(ctx, ActionCleared, trackedPath, "")
	s.logger.Info("history cleared", "path", trackedPath, "removed", removed)
	return removed, nil
}

// prune removes dir and its ancestors while they are empty, stopping at the
// history root.
func (s *Service) prune(dir string) {
	root := s.layout.Root()
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		rel, ok := within(root, d)
		if !ok || rel == "." {
			return
		}
		entries, err := s.fsmgr.ReadDir(d)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := s.fsmgr.Remove(d); err != nil {
			s.logger.Debug("pruning directory failed", "dir", d, "error", err)
			return
		}
	}
}

// removeEmptyDirs removes empty directories below dir, deepest first.
// Reports whether dir itself ended up empty.
func (s *Service) removeEmptyDirs(dir string) bool {
	entries, err := s.fsmgr.ReadDir(dir)
	if err != nil {
		return false
	}
	remaining := len(entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		if s.removeEmptyDirs(child) {
			if err := s.fsmgr.Remove(child); err == nil {
				remaining--
			}
		}
	}
	return remaining == 0
}
