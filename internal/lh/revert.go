package lh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// RevertResult reports the outcome of RevertToRevision.
type RevertResult struct {
	// Reverted is false when the tracked file already held the revision's content.
	Reverted bool
	// TrackedPath is the file that was rewritten.
	TrackedPath string
	// Snapshot is the safety capture taken before the file was rewritten.
	Snapshot *SaveResult
}

// RevertToRevision restores a tracked file to the content of a revision.
// When trackedPath is empty it is derived from the revision's location. The
// current content is captured first with a pre-revert revision so the revert
// itself can be undone. A missing tracked file is recreated.
func (s *Service) RevertToRevision(ctx context.Context, revisionPath, trackedPath string) (*RevertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	revisionPath = filepath.Clean(revisionPath)
	if trackedPath == "" {
		src, ok := s.layout.Source(filepath.Dir(revisionPath))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, revisionPath)
		}
		trackedPath = src
	}
	trackedPath = filepath.Clean(trackedPath)

	previous, err := s.fsmgr.ReadFile(revisionPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, revisionPath)
		}
		s.logger.Warn("reading revision failed", "path", revisionPath, "error", err)
		return nil, fmt.Errorf("reading revision: %w", err)
	}

	perm := fs.FileMode(0o644)
	current, err := s.fsmgr.ReadFile(trackedPath)
	switch {
	case err == nil:
		if bytes.Equal(previous, current) {
			s.logger.Info("file already matches revision", "path", trackedPath, "revision", revisionPath)
			return &RevertResult{TrackedPath: trackedPath}, nil
		}
		if info, err := s.fsmgr.Stat(trackedPath); err == nil {
			perm = info.Mode().Perm()
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		s.logger.Warn("reading tracked file failed", "path", trackedPath, "error", err)
		return nil, fmt.Errorf("reading tracked file: %w", err)
	}

	prompt := fmt.Sprintf("Revert %s to revision %s?", trackedPath, filepath.Base(revisionPath))
	if err := s.confirmed(ctx, prompt); err != nil {
		return nil, err
	}

	snapshot, err := s.SaveContext(ctx, trackedPath, SaveOptions{PreRevert: true})
	if err != nil {
		return nil, fmt.Errorf("capturing pre-revert revision: %w", err)
	}

	if err := s.fsmgr.MkdirAll(filepath.Dir(trackedPath)); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := s.fsmgr.WriteFile(trackedPath, previous, perm); err != nil {
		s.logger.Warn("writing tracked file failed", "path", trackedPath, "error", err)
		return nil, fmt.Errorf("writing tracked file: %w", err)
	}

	s.record(ctx, ActionReverted, trackedPath, filepath.Base(revisionPath))
	s.logger.Info("file reverted", "path", trackedPath, "revision", revisionPath)
	return &RevertResult{Reverted: true, TrackedPath: trackedPath, Snapshot: snapshot}, nil
}

// DisplayDiff hands both sides of a revision comparison to a presenter.
// A missing current file compares against empty content.
func (s *Service) DisplayDiff(ctx context.Context, previousPath, currentPath string, presenter DiffPresenter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	previous, err := s.fsmgr.ReadFile(previousPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRevisionNotFound, previousPath)
		}
		return fmt.Errorf("reading revision: %w", err)
	}
	current, err := s.fsmgr.ReadFile(currentPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading current file: %w", err)
	}

	req := DiffRequest{
		Title:        fmt.Sprintf("%s <-> %s", filepath.Base(previousPath), filepath.Base(currentPath)),
		PreviousPath: previousPath,
		CurrentPath:  currentPath,
		Previous:     previous,
		Current:      current,
	}
	if err := presenter.Present(ctx, req); err != nil {
		return fmt.Errorf("presenting diff: %w", err)
	}
	return nil
}
