package lh

import (
	"context"
	"fmt"
	"path/filepath"
)

// Service is the revision store. It captures snapshots of tracked files,
// lists and removes them, reverts files to them and enforces retention.
type Service struct {
	fsmgr   FilesystemManager
	layout  Layout
	policy  Policy
	confirm Confirmer
	journal Journal
	logger  Logger
	clock   Clock
}

// NewService creates a new Service with the provided dependencies.
// A nil journal discards events.
func NewService(fsmgr FilesystemManager, layout Layout, policy Policy, confirm Confirmer, journal Journal, logger Logger, clock Clock) *Service {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Service{
		fsmgr:   fsmgr,
		layout:  layout,
		policy:  policy,
		confirm: confirm,
		journal: journal,
		logger:  logger,
		clock:   clock,
	}
}

// Layout returns the layout revision directories are placed with.
func (s *Service) Layout() Layout {
	return s.layout
}

// RevisionDir returns the revision directory of a tracked file.
func (s *Service) RevisionDir(trackedPath string) string {
	return s.layout.Dir(trackedPath)
}

// WorkspaceRevisionDir returns the directory holding the revision directories
// of every file under workspace.
func (s *Service) WorkspaceRevisionDir(workspace string) (string, error) {
	if _, ok := s.layout.(*MirroredLayout); !ok {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceScopeUnsupported, s.layout.Name())
	}
	return s.layout.Dir(workspace), nil
}

// confirmed asks the confirmer and maps a refusal to ErrAborted.
func (s *Service) confirmed(ctx context.Context, prompt string) error {
	ok, err := s.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("asking for confirmation: %w", err)
	}
	if !ok {
		s.logger.Info("action aborted", "prompt", prompt)
		return ErrAborted
	}
	return nil
}

func (s *Service) record(ctx context.Context, action Action, trackedPath, revision string) {
	err := s.journal.Record(ctx, Event{
		Action:      action,
		TrackedPath: trackedPath,
		Revision:    revision,
		At:          s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("journal record failed", "action", string(action), "error", err)
	}
}

// sourceOf returns the tracked path of a revision directory, or "" if the
// layout cannot tell.
func (s *Service) sourceOf(dir string) string {
	src, _ := s.layout.Source(dir)
	return src
}

// requireInRoot guards destructive operations against paths outside the root.
func (s *Service) requireInRoot(p string) error {
	rel, ok := within(s.layout.Root(), p)
	if !ok || rel == "." {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, filepath.Clean(p))
	}
	return nil
}
