package lh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// SaveAction describes what SaveContext did.
type SaveAction string

const (
	// SaveSkipped means a policy check declined the capture.
	SaveSkipped SaveAction = "skipped"
	// SaveUnchanged means the content equals the most recent revision.
	SaveUnchanged SaveAction = "unchanged"
	// SaveSuperseded means the most recent revision was replaced in place.
	SaveSuperseded SaveAction = "superseded"
	// SaveCreated means a new revision was added.
	SaveCreated SaveAction = "created"
)

// SkipReason explains a skipped capture.
type SkipReason string

const (
	SkipMissing    SkipReason = "missing"
	SkipUnreadable SkipReason = "unreadable"
	SkipNotRegular SkipReason = "not a regular file"
	SkipInsideRoot SkipReason = "inside history root"
	SkipExcluded   SkipReason = "excluded"
	SkipTooLarge   SkipReason = "exceeds size limit"
	SkipEmpty      SkipReason = "empty"
)

// SaveOptions tunes a capture.
type SaveOptions struct {
	// PreRevert captures the safety revision taken before a revert. It is
	// tagged with ReasonRevert and never supersedes an existing revision.
	PreRevert bool
}

// SaveResult reports the outcome of SaveContext.
type SaveResult struct {
	Action     SaveAction
	SkipReason SkipReason
	// Revision is the written revision, or the matching one when unchanged.
	Revision *Revision
	// Replaced is the file name of the superseded revision.
	Replaced string
	// Evicted lists the file names removed to respect the file limit.
	Evicted []string
}

const bytesPerMegabyte = 1_000_000

// SaveContext captures the current content of trackedPath as a revision.
//
// A save within SaveDelay of the most recent revision replaces that revision
// instead of adding one, so a burst of saves collapses into a single entry.
// Content equal to the most recent revision is never stored twice. Before a
// new revision is added the oldest ones are evicted down to FileLimit.
func (s *Service) SaveContext(ctx context.Context, trackedPath string, opts SaveOptions) (*SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trackedPath = filepath.Clean(trackedPath)

	info, err := s.fsmgr.Stat(trackedPath)
	if err != nil {
		return s.skipUnreadable(trackedPath, err), nil
	}
	if reason := s.policySkip(trackedPath, info); reason != "" {
		s.logger.Debug("save skipped", "path", trackedPath, "reason", string(reason))
		return &SaveResult{Action: SaveSkipped, SkipReason: reason}, nil
	}

	content, err := s.fsmgr.ReadFile(trackedPath)
	if err != nil {
		return s.skipUnreadable(trackedPath, err), nil
	}
	if len(content) == 0 && s.policy.SkipEmptyFiles() {
		s.logger.Debug("save skipped", "path", trackedPath, "reason", string(SkipEmpty))
		return &SaveResult{Action: SaveSkipped, SkipReason: SkipEmpty}, nil
	}

	dir := s.layout.Dir(trackedPath)
	if err := s.fsmgr.MkdirAll(dir); err != nil {
		s.logger.Warn("creating revision directory failed", "dir", dir, "error", err)
		return nil, fmt.Errorf("creating revision directory: %w", err)
	}
	revisions, err := s.listRevisions(dir)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	reason := ReasonManual
	if opts.PreRevert {
		reason = ReasonRevert
	}
	name := uniqueName(revisions, trackedPath, now, reason)
	target := filepath.Join(dir, name)

	if latest := newestByModTime(revisions); latest != nil {
		previous, err := s.fsmgr.ReadFile(latest.Path)
		if err != nil {
			s.logger.Warn("reading latest revision failed", "path", latest.Path, "error", err)
			return nil, fmt.Errorf("reading latest revision: %w", err)
		}
		if bytes.Equal(previous, content) {
			s.logger.Debug("content unchanged", "path", trackedPath, "revision", latest.FileName)
			return &SaveResult{Action: SaveUnchanged, Revision: latest}, nil
		}

		if !opts.PreRevert && latest.Reason != ReasonRevert && now.Sub(latest.ModTime) <= s.policy.SaveDelay() {
			return s.supersede(ctx, trackedPath, latest, target, content, now)
		}
	}

	evicted, err := s.evict(ctx, trackedPath, revisions)
	if err != nil {
		return nil, err
	}

	rev, err := s.writeRevision(target, content, now)
	if err != nil {
		return nil, err
	}
	s.record(ctx, ActionCreated, trackedPath, rev.FileName)
	s.logger.Info("revision created", "path", trackedPath, "revision", rev.FileName, "evicted", len(evicted))
	return &SaveResult{Action: SaveCreated, Revision: rev, Evicted: evicted}, nil
}

func (s *Service) skipUnreadable(trackedPath string, err error) *SaveResult {
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("save skipped", "path", trackedPath, "reason", string(SkipMissing))
		return &SaveResult{Action: SaveSkipped, SkipReason: SkipMissing}
	}
	s.logger.Warn("reading tracked file failed", "path", trackedPath, "error", err)
	return &SaveResult{Action: SaveSkipped, SkipReason: SkipUnreadable}
}

func (s *Service) policySkip(trackedPath string, info fs.FileInfo) SkipReason {
	if !info.Mode().IsRegular() {
		return SkipNotRegular
	}
	if _, inside := within(s.layout.Root(), trackedPath); inside {
		return SkipInsideRoot
	}
	if s.policy.IsExcluded(trackedPath) {
		return SkipExcluded
	}
	if float64(info.Size())/bytesPerMegabyte > s.policy.FileSizeLimit() {
		return SkipTooLarge
	}
	return ""
}

// supersede renames the latest revision to target and rewrites it with the
// new content, keeping the revision count unchanged.
func (s *Service) supersede(ctx context.Context, trackedPath string, latest *Revision, target string, content []byte, now time.Time) (*SaveResult, error) {
	if err := s.fsmgr.Rename(latest.Path, target); err != nil {
		s.logger.Warn("renaming revision failed", "from", latest.Path, "to", target, "error", err)
		return nil, fmt.Errorf("renaming revision: %w", err)
	}
	rev, err := s.writeRevision(target, content, now)
	if err != nil {
		return nil, err
	}
	s.record(ctx, ActionSuperseded, trackedPath, rev.FileName)
	s.logger.Info("revision superseded", "path", trackedPath, "revision", rev.FileName, "replaced", latest.FileName)
	return &SaveResult{Action: SaveSuperseded, Revision: rev, Replaced: latest.FileName}, nil
}

// evict removes the oldest revisions until one more fits under FileLimit.
func (s *Service) evict(ctx context.Context, trackedPath string, revisions []*Revision) ([]string, error) {
	return s.evictTo(ctx, trackedPath, revisions, s.fileLimit()-1)
}

// evictTo removes the oldest revisions until at most keep remain.
func (s *Service) evictTo(ctx context.Context, trackedPath string, revisions []*Revision, keep int) ([]string, error) {
	var evicted []string
	oldestFirst := byModTimeAscending(revisions)
	for len(oldestFirst) > keep {
		oldest := oldestFirst[0]
		if err := s.fsmgr.Remove(oldest.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("evicting revision failed", "path", oldest.Path, "error", err)
			return evicted, fmt.Errorf("evicting revision: %w", err)
		}
		s.record(ctx, ActionEvicted, trackedPath, oldest.FileName)
		evicted = append(evicted, oldest.FileName)
		oldestFirst = oldestFirst[1:]
	}
	return evicted, nil
}

func (s *Service) fileLimit() int {
	if limit := s.policy.FileLimit(); limit > 1 {
		return limit
	}
	return 1
}

// writeRevision stores content at path, stamps it with the capture time and
// makes it read-only.
func (s *Service) writeRevision(path string, content []byte, capturedAt time.Time) (*Revision, error) {
	if err := s.fsmgr.WriteFile(path, content, 0o600); err != nil {
		s.logger.Warn("writing revision failed", "path", path, "error", err)
		return nil, fmt.Errorf("writing revision: %w", err)
	}
	if err := s.fsmgr.Chtimes(path, capturedAt); err != nil {
		return nil, fmt.Errorf("setting revision time: %w", err)
	}
	if err := s.fsmgr.Chmod(path, 0o400); err != nil {
		return nil, fmt.Errorf("making revision read-only: %w", err)
	}

	name := filepath.Base(path)
	parsed, err := parseRevisionName(name)
	if err != nil {
		return nil, err
	}
	return &Revision{
		FileName:   name,
		Timestamp:  parsed.timestamp,
		Path:       path,
		Reason:     parsed.reason,
		CapturedAt: parsed.capturedAt,
		ModTime:    capturedAt,
		Size:       int64(len(content)),
	}, nil
}

// uniqueName bumps the millisecond field until the name is free in the
// directory.
func uniqueName(existing []*Revision, trackedPath string, at time.Time, reason Reason) string {
	taken := make(map[string]bool, len(existing))
	for _, r := range existing {
		taken[r.FileName] = true
	}
	name := RevisionName(trackedPath, at, reason)
	for i := 0; taken[name] && i < 1000; i++ {
		at = at.Add(time.Millisecond)
		name = RevisionName(trackedPath, at, reason)
	}
	return name
}
