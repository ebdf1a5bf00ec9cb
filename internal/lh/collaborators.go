package lh

import (
	"context"
	"time"
)

// Policy supplies the current history preferences. Values are read on every
// operation so a configuration change applies to the next save.
type Policy interface {
	// MaxEntriesPerFile caps how many revisions a history view returns.
	MaxEntriesPerFile() int
	// FileLimit caps how many revisions are stored per tracked file.
	FileLimit() int
	// FileSizeLimit is the largest file, in megabytes, that gets revisions.
	FileSizeLimit() float64
	// SaveDelay is the window within which a save supersedes the latest revision.
	SaveDelay() time.Duration
	// SkipEmptyFiles reports whether empty content is never captured.
	SkipEmptyFiles() bool
	// IsExcluded reports whether a path matches an enabled exclusion pattern.
	IsExcluded(path string) bool
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// AutoConfirm approves every prompt. Used for --yes and in tests.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

// DiffRequest carries both sides of a revision comparison.
type DiffRequest struct {
	Title        string
	PreviousPath string
	CurrentPath  string
	Previous     []byte
	Current      []byte
}

// DiffPresenter renders a comparison between a revision and the live file.
type DiffPresenter interface {
	Present(ctx context.Context, req DiffRequest) error
}
