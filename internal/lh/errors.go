package lh

import "errors"

var (
	// ErrRevisionNotFound is returned when a revision file does not exist.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrNoHistory is returned when a file or workspace has no revision directory.
	ErrNoHistory = errors.New("no local history found")

	// ErrAborted is returned when the user declines a destructive confirmation.
	ErrAborted = errors.New("aborted by user")

	// ErrOutsideRoot is returned when a path handed to a destructive operation
	// does not live under the history root.
	ErrOutsideRoot = errors.New("path is outside the history root")

	// ErrUnknownSource is returned when the tracked file of a revision cannot
	// be derived from its location.
	ErrUnknownSource = errors.New("cannot determine tracked file for revision")

	// ErrInvalidDays is returned when a retention age is not a positive number of days.
	ErrInvalidDays = errors.New("days must be a positive number")

	// ErrWorkspaceScopeUnsupported is returned by workspace-scoped operations
	// under a layout that cannot group revision directories by workspace.
	ErrWorkspaceScopeUnsupported = errors.New("layout does not support workspace scope")

	// ErrMalformedRevisionName is returned when a file name carries no
	// capture timestamp.
	ErrMalformedRevisionName = errors.New("malformed revision name")

	// ErrLocked is returned when encrypted archive content is restored without
	// an unlocked decryption context.
	ErrLocked = errors.New("archive is encrypted and no decryption context was provided")
)
