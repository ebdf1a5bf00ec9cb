package lh

import (
	"context"
	"io"
)

// Vault provides an interface for archive storage backends.
// All operations use io.Reader/io.Writer for streaming so large revisions are
// never required to fit in memory on the backend side.
type Vault interface {
	// PutContent stores content under key. Storing the same key twice overwrites.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, key string, r io.Reader, size int64) error

	// GetContent retrieves the content stored under key and writes it to w.
	GetContent(ctx context.Context, key string, w io.Writer) error

	// ListContent returns all keys starting with prefix, sorted.
	ListContent(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}
