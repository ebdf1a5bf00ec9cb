package lh

import (
	"io/fs"
	"time"
)

// TempFilePrefix marks in-flight files written by FilesystemManager.WriteFile.
// Listings of a revision directory skip them.
const TempFilePrefix = ".lh-tmp-"

// FilesystemManager provides the filesystem operations the revision store needs.
// It abstracts file access to enable testing without touching the real filesystem.
// Errors for missing paths must satisfy errors.Is(err, fs.ErrNotExist).
type FilesystemManager interface {
	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// ReadFile returns the full content of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile atomically replaces the content of path, creating it with perm
	// if needed. An existing read-only file is replaced, never appended to.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Rename moves oldPath to newPath within the same filesystem.
	Rename(oldPath, newPath string) error

	// Remove deletes a file or an empty directory, including read-only files.
	Remove(path string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// ReadDir lists the entries of a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)

	// Chmod changes the permission bits of a file.
	Chmod(path string, mode fs.FileMode) error

	// Chtimes sets both access and modification time of a file.
	Chtimes(path string, mtime time.Time) error
}
