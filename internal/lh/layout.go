package lh

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Layout maps tracked file paths to revision directories under a private root.
type Layout interface {
	// Name identifies the layout ("mirrored" or "hashed").
	Name() string

	// Root returns the private history root.
	Root() string

	// Dir returns the revision directory for an absolute tracked path.
	// The mapping is deterministic and injective.
	Dir(trackedPath string) string

	// Source returns the tracked path a revision directory belongs to, when
	// the layout can invert its mapping.
	Source(dir string) (string, bool)
}

// Layout kinds accepted by NewLayout.
const (
	LayoutMirrored = "mirrored"
	LayoutHashed   = "hashed"
)

// NewLayout creates a Layout of the given kind rooted at root.
func NewLayout(kind, root string) (Layout, error) {
	root = filepath.Clean(root)
	switch kind {
	case "", LayoutMirrored:
		return &MirroredLayout{root: root}, nil
	case LayoutHashed:
		return &HashedLayout{root: root}, nil
	default:
		return nil, fmt.Errorf("unknown layout: %q", kind)
	}
}

// MirroredLayout reproduces the tracked file's absolute path under the root,
// so every file of a workspace lands below the workspace's own directory.
// A drive letter "C:" becomes the segment "C".
type MirroredLayout struct {
	root string
}

func (l *MirroredLayout) Name() string { return LayoutMirrored }
func (l *MirroredLayout) Root() string { return l.root }

func (l *MirroredLayout) Dir(trackedPath string) string {
	p := filepath.Clean(trackedPath)
	vol := filepath.VolumeName(p)
	rest := p[len(vol):]
	vol = strings.ReplaceAll(vol, ":", "")
	return filepath.Join(l.root, vol, rest)
}

func (l *MirroredLayout) Source(dir string) (string, bool) {
	rel, ok := within(l.root, dir)
	if !ok || rel == "." {
		return "", false
	}
	if runtime.GOOS == "windows" {
		drive, rest, _ := strings.Cut(rel, string(filepath.Separator))
		if len(drive) != 1 {
			return "", false
		}
		return drive + ":" + string(filepath.Separator) + rest, true
	}
	return string(filepath.Separator) + rel, true
}

// HashedLayout keys revision directories by the MD5 of the tracked path.
// Workspace scoping is not available under this layout.
type HashedLayout struct {
	root string
}

func (l *HashedLayout) Name() string { return LayoutHashed }
func (l *HashedLayout) Root() string { return l.root }

func (l *HashedLayout) Dir(trackedPath string) string {
	return filepath.Join(l.root, PathKey(trackedPath))
}

func (l *HashedLayout) Source(string) (string, bool) { return "", false }

// PathKey returns the hex MD5 of a cleaned path.
func PathKey(p string) string {
	sum := md5.Sum([]byte(filepath.Clean(p)))
	return hex.EncodeToString(sum[:])
}

// within reports whether p is root or a descendant of it, returning the
// relative path.
func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, filepath.Clean(p))
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

var (
	_ Layout = (*MirroredLayout)(nil)
	_ Layout = (*HashedLayout)(nil)
)
