package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"lh-go/internal/lh"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Parent directories of added files are created implicitly.
// Safe for concurrent use.
type MockFilesystemManager struct {
	mu       sync.Mutex
	files    map[string]*MockFile
	failures map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string]*MockFile),
		failures: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileWithTime(path, content, time.Now())
}

// AddFileWithTime adds a file with an explicit modification time.
func (m *MockFilesystemManager) AddFileWithTime(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.mkdirAll(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0o644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(filepath.Clean(path))
}

// File returns the file stored at path, or nil.
func (m *MockFilesystemManager) File(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[filepath.Clean(path)]
}

// Exists reports whether path exists.
func (m *MockFilesystemManager) Exists(path string) bool {
	return m.File(path) != nil
}

// FailOn makes operation op ("stat", "read", "write", "rename", "remove",
// "mkdir", "readdir", "chmod", "chtimes") fail with err for path.
func (m *MockFilesystemManager) FailOn(op, path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+":"+filepath.Clean(path)] = err
}

func (m *MockFilesystemManager) failure(op, path string) error {
	if err, ok := m.failures[op+":"+path]; ok {
		return &fs.PathError{Op: op, Path: path, Err: err}
	}
	return nil
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

func (m *MockFilesystemManager) mkdirAll(path string) {
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := m.files[p]; !ok {
			m.files[p] = &MockFile{Permissions: 0o755 | fs.ModeDir, ModTime: time.Now(), IsDirectory: true}
		}
		if parent := filepath.Dir(p); parent == p {
			return
		}
	}
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("stat", path); err != nil {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("stat", path)
	}
	return newMockFileInfo(path, file), nil
}

func (m *MockFilesystemManager) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("read", path); err != nil {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("read", path)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot read directory: %s", path)
	}
	return append([]byte(nil), file.Content...), nil
}

func (m *MockFilesystemManager) WriteFile(path string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("write", path); err != nil {
		return err
	}
	if parent, ok := m.files[filepath.Dir(path)]; !ok || !parent.IsDirectory {
		return notExist("write", path)
	}
	if existing, ok := m.files[path]; ok {
		if existing.IsDirectory {
			return fmt.Errorf("cannot write directory: %s", path)
		}
		perm = existing.Permissions
	}
	m.files[path] = &MockFile{
		Content:     append([]byte(nil), data...),
		Permissions: perm,
		ModTime:     time.Now(),
	}
	return nil
}

func (m *MockFilesystemManager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldPath, newPath = filepath.Clean(oldPath), filepath.Clean(newPath)
	if err := m.failure("rename", oldPath); err != nil {
		return err
	}
	file, ok := m.files[oldPath]
	if !ok {
		return notExist("rename", oldPath)
	}
	if file.IsDirectory {
		return fmt.Errorf("cannot rename directory: %s", oldPath)
	}
	delete(m.files, oldPath)
	m.files[newPath] = file
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("remove", path); err != nil {
		return err
	}
	file, ok := m.files[path]
	if !ok {
		return notExist("remove", path)
	}
	if file.IsDirectory && len(m.children(path)) > 0 {
		return fmt.Errorf("directory not empty: %s", path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("mkdir", path); err != nil {
		return err
	}
	m.mkdirAll(path)
	return nil
}

func (m *MockFilesystemManager) ReadDir(path string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("readdir", path); err != nil {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, notExist("readdir", path)
	}
	if !file.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", path)
	}
	names := m.children(path)
	sort.Strings(names)
	entries := make([]fs.DirEntry, 0, len(names))
	for _, name := range names {
		child := filepath.Join(path, name)
		entries = append(entries, fs.FileInfoToDirEntry(newMockFileInfo(child, m.files[child])))
	}
	return entries, nil
}

func (m *MockFilesystemManager) Chmod(path string, mode fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("chmod", path); err != nil {
		return err
	}
	file, ok := m.files[path]
	if !ok {
		return notExist("chmod", path)
	}
	file.Permissions = file.Permissions&fs.ModeType | mode.Perm()
	return nil
}

func (m *MockFilesystemManager) Chtimes(path string, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if err := m.failure("chtimes", path); err != nil {
		return err
	}
	file, ok := m.files[path]
	if !ok {
		return notExist("chtimes", path)
	}
	file.ModTime = mtime
	return nil
}

// children returns the base names of the direct children of dir.
func (m *MockFilesystemManager) children(dir string) []string {
	var names []string
	prefix := dir + string(filepath.Separator)
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		prefix = dir
	}
	for p := range m.files {
		if p == dir || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, string(filepath.Separator)) {
			names = append(names, rest)
		}
	}
	return names
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile
}

func newMockFileInfo(path string, file *MockFile) *mockFileInfo {
	mode := file.Permissions
	if file.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(file.Content)),
		mode:     mode,
		modTime:  file.ModTime,
		isDir:    file.IsDirectory,
		mockFile: file,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }

// Compile-time check
var _ lh.FilesystemManager = (*MockFilesystemManager)(nil)
