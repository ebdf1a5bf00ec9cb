package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lh-go/internal/lh"
)

func TestOSFilesystemManager_WriteFile(t *testing.T) {
	t.Run("writes content with permissions", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "a.txt")
		m := NewOSFilesystemManager()

		if err := m.WriteFile(path, []byte("hello"), 0o640); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != "hello" {
			t.Errorf("expected hello, got %q", got)
		}
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0o640 {
			t.Errorf("expected mode 0640, got %o", info.Mode().Perm())
		}
	})

	t.Run("replaces a read-only file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "ro.txt")
		if err := os.WriteFile(path, []byte("old"), 0o400); err != nil {
			t.Fatal(err)
		}
		m := NewOSFilesystemManager()

		if err := m.WriteFile(path, []byte("new"), 0o400); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		got, _ := os.ReadFile(path)
		if string(got) != "new" {
			t.Errorf("expected new, got %q", got)
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		m := NewOSFilesystemManager()
		if err := m.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), lh.TempFilePrefix) {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})
}

func TestOSFilesystemManager_Remove(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.txt")
	if err := os.WriteFile(path, []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}
	m := NewOSFilesystemManager()

	if err := m.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected file to be gone, stat err = %v", err)
	}
	if err := m.Remove(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist on second remove, got %v", err)
	}
}

func TestOSFilesystemManager_Chtimes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "t.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewOSFilesystemManager()
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := m.Chtimes(path, want); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	info, _ := m.Stat(path)
	if !info.ModTime().Equal(want) {
		t.Errorf("expected mtime %v, got %v", want, info.ModTime())
	}
}

func TestOSFilesystemManager_MkdirAllAndReadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	m := NewOSFilesystemManager()
	nested := filepath.Join(dir, "a", "b")

	if err := m.MkdirAll(nested); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	entries, err := m.ReadDir(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "b" || !entries[0].IsDir() {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestResolve(t *testing.T) {
	t.Run("returns absolute path for existing file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "f.txt")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := Resolve(path)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("allows missing files", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "gone.txt")
		got, err := Resolve(path)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("rejects device files", func(t *testing.T) {
		t.Parallel()
		if _, err := os.Stat("/dev/null"); err != nil {
			t.Skip("no /dev/null")
		}
		if _, err := Resolve("/dev/null"); err == nil {
			t.Error("expected error for device file")
		}
	})
}
