package lh_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lh-go/internal/lh"
)

func TestService_SaveContext_Creates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res := f.save(t, tracked, "hello")

	require.Equal(t, lh.SaveCreated, res.Action)
	assert.Equal(t, "notes_20240115103000_000_m.txt", res.Revision.FileName)
	assert.Equal(t, revDir+"/notes_20240115103000_000_m.txt", res.Revision.Path)

	file := f.fsmgr.File(res.Revision.Path)
	require.NotNil(t, file)
	assert.Equal(t, "hello", string(file.Content))
	assert.Equal(t, fs.FileMode(0o400), file.Permissions.Perm())
	assert.True(t, file.ModTime.Equal(f.clock.Now()))
	assert.Equal(t, []lh.Action{lh.ActionCreated}, f.journal.Actions())
}

func TestService_SaveContext_Unchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.save(t, tracked, "hello")
	f.clock.Advance(time.Hour)
	res := f.save(t, tracked, "hello")

	assert.Equal(t, lh.SaveUnchanged, res.Action)
	assert.Len(t, f.history(t, tracked), 1)
}

func TestService_SaveContext_SupersedesWithinDelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	first := f.save(t, tracked, "one")
	f.clock.Advance(time.Minute)
	res := f.save(t, tracked, "two")

	require.Equal(t, lh.SaveSuperseded, res.Action)
	assert.Equal(t, first.Revision.FileName, res.Replaced)
	assert.Equal(t, "notes_20240115103100_000_m.txt", res.Revision.FileName)

	revs := f.history(t, tracked)
	require.Len(t, revs, 1)
	assert.Equal(t, "two", string(f.fsmgr.File(revs[0].Path).Content))
	assert.False(t, f.fsmgr.Exists(first.Revision.Path))
}

func TestService_SaveContext_SupersedeWindowSlides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.save(t, tracked, "one")
	for _, content := range []string{"two", "three", "four"} {
		f.clock.Advance(4 * time.Minute)
		res := f.save(t, tracked, content)
		require.Equal(t, lh.SaveSuperseded, res.Action)
	}
	assert.Len(t, f.history(t, tracked), 1)
}

func TestService_SaveContext_CreatesAfterDelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.save(t, tracked, "one")
	f.clock.Advance(5*time.Minute + time.Second)
	res := f.save(t, tracked, "two")

	require.Equal(t, lh.SaveCreated, res.Action)
	revs := f.history(t, tracked)
	require.Len(t, revs, 2)
	assert.Equal(t, "two", string(f.fsmgr.File(revs[0].Path).Content))
	assert.Equal(t, "one", string(f.fsmgr.File(revs[1].Path).Content))
}

func TestService_SaveContext_EvictsOldest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.policy.Limit = 3

	var names []string
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		res := f.save(t, tracked, content)
		require.Equal(t, lh.SaveCreated, res.Action)
		names = append(names, res.Revision.FileName)
		f.clock.Advance(10 * time.Minute)
	}

	revs := f.history(t, tracked)
	require.Len(t, revs, 3)
	assert.Equal(t, names[4], revs[0].FileName)
	assert.Equal(t, names[2], revs[2].FileName)
	assert.False(t, f.fsmgr.Exists(revDir+"/"+names[0]))
	assert.False(t, f.fsmgr.Exists(revDir+"/"+names[1]))
}

func TestService_SaveContext_EvictsDownToLoweredLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, content := range []string{"a", "b", "c", "d"} {
		f.save(t, tracked, content)
		f.clock.Advance(10 * time.Minute)
	}
	f.policy.Limit = 2

	res := f.save(t, tracked, "e")
	require.Equal(t, lh.SaveCreated, res.Action)
	assert.Len(t, res.Evicted, 3)
	assert.Len(t, f.history(t, tracked), 2)
}

func TestService_SaveContext_PreRevert(t *testing.T) {
	t.Parallel()

	t.Run("never supersedes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		f.save(t, tracked, "one")
		f.clock.Advance(time.Second)
		f.fsmgr.AddFile(tracked, []byte("two"))
		res, err := f.svc.SaveContext(t.Context(), tracked, lh.SaveOptions{PreRevert: true})
		require.NoError(t, err)

		require.Equal(t, lh.SaveCreated, res.Action)
		assert.Equal(t, lh.ReasonRevert, res.Revision.Reason)
		assert.Equal(t, "notes_20240115103001_000_r.txt", res.Revision.FileName)
		assert.Len(t, f.history(t, tracked), 2)
	})

	t.Run("skips content equal to the latest revision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		f.save(t, tracked, "one")
		res, err := f.svc.SaveContext(t.Context(), tracked, lh.SaveOptions{PreRevert: true})
		require.NoError(t, err)
		assert.Equal(t, lh.SaveUnchanged, res.Action)
	})

	t.Run("a pre-revert revision is never superseded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		f.fsmgr.AddFile(tracked, []byte("one"))
		_, err := f.svc.SaveContext(t.Context(), tracked, lh.SaveOptions{PreRevert: true})
		require.NoError(t, err)

		f.clock.Advance(time.Second)
		res := f.save(t, tracked, "two")
		assert.Equal(t, lh.SaveCreated, res.Action)
		assert.Len(t, f.history(t, tracked), 2)
	})
}

func TestService_SaveContext_NameCollision(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.policy.Delay = 0

	first := f.save(t, tracked, "one")
	res := f.save(t, tracked, "two")

	require.Equal(t, lh.SaveSuperseded, res.Action)
	assert.Equal(t, "notes_20240115103000_000_m.txt", first.Revision.FileName)
	assert.Equal(t, "notes_20240115103000_001_m.txt", res.Revision.FileName)
}

func TestService_SaveContext_Skips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(f *fixture) string
		reason lh.SkipReason
	}{
		{
			name:   "missing file",
			setup:  func(f *fixture) string { return "/home/user/proj/gone.txt" },
			reason: lh.SkipMissing,
		},
		{
			name: "directory",
			setup: func(f *fixture) string {
				f.fsmgr.AddDirectory("/home/user/proj/src")
				return "/home/user/proj/src"
			},
			reason: lh.SkipNotRegular,
		},
		{
			name: "excluded",
			setup: func(f *fixture) string {
				f.fsmgr.AddFile("/home/user/proj/.git/config", []byte("x"))
				return "/home/user/proj/.git/config"
			},
			reason: lh.SkipExcluded,
		},
		{
			name: "inside history root",
			setup: func(f *fixture) string {
				f.fsmgr.AddFile(root+"/stray.txt", []byte("x"))
				return root + "/stray.txt"
			},
			reason: lh.SkipInsideRoot,
		},
		{
			name: "too large",
			setup: func(f *fixture) string {
				f.policy.SizeLimitMB = 0.000001
				f.fsmgr.AddFile(tracked, []byte("0123456789"))
				return tracked
			},
			reason: lh.SkipTooLarge,
		},
		{
			name: "empty",
			setup: func(f *fixture) string {
				f.fsmgr.AddFile(tracked, nil)
				return tracked
			},
			reason: lh.SkipEmpty,
		},
		{
			name: "unreadable",
			setup: func(f *fixture) string {
				f.fsmgr.AddFile(tracked, []byte("x"))
				f.fsmgr.FailOn("read", tracked, errors.New("permission denied"))
				return tracked
			},
			reason: lh.SkipUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			path := tt.setup(f)

			res, err := f.svc.SaveContext(t.Context(), path, lh.SaveOptions{})
			require.NoError(t, err)
			assert.Equal(t, lh.SaveSkipped, res.Action)
			assert.Equal(t, tt.reason, res.SkipReason)
			assert.Empty(t, f.journal.Actions())
		})
	}
}

func TestService_SaveContext_EmptyFilesAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.policy.SkipEmpty = false

	res := f.save(t, tracked, "")
	assert.Equal(t, lh.SaveCreated, res.Action)
}

func TestService_SaveContext_StorageErrors(t *testing.T) {
	t.Parallel()

	t.Run("unreadable latest revision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "one")
		f.fsmgr.FailOn("read", first.Revision.Path, errors.New("io error"))

		f.fsmgr.AddFile(tracked, []byte("two"))
		_, err := f.svc.SaveContext(t.Context(), tracked, lh.SaveOptions{})
		assert.Error(t, err)
	})

	t.Run("revision directory cannot be created", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.fsmgr.FailOn("mkdir", revDir, errors.New("read-only filesystem"))

		f.fsmgr.AddFile(tracked, []byte("one"))
		_, err := f.svc.SaveContext(t.Context(), tracked, lh.SaveOptions{})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.fsmgr.AddFile(tracked, []byte("one"))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := f.svc.SaveContext(ctx, tracked, lh.SaveOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
