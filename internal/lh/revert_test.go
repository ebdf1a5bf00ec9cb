package lh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lh-go/internal/lh"
	"lh-go/internal/testutil"
)

func TestService_RevertToRevision(t *testing.T) {
	t.Parallel()

	t.Run("restores content and keeps a pre-revert revision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "v1")
		f.clock.Advance(time.Hour)
		f.fsmgr.AddFile(tracked, []byte("v2 unsaved"))

		res, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, tracked)
		require.NoError(t, err)

		assert.True(t, res.Reverted)
		assert.Equal(t, "v1", string(f.fsmgr.File(tracked).Content))
		require.NotNil(t, res.Snapshot)
		assert.Equal(t, lh.SaveCreated, res.Snapshot.Action)
		assert.Equal(t, lh.ReasonRevert, res.Snapshot.Revision.Reason)
		assert.Equal(t, "v2 unsaved", string(f.fsmgr.File(res.Snapshot.Revision.Path).Content))
		assert.Contains(t, f.journal.Actions(), lh.ActionReverted)
	})

	t.Run("derives the tracked file from the revision path", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "v1")
		f.clock.Advance(time.Hour)
		f.fsmgr.AddFile(tracked, []byte("v2"))

		res, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, "")
		require.NoError(t, err)
		assert.Equal(t, tracked, res.TrackedPath)
		assert.Equal(t, "v1", string(f.fsmgr.File(tracked).Content))
	})

	t.Run("no-op when content already matches", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "v1")
		f.clock.Advance(time.Hour)
		before := *f.fsmgr.File(tracked)

		res, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, tracked)
		require.NoError(t, err)
		assert.False(t, res.Reverted)
		assert.Empty(t, f.confirm.Prompts)
		assert.Len(t, f.history(t, tracked), 1)

		after := f.fsmgr.File(tracked)
		assert.Equal(t, "v1", string(after.Content))
		assert.True(t, before.ModTime.Equal(after.ModTime), "live file mtime changed")
	})

	t.Run("recreates a deleted file", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "v1")
		require.NoError(t, f.fsmgr.Remove(tracked))

		res, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, tracked)
		require.NoError(t, err)
		assert.True(t, res.Reverted)
		assert.Equal(t, lh.SkipMissing, res.Snapshot.SkipReason)
		assert.Equal(t, "v1", string(f.fsmgr.File(tracked).Content))
	})

	t.Run("declined confirmation leaves the file alone", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		first := f.save(t, tracked, "v1")
		f.fsmgr.AddFile(tracked, []byte("v2"))
		f.confirm.Answer = false

		_, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, tracked)
		assert.ErrorIs(t, err, lh.ErrAborted)
		assert.Equal(t, "v2", string(f.fsmgr.File(tracked).Content))
		assert.Len(t, f.history(t, tracked), 1)
	})

	t.Run("unknown source under hashed layout", func(t *testing.T) {
		t.Parallel()
		f := newFixtureWithLayout(t, lh.LayoutHashed)
		first := f.save(t, tracked, "v1")

		_, err := f.svc.RevertToRevision(t.Context(), first.Revision.Path, "")
		assert.ErrorIs(t, err, lh.ErrUnknownSource)
	})

	t.Run("missing revision", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.RevertToRevision(t.Context(), revDir+"/notes_20240101000000_000_m.txt", tracked)
		assert.ErrorIs(t, err, lh.ErrRevisionNotFound)
	})
}

func TestService_DisplayDiff(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	first := f.save(t, tracked, "v1\n")
	f.fsmgr.AddFile(tracked, []byte("v2\n"))

	presenter := &testutil.RecordingPresenter{}
	require.NoError(t, f.svc.DisplayDiff(t.Context(), first.Revision.Path, tracked, presenter))

	require.Len(t, presenter.Requests, 1)
	req := presenter.Requests[0]
	assert.Equal(t, "v1\n", string(req.Previous))
	assert.Equal(t, "v2\n", string(req.Current))
	assert.Equal(t, "notes_20240115103000_000_m.txt <-> notes.txt", req.Title)
}
