package lh_test

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lh-go/internal/lh"
	"lh-go/internal/testutil"
)

func TestArchiver(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*fixture, []string) {
		t.Helper()
		f := newFixture(t)
		var names []string
		for _, content := range []string{"a", "b"} {
			res := f.save(t, tracked, content)
			names = append(names, res.Revision.FileName)
			f.clock.Advance(time.Hour)
		}
		return f, names
	}

	t.Run("archives and restores plaintext", func(t *testing.T) {
		t.Parallel()
		f, names := setup(t)
		v := testutil.NewTestVault()
		a := lh.NewArchiver(f.svc, v, nil)

		n, err := a.Archive(t.Context(), tracked)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		keys, err := v.ListContent(t.Context(), lh.PathKey(tracked)+"/")
		require.NoError(t, err)
		assert.Len(t, keys, 2)

		// second run uploads nothing new
		n, err = a.Archive(t.Context(), tracked)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = f.svc.ClearHistory(t.Context(), tracked)
		require.NoError(t, err)

		n, err = a.Restore(t.Context(), tracked, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		revs := f.history(t, tracked)
		require.Len(t, revs, 2)
		assert.Equal(t, names[1], revs[0].FileName)
		file := f.fsmgr.File(revs[0].Path)
		assert.Equal(t, "b", string(file.Content))
		assert.Equal(t, fs.FileMode(0o400), file.Permissions.Perm())
	})

	t.Run("encrypts content", func(t *testing.T) {
		t.Parallel()
		f, _ := setup(t)
		v := testutil.NewTestVault()
		enc := testutil.NewTestEncryptor()
		a := lh.NewArchiver(f.svc, v, enc)

		_, err := a.Archive(t.Context(), tracked)
		require.NoError(t, err)

		keys, err := v.ListContent(t.Context(), lh.PathKey(tracked)+"/")
		require.NoError(t, err)
		require.NotEmpty(t, keys)
		for _, key := range keys {
			assert.True(t, strings.HasSuffix(key, ".age"), key)
			var buf bytes.Buffer
			require.NoError(t, v.GetContent(t.Context(), key, &buf))
			assert.NotEqual(t, "a", buf.String())
		}

		_, err = f.svc.ClearHistory(t.Context(), tracked)
		require.NoError(t, err)

		_, err = a.Restore(t.Context(), tracked, nil)
		assert.ErrorIs(t, err, lh.ErrLocked)

		dc, err := enc.Unlock("secret")
		require.NoError(t, err)
		n, err := a.Restore(t.Context(), tracked, dc)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("restore evicts down to the file limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		var names []string
		for _, content := range []string{"a", "b", "c", "d", "e"} {
			res := f.save(t, tracked, content)
			names = append(names, res.Revision.FileName)
			f.clock.Advance(time.Hour)
		}
		a := lh.NewArchiver(f.svc, testutil.NewTestVault(), nil)
		_, err := a.Archive(t.Context(), tracked)
		require.NoError(t, err)
		_, err = f.svc.ClearHistory(t.Context(), tracked)
		require.NoError(t, err)

		f.policy.Limit = 2
		n, err := a.Restore(t.Context(), tracked, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		revs := f.history(t, tracked)
		require.Len(t, revs, 2)
		assert.Equal(t, names[4], revs[0].FileName)
		assert.Equal(t, names[3], revs[1].FileName)
		assert.Contains(t, f.journal.Actions(), lh.ActionEvicted)
	})

	t.Run("nothing to archive", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		a := lh.NewArchiver(f.svc, testutil.NewTestVault(), nil)

		_, err := a.Archive(t.Context(), tracked)
		assert.ErrorIs(t, err, lh.ErrNoHistory)

		_, err = a.Restore(t.Context(), tracked, nil)
		assert.ErrorIs(t, err, lh.ErrNoHistory)
	})
}
