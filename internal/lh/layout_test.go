package lh_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lh-go/internal/lh"
)

func TestMirroredLayout(t *testing.T) {
	t.Parallel()

	layout, err := lh.NewLayout(lh.LayoutMirrored, root)
	require.NoError(t, err)

	t.Run("mirrors the absolute path under the root", func(t *testing.T) {
		assert.Equal(t, revDir, layout.Dir(tracked))
	})

	t.Run("distinct paths map to distinct directories", func(t *testing.T) {
		assert.NotEqual(t, layout.Dir("/a/b.txt"), layout.Dir("/a/c.txt"))
		assert.NotEqual(t, layout.Dir("/a/b/c.txt"), layout.Dir("/a/bc.txt"))
	})

	t.Run("files of a workspace land below the workspace directory", func(t *testing.T) {
		ws := layout.Dir("/home/user/proj")
		assert.Equal(t, ws+"/src/main.go", layout.Dir("/home/user/proj/src/main.go"))
	})

	t.Run("source inverts dir", func(t *testing.T) {
		src, ok := layout.Source(revDir)
		require.True(t, ok)
		assert.Equal(t, tracked, src)
	})

	t.Run("source rejects paths outside the root", func(t *testing.T) {
		_, ok := layout.Source("/elsewhere/notes.txt")
		assert.False(t, ok)
		_, ok = layout.Source(root)
		assert.False(t, ok)
	})
}

func TestHashedLayout(t *testing.T) {
	t.Parallel()

	layout, err := lh.NewLayout(lh.LayoutHashed, root)
	require.NoError(t, err)

	dir := layout.Dir(tracked)
	assert.Equal(t, root+"/"+lh.PathKey(tracked), dir)
	assert.Equal(t, dir, layout.Dir("/home/user/proj/./notes.txt"))
	assert.NotEqual(t, dir, layout.Dir("/home/user/proj/other.txt"))

	_, ok := layout.Source(dir)
	assert.False(t, ok)
}

func TestNewLayout_Unknown(t *testing.T) {
	t.Parallel()

	_, err := lh.NewLayout("flat", root)
	assert.Error(t, err)
}
