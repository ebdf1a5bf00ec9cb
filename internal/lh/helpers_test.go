package lh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lh-go/internal/lh"
	"lh-go/internal/testutil"
)

const (
	root    = "/home/user/.local-history"
	tracked = "/home/user/proj/notes.txt"
	revDir  = root + "/home/user/proj/notes.txt"
)

type fixture struct {
	svc     *lh.Service
	fsmgr   *testutil.MockFilesystemManager
	clock   *testutil.StubClock
	policy  *testutil.StubPolicy
	confirm *testutil.StubConfirmer
	journal *testutil.MemoryJournal
	logger  *testutil.RecordingLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLayout(t, lh.LayoutMirrored)
}

func newFixtureWithLayout(t *testing.T, kind string) *fixture {
	t.Helper()
	layout, err := lh.NewLayout(kind, root)
	require.NoError(t, err)

	f := &fixture{
		fsmgr:   testutil.NewMockFilesystemManager(),
		clock:   testutil.FixedClock(),
		policy:  testutil.DefaultPolicy(),
		confirm: &testutil.StubConfirmer{Answer: true},
		journal: &testutil.MemoryJournal{},
		logger:  &testutil.RecordingLogger{},
	}
	f.svc = lh.NewService(f.fsmgr, layout, f.policy, f.confirm, f.journal, f.logger, f.clock)
	return f
}

// save writes content to path and captures it.
func (f *fixture) save(t *testing.T, path, content string) *lh.SaveResult {
	t.Helper()
	f.fsmgr.AddFile(path, []byte(content))
	res, err := f.svc.SaveContext(t.Context(), path, lh.SaveOptions{})
	require.NoError(t, err)
	return res
}

func (f *fixture) history(t *testing.T, path string) []*lh.Revision {
	t.Helper()
	revs, err := f.svc.LoadHistory(t.Context(), f.svc.RevisionDir(path))
	require.NoError(t, err)
	return revs
}
