package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"lh-go/internal/config"
	"lh-go/internal/database"
	"lh-go/internal/encryption"
	"lh-go/internal/fs"
	"lh-go/internal/lh"
	"lh-go/internal/preferences"
	"lh-go/internal/vault"
)

// Options adjusts how an LHApp is built for one CLI invocation.
type Options struct {
	// Confirmer answers destructive prompts. Nil approves everything.
	Confirmer lh.Confirmer
	// Workspace, when set, layers its settings file over the global one.
	Workspace string
	// Verbose echoes Info records to Stderr.
	Verbose bool
	// Stderr receives echoed log records. Nil means os.Stderr.
	Stderr io.Writer
	// Clock overrides the time source. Nil means the real clock.
	Clock lh.Clock
}

// LHApp is the application layer between the CLI and lh.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases resources on Close.
type LHApp struct {
	cfg          *config.Config
	op           *Operation
	fsmgr        *fs.OSFilesystemManager
	settings     []*preferences.FileSource
	prefs        *preferences.Store
	journal      lh.Journal
	store        lh.Journal
	closeJournal func() error
	service      *lh.Service
	logger       lh.Logger
	logFile      *os.File
}

// NewLHApp creates a fully wired LHApp from the given config.
// command identifies the CLI command being run (e.g. "save", "purge").
// The caller must call Close when done.
func NewLHApp(cfg *config.Config, command, parameters string, opts Options) (*LHApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := NewOperation(lh.UUIDGenerator{}, command, parameters)
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With(slog.String("cmd", command))}

	a := &LHApp{
		cfg:     cfg,
		op:      op,
		fsmgr:   fs.NewOSFilesystemManager(),
		logger:  logger,
		logFile: logFile,
	}

	layout, err := lh.NewLayout(cfg.History.Layout, cfg.History.Root)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating layout: %w", err)
	}

	src, err := a.openSettings(opts.Workspace)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.prefs = preferences.New(src)

	journal, closeJournal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	a.store = journal
	a.journal = &operationJournal{inner: journal, op: op}
	a.closeJournal = closeJournal

	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = lh.AutoConfirm{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = lh.RealClock{}
	}

	a.service = lh.NewService(a.fsmgr, layout, a.prefs, confirmer, a.journal, logger, clock)
	logger.Debug("app initialized", "root", cfg.History.Root, "layout", layout.Name(), "params", parameters)
	return a, nil
}

// openSettings layers the workspace settings file over the global one.
func (a *LHApp) openSettings(workspace string) (preferences.Source, error) {
	var layers []preferences.Source
	paths := []string{a.cfg.History.SettingsPath}
	if workspace != "" && a.cfg.History.WorkspaceSettings != "" {
		rel := a.cfg.History.WorkspaceSettings
		if !filepath.IsAbs(rel) {
			rel = filepath.Join(workspace, rel)
		}
		paths = append(paths, rel)
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		src, err := preferences.NewFileSource(p, a.logger)
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		a.settings = append(a.settings, src)
		layers = append(layers, src)
	}
	return preferences.NewLayered(layers...), nil
}

// FindWorkspace walks up from start looking for a directory that holds the
// workspace settings file. It returns "" when none is found.
func FindWorkspace(start, settingsRel string) string {
	if settingsRel == "" || filepath.IsAbs(settingsRel) {
		return ""
	}
	dir := filepath.Clean(start)
	for {
		if _, err := os.Stat(filepath.Join(dir, settingsRel)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Config returns the configuration the app was built from.
func (a *LHApp) Config() *config.Config {
	return a.cfg
}

// Operation returns the operation of this invocation.
func (a *LHApp) Operation() *Operation {
	return a.op
}

// Preferences returns the resolved history policy.
func (a *LHApp) Preferences() *preferences.Store {
	return a.prefs
}

// fail marks the operation as failed and passes err through.
func (a *LHApp) fail(err error) error {
	if err != nil && !errors.Is(err, lh.ErrAborted) {
		a.op.Status = "error"
	}
	return err
}

// Save resolves the given path and captures a revision of it.
func (a *LHApp) Save(ctx context.Context, rawPath string, preRevert bool) (*lh.SaveResult, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return nil, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	res, err := a.service.SaveContext(ctx, p, lh.SaveOptions{PreRevert: preRevert})
	return res, a.fail(err)
}

// History returns the revisions of a file, newest first. Unless all is set
// the list is capped at the maxEntriesPerFile preference.
func (a *LHApp) History(ctx context.Context, rawPath string, all bool) ([]*lh.Revision, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return nil, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	if all {
		revs, err := a.service.LoadHistory(ctx, a.service.RevisionDir(p))
		return revs, a.fail(err)
	}
	revs, err := a.service.ViewHistory(ctx, p)
	return revs, a.fail(err)
}

// trackedFor resolves rawPath, or derives the tracked file from the
// revision's location when rawPath is empty.
func (a *LHApp) trackedFor(revisionPath, rawPath string) (string, error) {
	if rawPath != "" {
		return fs.Resolve(rawPath)
	}
	src, ok := a.service.Layout().Source(filepath.Dir(revisionPath))
	if !ok {
		return "", fmt.Errorf("%w: %s (pass the file path explicitly)", lh.ErrUnknownSource, revisionPath)
	}
	return src, nil
}

// Diff presents the differences between a revision and the live file.
func (a *LHApp) Diff(ctx context.Context, rawRevision, rawPath string, presenter lh.DiffPresenter) error {
	rev, err := filepath.Abs(rawRevision)
	if err != nil {
		return a.fail(fmt.Errorf("resolving revision path: %w", err))
	}
	tracked, err := a.trackedFor(rev, rawPath)
	if err != nil {
		return a.fail(err)
	}
	return a.fail(a.service.DisplayDiff(ctx, rev, tracked, presenter))
}

// Revert restores a file to a revision. rawPath may be empty when the
// layout can derive the file from the revision location.
func (a *LHApp) Revert(ctx context.Context, rawRevision, rawPath string) (*lh.RevertResult, error) {
	rev, err := filepath.Abs(rawRevision)
	if err != nil {
		return nil, a.fail(fmt.Errorf("resolving revision path: %w", err))
	}
	tracked := ""
	if rawPath != "" {
		if tracked, err = fs.Resolve(rawPath); err != nil {
			return nil, a.fail(fmt.Errorf("resolving path: %w", err))
		}
	}
	res, err := a.service.RevertToRevision(ctx, rev, tracked)
	return res, a.fail(err)
}

// RemoveRevision deletes one revision file.
func (a *LHApp) RemoveRevision(ctx context.Context, rawRevision string) error {
	rev, err := filepath.Abs(rawRevision)
	if err != nil {
		return a.fail(fmt.Errorf("resolving revision path: %w", err))
	}
	return a.fail(a.service.RemoveRevision(ctx, rev))
}

// ClearHistory deletes every revision of a file.
func (a *LHApp) ClearHistory(ctx context.Context, rawPath string) (int, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return 0, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	n, err := a.service.ClearHistory(ctx, p)
	return n, a.fail(err)
}

// Purge deletes revisions older than days, across the whole root or, when
// rawWorkspace is set, only for files under that workspace.
func (a *LHApp) Purge(ctx context.Context, days int, rawWorkspace string) (int, error) {
	if rawWorkspace == "" {
		n, err := a.service.RemoveOldFiles(ctx, days)
		return n, a.fail(err)
	}
	ws, err := fs.Resolve(rawWorkspace)
	if err != nil {
		return 0, a.fail(fmt.Errorf("resolving workspace: %w", err))
	}
	n, err := a.service.RemoveWorkspaceHistory(ctx, ws, days)
	return n, a.fail(err)
}

// RevisionPath returns the revision directory of a file.
func (a *LHApp) RevisionPath(rawPath string) (string, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return a.service.RevisionDir(p), nil
}

// WorkspaceRevisionPath returns the directory holding a workspace's history.
func (a *LHApp) WorkspaceRevisionPath(rawWorkspace string) (string, error) {
	ws, err := fs.Resolve(rawWorkspace)
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	return a.service.WorkspaceRevisionDir(ws)
}

// Journal returns the most recent journal events.
func (a *LHApp) Journal(ctx context.Context, limit int) ([]lh.Event, error) {
	events, err := a.journal.Recent(ctx, limit)
	if err != nil {
		return nil, a.fail(fmt.Errorf("reading journal: %w", err))
	}
	return events, nil
}

// pathJournal is implemented by journals that can filter by tracked file.
type pathJournal interface {
	ForPath(ctx context.Context, trackedPath string, limit int) ([]lh.Event, error)
}

// JournalFor returns the most recent journal events of one file.
func (a *LHApp) JournalFor(ctx context.Context, rawPath string, limit int) ([]lh.Event, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return nil, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	pj, ok := a.store.(pathJournal)
	if !ok {
		return nil, a.fail(fmt.Errorf("journal type %q cannot filter by file", a.cfg.Journal.Type))
	}
	events, err := pj.ForPath(ctx, p, limit)
	if err != nil {
		return nil, a.fail(fmt.Errorf("reading journal: %w", err))
	}
	return events, nil
}

// Encryptor builds the configured encryptor.
func (a *LHApp) Encryptor() (lh.Encryptor, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return enc, nil
}

// InitKeys generates the archive key pair, sealing the private key with passphrase.
func (a *LHApp) InitKeys(passphrase string) error {
	enc, err := a.Encryptor()
	if err != nil {
		return a.fail(err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return a.fail(fmt.Errorf("setting up keys: %w", err))
	}
	a.logger.Info("archive keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// archiver builds the vault, and the encryptor when archives are encrypted.
// Both are created on demand so commands that never archive do not need
// working vault credentials.
func (a *LHApp) archiver(ctx context.Context) (*lh.Archiver, lh.Encryptor, error) {
	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Archive)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return nil, nil, fmt.Errorf("archive vault %q is not usable: %w", a.cfg.Archive.Name, err)
	}
	if !a.cfg.Archive.Encrypt {
		return lh.NewArchiver(a.service, v, nil), nil, nil
	}
	enc, err := a.Encryptor()
	if err != nil {
		return nil, nil, err
	}
	if !enc.IsConfigured() {
		return nil, nil, fmt.Errorf("archive encryption is enabled but no keys exist: run 'lh keys init'")
	}
	return lh.NewArchiver(a.service, v, enc), enc, nil
}

// ArchiveEncrypted reports whether archives are written encrypted.
func (a *LHApp) ArchiveEncrypted() bool {
	return a.cfg.Archive.Encrypt
}

// Archive uploads the history of a file to the configured vault.
func (a *LHApp) Archive(ctx context.Context, rawPath string) (int, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return 0, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	arch, _, err := a.archiver(ctx)
	if err != nil {
		return 0, a.fail(err)
	}
	n, err := arch.Archive(ctx, p)
	return n, a.fail(err)
}

// Unarchive downloads the archived history of a file. passphrase is only
// consulted for encrypted archives; it may be nil otherwise.
func (a *LHApp) Unarchive(ctx context.Context, rawPath string, passphrase func() (string, error)) (int, error) {
	p, err := fs.Resolve(rawPath)
	if err != nil {
		return 0, a.fail(fmt.Errorf("resolving path: %w", err))
	}
	arch, enc, err := a.archiver(ctx)
	if err != nil {
		return 0, a.fail(err)
	}

	var dc lh.DecryptionContext
	if enc != nil {
		if passphrase == nil {
			return 0, a.fail(lh.ErrLocked)
		}
		pass, err := passphrase()
		if err != nil {
			return 0, a.fail(fmt.Errorf("reading passphrase: %w", err))
		}
		if dc, err = enc.Unlock(pass); err != nil {
			return 0, a.fail(fmt.Errorf("unlocking keys: %w", err))
		}
	}
	n, err := arch.Restore(ctx, p, dc)
	return n, a.fail(err)
}

// WatchEvent reports the outcome of one save triggered by the watcher.
type WatchEvent struct {
	Path   string
	Result *lh.SaveResult
	Err    error
}

// Watch saves every settled write below dirs until ctx is done. Settings
// files are followed so preference changes apply without a restart. Save
// errors are reported to onEvent and never stop the loop.
func (a *LHApp) Watch(ctx context.Context, dirs []string, onEvent func(WatchEvent)) error {
	root := a.cfg.History.Root
	skip := func(p string) bool {
		if rel, err := filepath.Rel(root, p); err == nil && rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			return true
		}
		return a.prefs.IsExcluded(p)
	}

	w, err := fs.NewWatcher(skip, a.logger)
	if err != nil {
		return a.fail(err)
	}
	defer w.Close()

	for _, d := range dirs {
		abs, err := fs.Resolve(d)
		if err != nil {
			return a.fail(fmt.Errorf("resolving %s: %w", d, err))
		}
		if err := w.Add(abs); err != nil {
			return a.fail(fmt.Errorf("watching %s: %w", abs, err))
		}
		a.logger.Info("watching", "dir", abs)
	}

	for _, s := range a.settings {
		if err := s.Watch(); err != nil {
			a.logger.Warn("settings changes will not be followed", "path", s.Path(), "error", err)
		}
	}

	return w.Run(ctx, func(p string) {
		res, err := a.service.SaveContext(ctx, p, lh.SaveOptions{})
		if err != nil {
			a.logger.Error("save failed", "path", p, "error", err)
		}
		if onEvent != nil {
			onEvent(WatchEvent{Path: p, Result: res, Err: err})
		}
	})
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && os.IsPathSeparator(rel[2])
}

// Close releases all resources.
func (a *LHApp) Close() error {
	var firstErr error

	if a.prefs != nil {
		a.prefs.Close()
	}
	for _, s := range a.settings {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing settings watcher: %w", err)
		}
	}
	if a.closeJournal != nil {
		if err := a.closeJournal(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
	}
	if a.logger != nil && a.op != nil {
		a.logger.Debug("operation finished", "status", a.op.Status, "events", a.op.Events())
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
