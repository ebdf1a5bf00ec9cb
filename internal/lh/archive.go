package lh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// encryptedSuffix marks vault keys holding age ciphertext.
const encryptedSuffix = ".age"

// Archiver copies revision histories to a vault and back, so history can
// outlive the local root or move between machines.
// Vault keys are "<PathKey(tracked)>/<revision file name>".
type Archiver struct {
	svc       *Service
	vault     Vault
	encryptor Encryptor
}

// NewArchiver creates an Archiver. A nil encryptor stores plaintext.
func NewArchiver(svc *Service, vault Vault, encryptor Encryptor) *Archiver {
	return &Archiver{svc: svc, vault: vault, encryptor: encryptor}
}

// Archive uploads the revisions of trackedPath that the vault does not hold yet.
// Returns the number of revisions uploaded.
func (a *Archiver) Archive(ctx context.Context, trackedPath string) (int, error) {
	trackedPath = filepath.Clean(trackedPath)
	revisions, err := a.svc.LoadHistory(ctx, a.svc.layout.Dir(trackedPath))
	if err != nil {
		return 0, err
	}
	if len(revisions) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoHistory, trackedPath)
	}

	prefix := PathKey(trackedPath) + "/"
	stored, err := a.storedNames(ctx, prefix)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, rev := range revisions {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		if stored[rev.FileName] {
			continue
		}
		if err := a.put(ctx, prefix, rev); err != nil {
			return uploaded, err
		}
		uploaded++
		a.svc.record(ctx, ActionArchived, trackedPath, rev.FileName)
	}

	a.svc.logger.Info("history archived", "path", trackedPath, "uploaded", uploaded, "total", len(revisions))
	return uploaded, nil
}

func (a *Archiver) put(ctx context.Context, prefix string, rev *Revision) error {
	content, err := a.svc.fsmgr.ReadFile(rev.Path)
	if err != nil {
		return fmt.Errorf("reading revision: %w", err)
	}

	key := prefix + rev.FileName
	if a.encryptor != nil {
		var buf bytes.Buffer
		if err := a.encryptor.Encrypt(bytes.NewReader(content), &buf); err != nil {
			return fmt.Errorf("encrypting revision: %w", err)
		}
		content = buf.Bytes()
		key += encryptedSuffix
	}

	if err := a.vault.PutContent(ctx, key, bytes.NewReader(content), int64(len(content))); err != nil {
		a.svc.logger.Warn("archiving revision failed", "key", key, "error", err)
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Restore downloads archived revisions of trackedPath that are missing
// locally, then evicts the oldest revisions down to FileLimit. dc may be nil
// when the archive holds no encrypted content. Returns the number of
// revisions restored.
func (a *Archiver) Restore(ctx context.Context, trackedPath string, dc DecryptionContext) (int, error) {
	trackedPath = filepath.Clean(trackedPath)
	prefix := PathKey(trackedPath) + "/"
	keys, err := a.vault.ListContent(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("listing archive: %w", err)
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoHistory, trackedPath)
	}

	dir := a.svc.layout.Dir(trackedPath)
	if err := a.svc.fsmgr.MkdirAll(dir); err != nil {
		return 0, fmt.Errorf("creating revision directory: %w", err)
	}

	restored := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		encrypted := strings.HasSuffix(key, encryptedSuffix)
		name := strings.TrimSuffix(path.Base(key), encryptedSuffix)
		parsed, err := parseRevisionName(name)
		if err != nil {
			a.svc.logger.Warn("skipping archived object without revision timestamp", "key", key)
			continue
		}

		target := filepath.Join(dir, name)
		if _, err := a.svc.fsmgr.Stat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return restored, fmt.Errorf("stat %s: %w", target, err)
		}

		content, err := a.get(ctx, key, encrypted, dc)
		if err != nil {
			return restored, err
		}
		if _, err := a.svc.writeRevision(target, content, parsed.capturedAt); err != nil {
			return restored, err
		}
		restored++
		a.svc.record(ctx, ActionRestored, trackedPath, name)
	}

	if restored > 0 {
		revisions, err := a.svc.listRevisions(dir)
		if err != nil {
			return restored, err
		}
		if _, err := a.svc.evictTo(ctx, trackedPath, revisions, a.svc.fileLimit()); err != nil {
			return restored, err
		}
	}

	a.svc.logger.Info("history restored", "path", trackedPath, "restored", restored)
	return restored, nil
}

func (a *Archiver) get(ctx context.Context, key string, encrypted bool, dc DecryptionContext) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.vault.GetContent(ctx, key, &buf); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	if !encrypted {
		return buf.Bytes(), nil
	}
	if dc == nil {
		return nil, ErrLocked
	}
	var plain bytes.Buffer
	if err := dc.Decrypt(&buf, &plain); err != nil {
		return nil, fmt.Errorf("decrypting %s: %w", key, err)
	}
	return plain.Bytes(), nil
}

// storedNames returns the revision names already present under prefix.
func (a *Archiver) storedNames(ctx context.Context, prefix string) (map[string]bool, error) {
	keys, err := a.vault.ListContent(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	names := make(map[string]bool, len(keys))
	for _, key := range keys {
		names[strings.TrimSuffix(path.Base(key), encryptedSuffix)] = true
	}
	return names, nil
}
