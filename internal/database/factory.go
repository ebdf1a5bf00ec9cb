package database

import (
	"fmt"
	"path/filepath"

	"lh-go/internal/config"
	"lh-go/internal/lh"
)

// JournalFileName is the journal database file inside data_dir.
const JournalFileName = "journal.db"

// NewJournalFromConfig creates a Journal implementation based on the journal config type.
// The returned close function releases the journal and is never nil.
func NewJournalFromConfig(cfg config.JournalConfig) (lh.Journal, func() error, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		j, err := NewSQLiteJournal(filepath.Join(cfg.DataDir, JournalFileName))
		if err != nil {
			return nil, nil, err
		}
		return j, j.Close, nil
	case "memory":
		j, err := NewSQLiteJournal(memoryPath)
		if err != nil {
			return nil, nil, err
		}
		return j, j.Close, nil
	case "none", "":
		return lh.NopJournal{}, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
