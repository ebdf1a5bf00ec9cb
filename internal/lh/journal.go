package lh

import (
	"context"
	"time"
)

// Action names the kind of change recorded in the journal.
type Action string

const (
	ActionCreated    Action = "created"
	ActionSuperseded Action = "superseded"
	ActionEvicted    Action = "evicted"
	ActionRemoved    Action = "removed"
	ActionCleared    Action = "cleared"
	ActionReverted   Action = "reverted"
	ActionPurged     Action = "purged"
	ActionArchived   Action = "archived"
	ActionRestored   Action = "restored"
)

// Event is one journal entry.
type Event struct {
	ID          int64
	OperationID string
	Action      Action
	TrackedPath string
	Revision    string
	At          time.Time
}

// Journal records revision store changes for later inspection.
// Journal failures never fail the operation that produced the event.
type Journal interface {
	Record(ctx context.Context, event Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// NopJournal discards all events.
type NopJournal struct{}

func (NopJournal) Record(context.Context, Event) error          { return nil }
func (NopJournal) Recent(context.Context, int) ([]Event, error) { return nil, nil }

var _ Journal = NopJournal{}
