package app

import (
	"context"
	"sync/atomic"

	"lh-go/internal/lh"
)

// Operation tracks one CLI invocation. Its ID tags every log line and every
// journal event the invocation produces.
type Operation struct {
	ID         string
	Command    string
	Parameters string
	Status     string // "success" or "error"

	events atomic.Int64
}

// NewOperation creates an operation with a fresh ID from gen.
func NewOperation(gen lh.IDGenerator, command, parameters string) *Operation {
	return &Operation{
		ID:         gen.New(),
		Command:    command,
		Parameters: parameters,
		Status:     "success",
	}
}

// Mutated returns true if the operation recorded at least one journal event.
func (op *Operation) Mutated() bool {
	return op.events.Load() > 0
}

// Events returns how many journal events the operation recorded.
func (op *Operation) Events() int64 {
	return op.events.Load()
}

// operationJournal stamps events with the operation ID before passing them on.
type operationJournal struct {
	inner lh.Journal
	op    *Operation
}

func (j *operationJournal) Record(ctx context.Context, event lh.Event) error {
	event.OperationID = j.op.ID
	j.op.events.Add(1)
	return j.inner.Record(ctx, event)
}

func (j *operationJournal) Recent(ctx context.Context, limit int) ([]lh.Event, error) {
	return j.inner.Recent(ctx, limit)
}

var _ lh.Journal = (*operationJournal)(nil)
