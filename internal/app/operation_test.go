package app

import (
	"context"
	"testing"

	"lh-go/internal/lh"
	"lh-go/internal/testutil"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		parameters string
	}{
		{name: "with parameters", command: "save", parameters: "/home/user/docs/a.txt"},
		{name: "empty parameters", command: "journal", parameters: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(testutil.NewStubIDGenerator(), tt.command, tt.parameters)

			if op.ID != "id-1" {
				t.Errorf("ID = %q, want %q", op.ID, "id-1")
			}
			if op.Command != tt.command {
				t.Errorf("Command = %q, want %q", op.Command, tt.command)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if op.Mutated() {
				t.Error("new operation should not be mutated")
			}
		})
	}
}

func TestOperationJournal_StampsOperationID(t *testing.T) {
	inner := testutil.NewTestJournal(t)
	op := NewOperation(testutil.NewStubIDGenerator(), "save", "")
	j := &operationJournal{inner: inner, op: op}

	if err := j.Record(context.Background(), lh.Event{Action: lh.ActionCreated, TrackedPath: "/a"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].OperationID != "id-1" {
		t.Errorf("OperationID = %q, want %q", events[0].OperationID, "id-1")
	}
	if !op.Mutated() || op.Events() != 1 {
		t.Errorf("operation events = %d, want 1", op.Events())
	}
}
