package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"lh-go/internal/lh"
)

// StubPolicy is a fixed lh.Policy. Excluded paths match by exact path or by
// any path segment equal to an entry of ExcludedNames.
type StubPolicy struct {
	MaxEntries    int
	Limit         int
	SizeLimitMB   float64
	Delay         time.Duration
	SkipEmpty     bool
	ExcludedNames []string
}

// DefaultPolicy mirrors the preference defaults.
func DefaultPolicy() *StubPolicy {
	return &StubPolicy{
		MaxEntries:    10,
		Limit:         30,
		SizeLimitMB:   5,
		Delay:         300 * time.Second,
		SkipEmpty:     true,
		ExcludedNames: []string{".git"},
	}
}

func (p *StubPolicy) MaxEntriesPerFile() int   { return p.MaxEntries }
func (p *StubPolicy) FileLimit() int           { return p.Limit }
func (p *StubPolicy) FileSizeLimit() float64   { return p.SizeLimitMB }
func (p *StubPolicy) SaveDelay() time.Duration { return p.Delay }
func (p *StubPolicy) SkipEmptyFiles() bool     { return p.SkipEmpty }

func (p *StubPolicy) IsExcluded(path string) bool {
	for _, name := range p.ExcludedNames {
		for d := filepath.Clean(path); ; d = filepath.Dir(d) {
			if filepath.Base(d) == name || d == name {
				return true
			}
			if filepath.Dir(d) == d {
				break
			}
		}
	}
	return false
}

// StubConfirmer answers every prompt with Answer and remembers the prompts.
type StubConfirmer struct {
	mu      sync.Mutex
	Answer  bool
	Err     error
	Prompts []string
}

func (c *StubConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prompts = append(c.Prompts, prompt)
	return c.Answer, c.Err
}

// RecordingPresenter remembers the diff requests it receives.
type RecordingPresenter struct {
	Requests []lh.DiffRequest
}

func (p *RecordingPresenter) Present(_ context.Context, req lh.DiffRequest) error {
	p.Requests = append(p.Requests, req)
	return nil
}

// MemoryJournal keeps events in memory.
type MemoryJournal struct {
	mu     sync.Mutex
	Events []lh.Event
}

func (j *MemoryJournal) Record(_ context.Context, event lh.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	event.ID = int64(len(j.Events) + 1)
	j.Events = append(j.Events, event)
	return nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]lh.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []lh.Event
	for i := len(j.Events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.Events[i])
	}
	return out, nil
}

// Actions returns the recorded actions in order.
func (j *MemoryJournal) Actions() []lh.Action {
	j.mu.Lock()
	defer j.mu.Unlock()
	actions := make([]lh.Action, len(j.Events))
	for i, e := range j.Events {
		actions[i] = e.Action
	}
	return actions
}

// RecordingLogger captures log lines as "LEVEL msg".
type RecordingLogger struct {
	mu    sync.Mutex
	Lines []string
}

func (l *RecordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, fmt.Sprintf("%s %s", level, msg))
}

func (l *RecordingLogger) Debug(msg string, _ ...any) { l.log("DEBUG", msg) }
func (l *RecordingLogger) Info(msg string, _ ...any)  { l.log("INFO", msg) }
func (l *RecordingLogger) Warn(msg string, _ ...any)  { l.log("WARN", msg) }
func (l *RecordingLogger) Error(msg string, _ ...any) { l.log("ERROR", msg) }

var (
	_ lh.Policy        = (*StubPolicy)(nil)
	_ lh.Confirmer     = (*StubConfirmer)(nil)
	_ lh.DiffPresenter = (*RecordingPresenter)(nil)
	_ lh.Journal       = (*MemoryJournal)(nil)
	_ lh.Logger        = (*RecordingLogger)(nil)
)
