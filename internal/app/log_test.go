package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLhHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "revision created",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\trevision created\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "checking history",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tchecking history\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "saved",
			attrs:   []slog.Attr{slog.String("path", "/docs/file.txt"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tsaved\tpath=/docs/file.txt\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &lhHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestLhHandler_Echo(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var file, echo bytes.Buffer
	h := &lhHandler{w: &file, echo: &echo, echoLevel: slog.LevelWarn, opID: "op"}

	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn} {
		if err := h.Handle(context.Background(), slog.NewRecord(ts, level, "m", 0)); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Errorf("file lines = %d, want 2", got)
	}
	if got := echo.String(); got != "2024-01-01T00:00:00Z\tWARN\top\tm\n" {
		t.Errorf("echo = %q, want only the warning", got)
	}
}

func TestLhHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &lhHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "watch")}).(*lhHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "save", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=watch") {
		t.Errorf("expected pre-set attr component=watch, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestLhHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &lhHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*lhHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-op", &stderr, true)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")
	logger.Debug("quiet")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello\tk=v") || !strings.Contains(string(data), "quiet") {
		t.Errorf("log file missing records: %q", data)
	}
	if !strings.Contains(stderr.String(), "hello") {
		t.Errorf("verbose stderr missing info record: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "quiet") {
		t.Errorf("debug record echoed to stderr: %q", stderr.String())
	}
}
