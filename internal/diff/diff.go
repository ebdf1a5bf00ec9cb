// Package diff renders a revision comparison as line-oriented text.
package diff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"lh-go/internal/lh"
)

// contextLines is the number of unchanged lines kept around each change.
// Longer unchanged runs are collapsed to "...".
const contextLines = 3

var (
	titleColor  = color.New(color.Bold)
	removeColor = color.New(color.FgRed)
	addColor    = color.New(color.FgGreen)
	dimColor    = color.New(color.FgHiBlack)
)

// Stats counts changed lines.
type Stats struct {
	Added   int
	Removed int
}

// Result is a computed line diff.
type Result struct {
	Old   string
	New   string
	Lines []Line
	Stats Stats
}

// Op is the kind of a diff line.
type Op int

const (
	OpEqual Op = iota
	OpDelete
	OpInsert
	OpSkip
)

// Line is one rendered line of a diff.
type Line struct {
	Op   Op
	Text string
}

// Compute diffs oldContent against newContent line by line.
func Compute(oldContent, newContent, oldLabel, newLabel string) Result {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	r := Result{Old: oldLabel, New: newLabel}
	for i, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if d.Text == "" {
			continue
		}
		split := strings.Split(text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			r.Stats.Removed += len(split)
			r.Lines = appendLines(r.Lines, OpDelete, split)
		case diffmatchpatch.DiffInsert:
			r.Stats.Added += len(split)
			r.Lines = appendLines(r.Lines, OpInsert, split)
		case diffmatchpatch.DiffEqual:
			r.Lines = appendEqual(r.Lines, split, i == 0, i == len(diffs)-1)
		}
	}
	return r
}

func appendLines(out []Line, op Op, lines []string) []Line {
	for _, l := range lines {
		out = append(out, Line{Op: op, Text: l})
	}
	return out
}

// appendEqual keeps contextLines on each side that borders a change.
func appendEqual(out []Line, lines []string, first, last bool) []Line {
	head, tail := contextLines, contextLines
	if first {
		head = 0
	}
	if last {
		tail = 0
	}
	if len(lines) <= head+tail || (first && last) {
		if first && last {
			return out
		}
		return appendLines(out, OpEqual, lines)
	}
	out = appendLines(out, OpEqual, lines[:head])
	out = append(out, Line{Op: OpSkip, Text: "..."})
	return appendLines(out, OpEqual, lines[len(lines)-tail:])
}

// Identical reports whether the result has no changes.
func (r Result) Identical() bool {
	return r.Stats.Added == 0 && r.Stats.Removed == 0
}

// Write renders the result to w. Colours follow fatih/color's terminal
// detection unless colour is false.
func (r Result) Write(w io.Writer, colour bool) error {
	paint := func(c *color.Color, s string) string {
		if !colour {
			return s
		}
		return c.Sprint(s)
	}

	var b strings.Builder
	b.WriteString(paint(titleColor, "--- "+r.Old) + "\n")
	b.WriteString(paint(titleColor, "+++ "+r.New) + "\n")
	if r.Identical() {
		b.WriteString(paint(dimColor, "(no differences)") + "\n")
	}
	for _, l := range r.Lines {
		switch l.Op {
		case OpDelete:
			b.WriteString(paint(removeColor, "- "+l.Text) + "\n")
		case OpInsert:
			b.WriteString(paint(addColor, "+ "+l.Text) + "\n")
		case OpSkip:
			b.WriteString(paint(dimColor, "  "+l.Text) + "\n")
		default:
			b.WriteString("  " + l.Text + "\n")
		}
	}
	if !r.Identical() {
		b.WriteString(paint(dimColor, fmt.Sprintf("%d insertion(s), %d deletion(s)", r.Stats.Added, r.Stats.Removed)) + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Presenter renders DiffRequests to a writer.
type Presenter struct {
	w      io.Writer
	colour bool
}

// NewPresenter writes diffs to w, coloured when colour is true.
func NewPresenter(w io.Writer, colour bool) *Presenter {
	return &Presenter{w: w, colour: colour}
}

func (p *Presenter) Present(ctx context.Context, req lh.DiffRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if isBinary(req.Previous) || isBinary(req.Current) {
		_, err := fmt.Fprintf(p.w, "%s\nbinary files differ\n", req.Title)
		return err
	}
	if p.colour {
		titleColor.Fprintln(p.w, req.Title)
	} else {
		fmt.Fprintln(p.w, req.Title)
	}
	r := Compute(string(req.Previous), string(req.Current), req.PreviousPath, req.CurrentPath)
	return r.Write(p.w, p.colour)
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

var _ lh.DiffPresenter = (*Presenter)(nil)
