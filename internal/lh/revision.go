package lh

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reason records why a revision was captured.
type Reason string

const (
	// ReasonManual marks a revision captured on a regular save.
	ReasonManual Reason = "m"
	// ReasonRevert marks the safety revision captured right before a revert.
	ReasonRevert Reason = "r"
	// ReasonUnknown marks revisions whose name carries no reason suffix.
	ReasonUnknown Reason = ""
)

// stampLayout is the fixed 14 digit capture time embedded in revision names.
const stampLayout = "20060102150405"

// displayLayout is the human readable form of the capture time.
const displayLayout = "2006-01-02 15:04:05"

// Revision is one immutable snapshot of a tracked file.
type Revision struct {
	// FileName is the base name of the snapshot file.
	FileName string
	// Timestamp is the capture time as "YYYY-MM-DD HH:MM:SS".
	Timestamp string
	// Path is the absolute path of the snapshot file.
	Path string
	// Reason is the capture reason parsed from the name.
	Reason Reason
	// CapturedAt is the capture time with millisecond precision, from the name.
	CapturedAt time.Time
	// ModTime is the snapshot file's modification time.
	ModTime time.Time
	// Size is the snapshot size in bytes.
	Size int64
}

// RevisionName builds the snapshot file name for trackedPath captured at t:
// <name>_<YYYYMMDDHHMMSS>_<mmm>_<reason><ext>.
func RevisionName(trackedPath string, t time.Time, reason Reason) string {
	name, ext := splitName(filepath.Base(trackedPath))
	suffix := ""
	if reason != ReasonUnknown {
		suffix = "_" + string(reason)
	}
	ms := t.Nanosecond() / int(time.Millisecond)
	return fmt.Sprintf("%s_%s_%03d%s%s", name, t.Format(stampLayout), ms, suffix, ext)
}

// splitName splits a base name into stem and extension. Dotfiles without a
// further dot have no extension.
func splitName(base string) (string, string) {
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		return base, ""
	}
	return name, ext
}

var stampPattern = regexp.MustCompile(`_(\d{14})(?:_(\d{3}))?(?:_([mr]))?(?:\.|$)`)

type parsedName struct {
	timestamp  string
	capturedAt time.Time
	reason     Reason
}

func parseRevisionName(fileName string) (*parsedName, error) {
	matches := stampPattern.FindAllStringSubmatch(fileName, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRevisionName, fileName)
	}
	m := matches[len(matches)-1]

	at, err := time.ParseInLocation(stampLayout, m[1], time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRevisionName, fileName, err)
	}
	if m[2] != "" {
		ms, _ := strconv.Atoi(m[2])
		at = at.Add(time.Duration(ms) * time.Millisecond)
	}

	return &parsedName{
		timestamp:  at.Format(displayLayout),
		capturedAt: at,
		reason:     Reason(m[3]),
	}, nil
}

// ParseTimestamp extracts the capture time of a revision file name in
// "YYYY-MM-DD HH:MM:SS" form. The last 14 digit token in the name wins.
func ParseTimestamp(fileName string) (string, error) {
	p, err := parseRevisionName(fileName)
	if err != nil {
		return "", err
	}
	return p.timestamp, nil
}
