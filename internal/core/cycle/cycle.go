// Package cycle computes the calendar windows used to select notes for
// periodic digests.
package cycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/penwyp/go-pensieve/internal/core/failure"
)

// Kind is a named recurring period
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// Kinds lists the supported cycle kinds
var Kinds = []Kind{Daily, Weekly, Monthly}

// ParseKind validates a cycle name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Daily, Weekly, Monthly:
		return k, nil
	}
	return "", failure.Newf(failure.InvalidCycleKind, "parse cycle", "unknown cycle kind %q", s)
}

// Title returns the capitalized kind, e.g. "Weekly"
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Window is an inclusive time range
type Window struct {
	Kind  Kind
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, both ends included
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Next returns the window immediately following w
func (w Window) Next() Window {
	next, _ := WindowFor(w.Kind, w.End.Add(time.Millisecond))
	return next
}

const lastMillisecond = 999 * int(time.Millisecond)

// WindowFor returns the window of the given kind containing anchor, computed
// in anchor's location.
func WindowFor(kind Kind, anchor time.Time) (Window, error) {
	loc := anchor.Location()
	y, m, d := anchor.Date()

	var start, end time.Time
	switch kind {
	case Daily:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d, 23, 59, 59, lastMillisecond, loc)
	case Weekly:
		offset := int(anchor.Weekday())
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		end = time.Date(y, m, d-offset+6, 23, 59, 59, lastMillisecond, loc)
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		// day 0 of next month is the last day of this one
		end = time.Date(y, m+1, 0, 23, 59, 59, lastMillisecond, loc)
	default:
		return Window{}, failure.Newf(failure.InvalidCycleKind, "cycle window", "unknown cycle kind %q", kind)
	}
	return Window{Kind: kind, Start: start, End: end}, nil
}

// DigestName returns the deterministic document name (without extension) of
// the digest covering anchor. Re-running for the same window yields the same
// name.
func DigestName(kind Kind, anchor time.Time) (string, error) {
	switch kind {
	case Daily:
		return anchor.Format("2006-01-02") + "-daily-digest", nil
	case Weekly:
		w, err := WindowFor(Weekly, anchor)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d-W%02d-weekly-digest", w.Start.Year(), WeekNumber(w.Start)), nil
	case Monthly:
		return anchor.Format("2006-01") + "-monthly-digest", nil
	}
	return "", failure.Newf(failure.InvalidCycleKind, "digest name", "unknown cycle kind %q", kind)
}

// WeekNumber numbers Sunday-started weeks within the year of weekStart.
func WeekNumber(weekStart time.Time) int {
	return (weekStart.YearDay()-1)/7 + 1
}

// DigestSuffix is the name fragment shared by all digests of a kind
func DigestSuffix(kind Kind) string {
	return string(kind) + "-digest"
}
