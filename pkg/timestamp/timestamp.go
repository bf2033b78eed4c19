// Package timestamp produces and compares the ISO-8601 timestamps carried by
// local ops.
//
// Timestamps are UTC RFC 3339 strings with millisecond precision, so two
// stamps from the same clock compare correctly as plain strings. Parse
// accepts any RFC 3339 variant for records written elsewhere.
package timestamp

import (
	"time"
)

// Layout is the canonical op timestamp layout.
const Layout = "2006-01-02T15:04:05.000Z07:00"

// Clock returns the current time. Tests replace it through WithClock.
type Clock func() time.Time

var now Clock = time.Now

// Now returns the current time as an op timestamp.
func Now() string {
	return Format(now())
}

// Format renders t as an op timestamp. The zero time renders as "".
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Parse reads an RFC 3339 timestamp. An empty string yields the zero time.
func Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Compare orders two op timestamps chronologically. Unparsable values sort
// before valid ones.
func Compare(a, b string) int {
	ta, errA := Parse(a)
	tb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return ta.Compare(tb)
}

// WithClock swaps the clock and returns a function restoring the previous one.
func WithClock(c Clock) (restore func()) {
	prev := now
	now = c
	return func() { now = prev }
}
