package wellness

import (
	"fmt"
	"time"
)

// DefaultLookback is the window length used when a caller supplies no range.
const DefaultLookback = 30 * 24 * time.Hour

// Clock supplies the current time. Components take a Clock instead of calling
// time.Now directly so tests can pin "today".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall-clock Clock used outside of tests.
var SystemClock Clock = ClockFunc(time.Now)

// Window is an inclusive UTC time range used for trend aggregation.
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the standard 30-day lookback window ending now.
func DefaultWindow(clock Clock) Window {
	end := clock.Now().UTC()
	return Window{Start: end.Add(-DefaultLookback), End: end}
}

// Contains reports whether t falls inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// timestampLayouts are accepted by ParseTimestamp, tried in order. The
// zone-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s into a UTC time. Inputs carrying a zone marker are
// converted to UTC; inputs without one are taken as already being UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("wellness: unrecognised timestamp %q", s)
}
