package wellness

import (
	"testing"
	"time"
)

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	w := DefaultWindow(ClockFunc(func() time.Time { return now }))

	if !w.End.Equal(now) {
		t.Errorf("End = %v, want %v", w.End, now)
	}
	if !w.Start.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Errorf("Start = %v, want 30 days before End", w.Start)
	}
}

func TestWindowContainsInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: end}

	tests := []struct {
		t    time.Time
		want bool
	}{
		{start, true},
		{end, true},
		{start.Add(time.Hour), true},
		{start.Add(-time.Nanosecond), false},
		{end.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestDateOf(t *testing.T) {
	// An early morning in Manila is still the previous calendar day in UTC.
	manila := time.FixedZone("PST", 8*60*60)
	in := time.Date(2026, 3, 14, 6, 30, 0, 0, manila) // 2026-03-13 22:30 UTC
	got := DateOf(in)
	want := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		// Zone markers are honoured and normalised to UTC.
		{"2026-03-14T10:00:00+08:00", time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)},
		{"2026-03-14T10:00:00Z", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)},
		// Zone-less inputs are taken as UTC, never local time.
		{"2026-03-14T10:00:00", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)},
		{"2026-03-14 10:00:00", time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)},
		{"2026-03-14", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.in, got.Location())
		}
	}

	if _, err := ParseTimestamp("three days ago"); err == nil {
		t.Error("ParseTimestamp should reject unrecognised formats")
	}
}
