// Package wellness defines the shared domain types for the SinagTala core:
// the closed mood vocabulary, recorded entries and chat messages, derived
// summaries, and the time windows used for trend aggregation.
//
// All timestamps carried by these types are UTC. Inputs without an explicit
// zone are interpreted as UTC, never local time.
package wellness

import (
	"errors"
	"fmt"
)

// Mood is one of the eleven emotional states a user can record.
//
// The vocabulary is closed: values are validated once at the boundary via
// [ParseMood] and treated as trusted everywhere below it.
type Mood string

const (
	MoodDespairing  Mood = "Despairing"
	MoodIrritated   Mood = "Irritated"
	MoodAnxious     Mood = "Anxious"
	MoodDrained     Mood = "Drained"
	MoodRestless    Mood = "Restless"
	MoodIndifferent Mood = "Indifferent"
	MoodCalm        Mood = "Calm"
	MoodHopeful     Mood = "Hopeful"
	MoodContent     Mood = "Content"
	MoodEnergized   Mood = "Energized"

	// MoodUncertain is a valid entry value but is excluded from every trend
	// aggregation and from the user-summary mood distribution. It still
	// appears in raw entry listings.
	MoodUncertain Mood = "Uncertain"
)

// allMoods lists the full vocabulary in its canonical display order.
var allMoods = []Mood{
	MoodDespairing, MoodIrritated, MoodAnxious, MoodDrained,
	MoodRestless, MoodIndifferent, MoodCalm, MoodHopeful,
	MoodContent, MoodEnergized, MoodUncertain,
}

// ErrInvalidMood is returned by [ParseMood] for values outside the vocabulary.
var ErrInvalidMood = errors.New("invalid mood value")

// Moods returns the full mood vocabulary in canonical order.
// The returned slice is a copy and may be modified by the caller.
func Moods() []Mood {
	out := make([]Mood, len(allMoods))
	copy(out, allMoods)
	return out
}

// ParseMood validates s against the closed vocabulary. Matching is exact,
// including case.
func ParseMood(s string) (Mood, error) {
	m := Mood(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMood, s)
	}
	return m, nil
}

// IsValid reports whether m is one of the eleven recognised moods.
func (m Mood) IsValid() bool {
	for _, v := range allMoods {
		if m == v {
			return true
		}
	}
	return false
}

// Excluded reports whether m is omitted from trend aggregation.
func (m Mood) Excluded() bool { return m == MoodUncertain }

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderTala Sender = "tala"
)

// IsValid reports whether s is a recognised sender role.
func (s Sender) IsValid() bool {
	return s == SenderUser || s == SenderTala
}

// TimePeriod buckets an hour of day into the four activity periods used by
// the user summary.
type TimePeriod string

const (
	PeriodMorning   TimePeriod = "morning"
	PeriodAfternoon TimePeriod = "afternoon"
	PeriodEvening   TimePeriod = "evening"
	PeriodNight     TimePeriod = "night"
)

// PeriodOf maps an hour of day (0–23) to its activity period:
// 5–11 morning, 12–17 afternoon, 18–21 evening, everything else night.
func PeriodOf(hour int) TimePeriod {
	switch {
	case hour >= 5 && hour <= 11:
		return PeriodMorning
	case hour >= 12 && hour <= 17:
		return PeriodAfternoon
	case hour >= 18 && hour <= 21:
		return PeriodEvening
	default:
		return PeriodNight
	}
}
