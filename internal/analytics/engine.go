// Package analytics computes trend aggregations over a user's mood history:
// windowed frequency distributions, mood-transition counts, a volatility
// index, and per-day mood summaries.
//
// All computation is read-side and lock-free. Reads may observe data that
// changes mid-computation; staleness is acceptable.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

// maxTransitions caps the transition list at the ten most frequent pairs.
const maxTransitions = 10

// Engine derives trend statistics from stored mood entries. Safe for
// concurrent use.
type Engine struct {
	entries store.EntryStore
}

// NewEngine creates an Engine reading from entries.
func NewEngine(entries store.EntryStore) *Engine {
	return &Engine{entries: entries}
}

// Trends returns the full trend bundle for the window: frequencies,
// transitions, and volatility, computed from a single read.
func (e *Engine) Trends(ctx context.Context, userID string, w wellness.Window) (wellness.TrendResult, error) {
	entries, err := e.entries.EntriesBetween(ctx, userID, w)
	if err != nil {
		return wellness.TrendResult{}, fmt.Errorf("analytics: trends: %w", err)
	}
	return wellness.TrendResult{
		Frequencies: computeFrequencies(entries),
		Transitions: computeTransitions(entries),
		Volatility:  computeVolatility(entries),
	}, nil
}

// Frequencies returns the per-mood entry counts inside the window, excluding
// the excluded mood, ordered by count descending with ties broken by mood
// name ascending. An empty window yields an empty list.
func (e *Engine) Frequencies(ctx context.Context, userID string, w wellness.Window) ([]wellness.MoodCount, error) {
	entries, err := e.entries.EntriesBetween(ctx, userID, w)
	if err != nil {
		return nil, fmt.Errorf("analytics: frequencies: %w", err)
	}
	return computeFrequencies(entries), nil
}

// Transitions returns the counts of chronologically adjacent mood pairs
// inside the window, truncated to the ten most frequent. Excluded-mood
// entries are removed before pairing, so a removed entry never creates a
// phantom transition across the gap it leaves.
func (e *Engine) Transitions(ctx context.Context, userID string, w wellness.Window) ([]wellness.Transition, error) {
	entries, err := e.entries.EntriesBetween(ctx, userID, w)
	if err != nil {
		return nil, fmt.Errorf("analytics: transitions: %w", err)
	}
	return computeTransitions(entries), nil
}

// Volatility returns the window's volatility record. With no counted entries
// it returns the zero sentinel rather than failing or dividing by zero.
func (e *Engine) Volatility(ctx context.Context, userID string, w wellness.Window) (wellness.Volatility, error) {
	entries, err := e.entries.EntriesBetween(ctx, userID, w)
	if err != nil {
		return wellness.Volatility{}, fmt.Errorf("analytics: volatility: %w", err)
	}
	return computeVolatility(entries), nil
}

// DailySummaries returns one row per day with at least one entry in the
// window: the day's first and last recorded moods and its total entry count.
// All moods count here, including the excluded one: this is a raw listing,
// not a trend aggregation. Rows are ordered newest date first.
func (e *Engine) DailySummaries(ctx context.Context, userID string, w wellness.Window) ([]wellness.DailyMood, error) {
	entries, err := e.entries.EntriesBetween(ctx, userID, w)
	if err != nil {
		return nil, fmt.Errorf("analytics: daily summaries: %w", err)
	}

	byDay := map[time.Time][]wellness.MoodEntry{}
	for _, entry := range entries {
		day := wellness.DateOf(entry.Timestamp)
		byDay[day] = append(byDay[day], entry)
	}

	out := make([]wellness.DailyMood, 0, len(byDay))
	for day, dayEntries := range byDay {
		sortAscending(dayEntries)
		out = append(out, wellness.DailyMood{
			Date:         day,
			InitialMood:  dayEntries[0].Mood,
			FinalMood:    dayEntries[len(dayEntries)-1].Mood,
			TotalEntries: len(dayEntries),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// computeFrequencies counts non-excluded moods, ordered by count descending,
// ties by mood name ascending.
func computeFrequencies(entries []wellness.MoodEntry) []wellness.MoodCount {
	counts := map[wellness.Mood]int{}
	for _, e := range entries {
		if e.Mood.Excluded() {
			continue
		}
		counts[e.Mood]++
	}

	out := make([]wellness.MoodCount, 0, len(counts))
	for mood, count := range counts {
		out = append(out, wellness.MoodCount{Mood: mood, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mood < out[j].Mood
	})
	return out
}

// computeTransitions pairs chronologically adjacent moods after removing
// excluded entries. Adjacency is evaluated post-filter. Results are ordered
// by count descending; ties keep the order in which each pair first appeared.
func computeTransitions(entries []wellness.MoodEntry) []wellness.Transition {
	kept := make([]wellness.MoodEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Mood.Excluded() {
			kept = append(kept, e)
		}
	}
	sortAscending(kept)

	type pair struct{ from, to wellness.Mood }
	counts := map[pair]int{}
	order := []pair{}
	for i := 1; i < len(kept); i++ {
		p := pair{from: kept[i-1].Mood, to: kept[i].Mood}
		if _, seen := counts[p]; !seen {
			order = append(order, p)
		}
		counts[p]++
	}

	out := make([]wellness.Transition, 0, len(order))
	for _, p := range order {
		out = append(out, wellness.Transition{From: p.from, To: p.to, Count: counts[p]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > maxTransitions {
		out = out[:maxTransitions]
	}
	return out
}

// computeVolatility averages per-day (distinct moods, total entries) across
// days with at least one non-excluded entry. Returns the zero sentinel when
// there are no such days, never NaN.
func computeVolatility(entries []wellness.MoodEntry) wellness.Volatility {
	type dayStats struct {
		distinct map[wellness.Mood]struct{}
		total    int
	}
	days := map[time.Time]*dayStats{}
	for _, e := range entries {
		if e.Mood.Excluded() {
			continue
		}
		day := wellness.DateOf(e.Timestamp)
		st, ok := days[day]
		if !ok {
			st = &dayStats{distinct: map[wellness.Mood]struct{}{}}
			days[day] = st
		}
		st.distinct[e.Mood] = struct{}{}
		st.total++
	}
	if len(days) == 0 {
		return wellness.Volatility{}
	}

	var sumDistinct, sumTotal float64
	for _, st := range days {
		sumDistinct += float64(len(st.distinct))
		sumTotal += float64(st.total)
	}
	n := float64(len(days))
	v := wellness.Volatility{
		AvgDailyMoodVariety: sumDistinct / n,
		AvgDailyEntries:     sumTotal / n,
	}
	if v.AvgDailyEntries > 0 {
		v.VolatilityIndex = v.AvgDailyMoodVariety / v.AvgDailyEntries
	}
	return v
}

// sortAscending orders entries by timestamp ascending, stable so
// same-timestamp entries keep their stored order.
func sortAscending(entries []wellness.MoodEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
