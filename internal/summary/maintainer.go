// Package summary maintains the derived per-user summaries: the rolling
// mood-distribution snapshot, the once-per-day narrative, and the structured
// insight record.
//
// Writes are race-tolerant by construction. The rolling summary is replaced
// through a single atomic upsert (last writer wins, never a merge); the day
// narrative is created first-writer-wins, so the stored text for a (user,
// date) key never changes once written.
package summary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/pkg/provider/llm"
	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

// ErrNoData is returned by DayNarrative when the day has neither mood entries
// nor chat messages to summarise.
var ErrNoData = errors.New("summary: no data for day")

// Maintainer recomputes and persists derived summaries. Safe for concurrent
// use; concurrent refreshes for the same user converge on one complete
// snapshot.
type Maintainer struct {
	store    store.Store
	provider llm.Provider
	clock    wellness.Clock
	metrics  *observe.Metrics
}

// MaintainerOption customises a Maintainer.
type MaintainerOption func(*Maintainer)

// WithMetrics overrides the metrics instance (tests pass an isolated one).
func WithMetrics(m *observe.Metrics) MaintainerOption {
	return func(mt *Maintainer) { mt.metrics = m }
}

// NewMaintainer creates a Maintainer persisting to st and generating
// narratives through p.
func NewMaintainer(st store.Store, p llm.Provider, clock wellness.Clock, opts ...MaintainerOption) *Maintainer {
	m := &Maintainer{store: st, provider: p, clock: clock}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// RefreshUserSummary recomputes the user's rolling summary from their full
// entry history and replaces the stored row in a single atomic upsert. The
// computed snapshot is returned.
//
// The mood distribution omits the uncertain mood; percentages are shares of
// the counted entries. Time-period buckets count every entry, uncertain
// included.
func (m *Maintainer) RefreshUserSummary(ctx context.Context, userID string) (wellness.UserSummary, error) {
	entries, err := m.store.AllEntries(ctx, userID)
	if err != nil {
		m.recordRefresh(ctx, "read_error")
		return wellness.UserSummary{}, fmt.Errorf("summary: refresh read: %w", err)
	}

	snapshot := wellness.UserSummary{
		UserID:            userID,
		MoodDistribution:  computeDistribution(entries),
		ActiveTimePeriods: computePeriods(entries),
		LastUpdated:       m.clock.Now().UTC(),
	}

	if err := m.store.ReplaceUserSummary(ctx, snapshot); err != nil {
		m.recordRefresh(ctx, "write_error")
		m.metrics.RecordStoreError(ctx, "replace_user_summary")
		return wellness.UserSummary{}, fmt.Errorf("summary: refresh write: %w", err)
	}
	m.recordRefresh(ctx, "ok")
	return snapshot, nil
}

// DayNarrative returns the narrative summary for the user's calendar day,
// generating and storing it on first request.
//
// An existing row is returned unchanged without touching the generator; the
// generator runs at most once per (user, date) key under this method. When
// the day has neither entries nor messages, ErrNoData is returned. Under
// concurrent first requests the first stored row wins and all callers receive
// that row's text.
func (m *Maintainer) DayNarrative(ctx context.Context, userID string, date time.Time) (wellness.DaySummary, error) {
	existing, err := m.store.GetDaySummary(ctx, userID, date)
	if err != nil {
		return wellness.DaySummary{}, fmt.Errorf("summary: day lookup: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	entries, err := m.store.EntriesOn(ctx, userID, date)
	if err != nil {
		return wellness.DaySummary{}, fmt.Errorf("summary: day entries: %w", err)
	}
	messages, err := m.store.MessagesOn(ctx, userID, date)
	if err != nil {
		return wellness.DaySummary{}, fmt.Errorf("summary: day messages: %w", err)
	}
	if len(entries) == 0 && len(messages) == 0 {
		return wellness.DaySummary{}, ErrNoData
	}

	text, err := m.generateNarrative(ctx, entries, messages)
	if err != nil {
		return wellness.DaySummary{}, fmt.Errorf("summary: day narrative: %w", err)
	}

	stored, err := m.store.CreateDaySummary(ctx, wellness.DaySummary{
		UserID:  userID,
		Date:    wellness.DateOf(date),
		Summary: text,
	})
	if err != nil {
		m.metrics.RecordStoreError(ctx, "create_day_summary")
		return wellness.DaySummary{}, fmt.Errorf("summary: day store: %w", err)
	}
	return stored, nil
}

// narrativePrompt frames the day's raw material for the generator.
const narrativePrompt = `Write a short, warm third-person summary (2-4 sentences) of this person's
day based on their mood check-ins and conversation below. Mention the overall
emotional arc. Do not give advice. Respond with the summary text only.`

// generateNarrative asks the backend for the day's narrative text.
func (m *Maintainer) generateNarrative(ctx context.Context, entries []wellness.MoodEntry, messages []wellness.ChatMessage) (string, error) {
	var sb strings.Builder
	sb.WriteString("Mood check-ins:\n")
	if len(entries) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s at %s", e.Mood, e.Timestamp.Format("15:04"))
		if e.Note != "" {
			fmt.Fprintf(&sb, " (%q)", e.Note)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nConversation:\n")
	if len(messages) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, msg := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Sender, msg.Content)
	}

	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: narrativePrompt,
		Messages:     []llm.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// computeDistribution counts non-uncertain moods over the full history and
// attaches each mood's percentage of the counted total. Ordered by count
// descending, ties by mood name ascending.
func computeDistribution(entries []wellness.MoodEntry) []wellness.MoodShare {
	counts := map[wellness.Mood]int{}
	total := 0
	for _, e := range entries {
		if e.Mood.Excluded() {
			continue
		}
		counts[e.Mood]++
		total++
	}

	out := make([]wellness.MoodShare, 0, len(counts))
	for mood, count := range counts {
		out = append(out, wellness.MoodShare{
			Mood:       mood,
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mood < out[j].Mood
	})
	return out
}

// periodOrder is the canonical tie-break order for period buckets.
var periodOrder = map[wellness.TimePeriod]int{
	wellness.PeriodMorning:   0,
	wellness.PeriodAfternoon: 1,
	wellness.PeriodEvening:   2,
	wellness.PeriodNight:     3,
}

// computePeriods buckets every entry (uncertain included) into the four
// activity periods by the UTC hour of its timestamp, ordered by count
// descending, ties in canonical period order.
func computePeriods(entries []wellness.MoodEntry) []wellness.PeriodCount {
	counts := map[wellness.TimePeriod]int{}
	for _, e := range entries {
		counts[wellness.PeriodOf(e.Timestamp.UTC().Hour())]++
	}

	out := make([]wellness.PeriodCount, 0, len(counts))
	for period, count := range counts {
		out = append(out, wellness.PeriodCount{Period: period, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return periodOrder[out[i].Period] < periodOrder[out[j].Period]
	})
	return out
}

// recordRefresh records one summary recomputation with its status.
func (m *Maintainer) recordRefresh(ctx context.Context, status string) {
	m.metrics.SummaryRefreshes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
