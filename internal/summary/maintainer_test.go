package summary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/pkg/provider/llm"
	llmmock "github.com/sinagtala/tala/pkg/provider/llm/mock"
	storemock "github.com/sinagtala/tala/pkg/store/mock"
	"github.com/sinagtala/tala/pkg/wellness"
)

var testTime = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func testClock() wellness.Clock {
	return wellness.ClockFunc(func() time.Time { return testTime })
}

func newTestMaintainer(t *testing.T, st *storemock.Store, p llm.Provider) *Maintainer {
	t.Helper()
	st.Now = func() time.Time { return testTime }
	m, err := observe.NewMetrics(metricnoop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewMaintainer(st, p, testClock(), WithMetrics(m))
}

func seedEntry(t *testing.T, st *storemock.Store, mood wellness.Mood, ts time.Time) {
	t.Helper()
	if _, err := st.SaveEntry(context.Background(), wellness.MoodEntry{
		UserID:    "user-1",
		Mood:      mood,
		Timestamp: ts,
	}); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestRefreshUserSummaryDistribution(t *testing.T) {
	st := &storemock.Store{}
	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	seedEntry(t, st, wellness.MoodCalm, morning)
	seedEntry(t, st, wellness.MoodCalm, morning.Add(time.Hour))
	seedEntry(t, st, wellness.MoodAnxious, morning.Add(2*time.Hour))
	seedEntry(t, st, wellness.MoodUncertain, morning.Add(3*time.Hour))

	m := newTestMaintainer(t, st, &llmmock.Provider{})
	got, err := m.RefreshUserSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RefreshUserSummary: %v", err)
	}

	// Uncertain is dropped from the distribution; percentages are shares of
	// the three counted entries.
	if len(got.MoodDistribution) != 2 {
		t.Fatalf("distribution has %d moods, want 2: %+v", len(got.MoodDistribution), got.MoodDistribution)
	}
	calm := got.MoodDistribution[0]
	if calm.Mood != wellness.MoodCalm || calm.Count != 2 {
		t.Errorf("top share = %+v, want Calm x2", calm)
	}
	if calm.Percentage < 66.6 || calm.Percentage > 66.7 {
		t.Errorf("Calm percentage = %v, want ~66.67", calm.Percentage)
	}

	// Period buckets count every entry, Uncertain included: all four fall in
	// the 5-11 morning band.
	if len(got.ActiveTimePeriods) != 1 {
		t.Fatalf("periods = %+v, want single morning bucket", got.ActiveTimePeriods)
	}
	if p := got.ActiveTimePeriods[0]; p.Period != wellness.PeriodMorning || p.Count != 4 {
		t.Errorf("period bucket = %+v, want morning x4", p)
	}

	if !got.LastUpdated.Equal(testTime) {
		t.Errorf("LastUpdated = %v, want clock time", got.LastUpdated)
	}
}

func TestRefreshUserSummaryPersistsSnapshot(t *testing.T) {
	st := &storemock.Store{}
	seedEntry(t, st, wellness.MoodHopeful, testTime.Add(-time.Hour))

	m := newTestMaintainer(t, st, &llmmock.Provider{})
	want, err := m.RefreshUserSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RefreshUserSummary: %v", err)
	}

	stored, err := st.GetUserSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUserSummary: %v", err)
	}
	if stored == nil {
		t.Fatal("no summary stored")
	}
	if stored.LastUpdated != want.LastUpdated || len(stored.MoodDistribution) != len(want.MoodDistribution) {
		t.Errorf("stored = %+v, want returned snapshot %+v", stored, want)
	}
}

func TestRefreshUserSummaryEmptyHistory(t *testing.T) {
	st := &storemock.Store{}
	m := newTestMaintainer(t, st, &llmmock.Provider{})

	got, err := m.RefreshUserSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RefreshUserSummary: %v", err)
	}
	if len(got.MoodDistribution) != 0 || len(got.ActiveTimePeriods) != 0 {
		t.Errorf("summary = %+v, want empty lists", got)
	}
	if st.UserSummaryCount() != 1 {
		t.Errorf("stored %d summaries, want the empty snapshot written", st.UserSummaryCount())
	}
}

func TestRefreshUserSummaryConcurrentWritersOneRow(t *testing.T) {
	st := &storemock.Store{}
	seedEntry(t, st, wellness.MoodCalm, testTime.Add(-time.Hour))
	m := newTestMaintainer(t, st, &llmmock.Provider{})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.RefreshUserSummary(context.Background(), "user-1"); err != nil {
				t.Errorf("RefreshUserSummary: %v", err)
			}
		}()
	}
	wg.Wait()

	if st.UserSummaryCount() != 1 {
		t.Errorf("stored %d summary rows, want exactly 1", st.UserSummaryCount())
	}
}

func TestDayNarrativeGeneratesOncePerDay(t *testing.T) {
	st := &storemock.Store{}
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	seedEntry(t, st, wellness.MoodDrained, day.Add(9*time.Hour))
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "A tiring but steady day."},
	}
	m := newTestMaintainer(t, st, p)

	first, err := m.DayNarrative(context.Background(), "user-1", day)
	if err != nil {
		t.Fatalf("DayNarrative: %v", err)
	}
	if first.Summary != "A tiring but steady day." {
		t.Errorf("Summary = %q", first.Summary)
	}
	if !first.Date.Equal(day) {
		t.Errorf("Date = %v, want midnight UTC of the day", first.Date)
	}

	// Second request returns the stored row without another generation.
	p.CompleteResponse = &llm.CompletionResponse{Content: "different text"}
	second, err := m.DayNarrative(context.Background(), "user-1", day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("DayNarrative (second): %v", err)
	}
	if second.Summary != first.Summary {
		t.Errorf("second Summary = %q, want stored %q", second.Summary, first.Summary)
	}
	if p.CompleteCallCount() != 1 {
		t.Errorf("generator ran %d times, want exactly once", p.CompleteCallCount())
	}
}

func TestDayNarrativeNoData(t *testing.T) {
	st := &storemock.Store{}
	p := &llmmock.Provider{}
	m := newTestMaintainer(t, st, p)

	_, err := m.DayNarrative(context.Background(), "user-1", testTime)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if p.CompleteCallCount() != 0 {
		t.Error("generator ran for an empty day")
	}
}

func TestDayNarrativeChatOnlyDayStillSummarised(t *testing.T) {
	st := &storemock.Store{}
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	if _, err := st.SaveMessage(context.Background(), wellness.ChatMessage{
		UserID:    "user-1",
		Content:   "just wanted to talk",
		Sender:    wellness.SenderUser,
		Timestamp: day.Add(19 * time.Hour),
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "An evening of conversation."}}
	m := newTestMaintainer(t, st, p)

	got, err := m.DayNarrative(context.Background(), "user-1", day)
	if err != nil {
		t.Fatalf("DayNarrative: %v", err)
	}
	if got.Summary != "An evening of conversation." {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestDayNarrativeGeneratorFailure(t *testing.T) {
	st := &storemock.Store{}
	seedEntry(t, st, wellness.MoodCalm, testTime)
	p := &llmmock.Provider{CompleteErr: errors.New("model offline")}
	m := newTestMaintainer(t, st, p)

	if _, err := m.DayNarrative(context.Background(), "user-1", testTime); err == nil {
		t.Fatal("err = nil, want generation failure")
	}
	if ds, _ := st.GetDaySummary(context.Background(), "user-1", testTime); ds != nil {
		t.Errorf("day summary stored despite failure: %+v", ds)
	}
}
