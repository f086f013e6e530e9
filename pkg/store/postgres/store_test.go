package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sinagtala/tala/pkg/store/postgres"
	"github.com/sinagtala/tala/pkg/wellness"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if TALA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TALA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TALA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	for _, table := range []string{"mood_entries", "chat_messages", "user_summaries", "day_summaries"} {
		if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			t.Fatalf("drop %s: %v", table, err)
		}
	}

	st, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestSaveAndListEntries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for i, m := range []wellness.Mood{wellness.MoodCalm, wellness.MoodAnxious, wellness.MoodHopeful} {
		saved, err := st.SaveEntry(ctx, wellness.MoodEntry{
			UserID:    "u1",
			Mood:      m,
			Note:      "note",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveEntry: %v", err)
		}
		if saved.ID == 0 {
			t.Error("SaveEntry returned zero ID")
		}
	}

	all, err := st.AllEntries(ctx, "u1")
	if err != nil {
		t.Fatalf("AllEntries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].Mood != wellness.MoodCalm || all[2].Mood != wellness.MoodHopeful {
		t.Errorf("chronological order broken: %+v", all)
	}

	recent, err := st.RecentEntries(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(recent) != 2 || recent[0].Mood != wellness.MoodHopeful {
		t.Errorf("recent = %+v, want newest two", recent)
	}

	oldest, err := st.OldestEntry(ctx, "u1")
	if err != nil {
		t.Fatalf("OldestEntry: %v", err)
	}
	if oldest == nil || oldest.Mood != wellness.MoodCalm {
		t.Errorf("oldest = %+v", oldest)
	}
	if missing, err := st.OldestEntry(ctx, "nobody"); err != nil || missing != nil {
		t.Errorf("OldestEntry(nobody) = %+v, %v, want nil, nil", missing, err)
	}
}

func TestEntriesBetweenInclusiveWindow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	for _, ts := range []time.Time{start, end, end.Add(time.Second)} {
		if _, err := st.SaveEntry(ctx, wellness.MoodEntry{UserID: "u1", Mood: wellness.MoodCalm, Timestamp: ts}); err != nil {
			t.Fatalf("SaveEntry: %v", err)
		}
	}

	got, err := st.EntriesBetween(ctx, "u1", wellness.Window{Start: start, End: end})
	if err != nil {
		t.Fatalf("EntriesBetween: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d entries, want both boundaries and not the overshoot", len(got))
	}
}

func TestSaveEntryDefaultsTimestamp(t *testing.T) {
	st := newTestStore(t)

	saved, err := st.SaveEntry(context.Background(), wellness.MoodEntry{UserID: "u1", Mood: wellness.MoodCalm})
	if err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
	if saved.Timestamp.IsZero() {
		t.Error("zero input timestamp should default to now()")
	}
	if time.Since(saved.Timestamp) > time.Minute {
		t.Errorf("defaulted timestamp %v is not recent", saved.Timestamp)
	}
}

func TestChatMessagesOnDay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, m := range []wellness.ChatMessage{
		{UserID: "u1", Content: "hello", Sender: wellness.SenderUser, Timestamp: day.Add(9 * time.Hour)},
		{UserID: "u1", Content: "hi there", Sender: wellness.SenderTala, Timestamp: day.Add(9*time.Hour + time.Minute)},
		{UserID: "u1", Content: "old", Sender: wellness.SenderUser, Timestamp: day.AddDate(0, 0, -1)},
	} {
		if _, err := st.SaveMessage(ctx, m); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
	}

	got, err := st.MessagesOn(ctx, "u1", day.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("MessagesOn: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want today's 2", len(got))
	}
	if got[0].Sender != wellness.SenderUser || got[1].Sender != wellness.SenderTala {
		t.Errorf("order = %+v, want chronological", got)
	}
}

func TestUserSummaryUpsertLastWriterWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := wellness.UserSummary{
		UserID:           "u1",
		MoodDistribution: []wellness.MoodShare{{Mood: wellness.MoodCalm, Count: 1, Percentage: 100}},
		LastUpdated:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := st.ReplaceUserSummary(ctx, first); err != nil {
		t.Fatalf("ReplaceUserSummary: %v", err)
	}

	second := first
	second.MoodDistribution = []wellness.MoodShare{
		{Mood: wellness.MoodCalm, Count: 1, Percentage: 50},
		{Mood: wellness.MoodAnxious, Count: 1, Percentage: 50},
	}
	second.LastUpdated = first.LastUpdated.Add(time.Hour)
	if err := st.ReplaceUserSummary(ctx, second); err != nil {
		t.Fatalf("ReplaceUserSummary (second): %v", err)
	}

	got, err := st.GetUserSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserSummary: %v", err)
	}
	if got == nil || len(got.MoodDistribution) != 2 {
		t.Errorf("summary = %+v, want the replacement, never a merge", got)
	}
}

func TestDaySummaryFirstWriterWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := st.CreateDaySummary(ctx, wellness.DaySummary{UserID: "u1", Date: day, Summary: "first text"})
	if err != nil {
		t.Fatalf("CreateDaySummary: %v", err)
	}
	second, err := st.CreateDaySummary(ctx, wellness.DaySummary{UserID: "u1", Date: day, Summary: "second text"})
	if err != nil {
		t.Fatalf("CreateDaySummary (conflict): %v", err)
	}
	if second.Summary != first.Summary {
		t.Errorf("conflict returned %q, want first writer's %q", second.Summary, first.Summary)
	}

	got, err := st.GetDaySummary(ctx, "u1", day)
	if err != nil {
		t.Fatalf("GetDaySummary: %v", err)
	}
	if got == nil || got.Summary != "first text" {
		t.Errorf("stored = %+v, want first writer's row", got)
	}
}

func TestActiveUsers(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if _, err := st.SaveEntry(ctx, wellness.MoodEntry{UserID: "recent-mood", Mood: wellness.MoodCalm, Timestamp: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("SaveEntry: %v", err)
	}
	if _, err := st.SaveMessage(ctx, wellness.ChatMessage{UserID: "recent-chat", Content: "hi", Sender: wellness.SenderUser, Timestamp: now.Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := st.SaveEntry(ctx, wellness.MoodEntry{UserID: "stale", Mood: wellness.MoodCalm, Timestamp: now.AddDate(0, -3, 0)}); err != nil {
		t.Fatalf("SaveEntry (stale): %v", err)
	}

	users, err := st.ActiveUsers(ctx, wellness.DefaultLookback)
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["recent-mood"] || !seen["recent-chat"] || seen["stale"] {
		t.Errorf("users = %v, want the two recent users only", users)
	}
}

func TestPing(t *testing.T) {
	st := newTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
