// Package mock provides an in-memory test double for [store.Store].
//
// The zero value is ready to use. Set the Err fields to inject failures for
// specific operations. All methods are safe for concurrent use, which the
// concurrency tests rely on.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sinagtala/tala/pkg/store"
	"github.com/sinagtala/tala/pkg/wellness"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of [store.Store].
type Store struct {
	mu     sync.Mutex
	nextID int64

	entries   []wellness.MoodEntry
	messages  []wellness.ChatMessage
	summaries map[string]wellness.UserSummary
	days      map[string]wellness.DaySummary

	// Now supplies timestamps for rows saved with a zero time.
	// Defaults to time.Now.
	Now func() time.Time

	// --- Error injection ---

	SaveEntryErr          error
	SaveMessageErr        error
	ReplaceUserSummaryErr error
	CreateDaySummaryErr   error
	QueryErr              error
}

// dayKey keys day summaries by user and UTC calendar date.
func dayKey(userID string, date time.Time) string {
	return userID + "|" + wellness.DateOf(date).Format("2006-01-02")
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SaveEntry implements [store.EntryStore].
func (s *Store) SaveEntry(_ context.Context, entry wellness.MoodEntry) (wellness.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveEntryErr != nil {
		return wellness.MoodEntry{}, s.SaveEntryErr
	}
	s.nextID++
	entry.ID = s.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	} else {
		entry.Timestamp = entry.Timestamp.UTC()
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// EntriesBetween implements [store.EntryStore].
func (s *Store) EntriesBetween(_ context.Context, userID string, w wellness.Window) ([]wellness.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := []wellness.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID && w.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	sortEntries(out, false)
	return out, nil
}

// EntriesOn implements [store.EntryStore].
func (s *Store) EntriesOn(_ context.Context, userID string, date time.Time) ([]wellness.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	day := wellness.DateOf(date)
	out := []wellness.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID && wellness.DateOf(e.Timestamp).Equal(day) {
			out = append(out, e)
		}
	}
	sortEntries(out, true)
	return out, nil
}

// RecentEntries implements [store.EntryStore].
func (s *Store) RecentEntries(_ context.Context, userID string, limit int) ([]wellness.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := []wellness.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sortEntries(out, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AllEntries implements [store.EntryStore].
func (s *Store) AllEntries(_ context.Context, userID string) ([]wellness.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := []wellness.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sortEntries(out, true)
	return out, nil
}

// OldestEntry implements [store.EntryStore].
func (s *Store) OldestEntry(ctx context.Context, userID string) (*wellness.MoodEntry, error) {
	all, err := s.AllEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	e := all[0]
	return &e, nil
}

// SaveMessage implements [store.ChatStore].
func (s *Store) SaveMessage(_ context.Context, msg wellness.ChatMessage) (wellness.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveMessageErr != nil {
		return wellness.ChatMessage{}, s.SaveMessageErr
	}
	s.nextID++
	msg.ID = s.nextID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	} else {
		msg.Timestamp = msg.Timestamp.UTC()
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// MessagesOn implements [store.ChatStore].
func (s *Store) MessagesOn(_ context.Context, userID string, date time.Time) ([]wellness.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	day := wellness.DateOf(date)
	out := []wellness.ChatMessage{}
	for _, m := range s.messages {
		if m.UserID == userID && wellness.DateOf(m.Timestamp).Equal(day) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// RecentMessages implements [store.ChatStore].
func (s *Store) RecentMessages(_ context.Context, userID string, limit int) ([]wellness.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := []wellness.ChatMessage{}
	for _, m := range s.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReplaceUserSummary implements [store.SummaryStore].
func (s *Store) ReplaceUserSummary(_ context.Context, summary wellness.UserSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReplaceUserSummaryErr != nil {
		return s.ReplaceUserSummaryErr
	}
	if s.summaries == nil {
		s.summaries = map[string]wellness.UserSummary{}
	}
	s.summaries[summary.UserID] = summary
	return nil
}

// GetUserSummary implements [store.SummaryStore].
func (s *Store) GetUserSummary(_ context.Context, userID string) (*wellness.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	sum, ok := s.summaries[userID]
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

// CreateDaySummary implements [store.SummaryStore]. First writer wins.
func (s *Store) CreateDaySummary(_ context.Context, summary wellness.DaySummary) (wellness.DaySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateDaySummaryErr != nil {
		return wellness.DaySummary{}, s.CreateDaySummaryErr
	}
	if s.days == nil {
		s.days = map[string]wellness.DaySummary{}
	}
	key := dayKey(summary.UserID, summary.Date)
	if existing, ok := s.days[key]; ok {
		return existing, nil
	}
	summary.Date = wellness.DateOf(summary.Date)
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}
	s.days[key] = summary
	return summary, nil
}

// GetDaySummary implements [store.SummaryStore].
func (s *Store) GetDaySummary(_ context.Context, userID string, date time.Time) (*wellness.DaySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	ds, ok := s.days[dayKey(userID, date)]
	if !ok {
		return nil, nil
	}
	return &ds, nil
}

// UserSummaryCount returns the number of stored user-summary rows.
// Read after concurrency tests.
func (s *Store) UserSummaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

// Messages returns a copy of all stored chat messages in insertion order.
func (s *Store) Messages() []wellness.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wellness.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Entries returns a copy of all stored mood entries in insertion order.
func (s *Store) Entries() []wellness.MoodEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wellness.MoodEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// sortEntries orders entries by timestamp, ascending or descending. The sort
// is stable so same-timestamp entries keep insertion order.
func sortEntries(entries []wellness.MoodEntry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
