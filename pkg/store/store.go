// Package store defines the persistence interfaces for the SinagTala core.
//
// The core needs four relational primitives: select, insert-returning,
// update, and upsert-on-conflict. Implementations live in sub-packages
// ([github.com/sinagtala/tala/pkg/store/postgres] for production,
// [github.com/sinagtala/tala/pkg/store/mock] for tests) and must be safe for
// concurrent use.
//
// Absence of data is a legitimate outcome, not an error: lookups return nil
// (or an empty slice) when nothing matches. Store failures are wrapped with
// stable "store:"-prefixed messages; unique-constraint violations are
// distinguished via [ErrDuplicate].
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sinagtala/tala/pkg/wellness"
)

// ErrDuplicate marks a store failure caused by a unique-constraint violation.
// Check with errors.Is.
var ErrDuplicate = errors.New("duplicate record")

// EntryStore persists and lists mood entries. Entries are append-only.
type EntryStore interface {
	// SaveEntry inserts entry and returns the stored row with its assigned
	// ID and UTC timestamp.
	SaveEntry(ctx context.Context, entry wellness.MoodEntry) (wellness.MoodEntry, error)

	// EntriesBetween returns the user's entries inside the window, newest
	// first. An empty window yields an empty slice.
	EntriesBetween(ctx context.Context, userID string, w wellness.Window) ([]wellness.MoodEntry, error)

	// EntriesOn returns the user's entries for the calendar day of date
	// (UTC), in chronological order.
	EntriesOn(ctx context.Context, userID string, date time.Time) ([]wellness.MoodEntry, error)

	// RecentEntries returns up to limit of the user's most recent entries,
	// newest first.
	RecentEntries(ctx context.Context, userID string, limit int) ([]wellness.MoodEntry, error)

	// AllEntries returns the user's full entry history in chronological order.
	AllEntries(ctx context.Context, userID string) ([]wellness.MoodEntry, error)

	// OldestEntry returns the user's earliest entry, or nil when the user
	// has none.
	OldestEntry(ctx context.Context, userID string) (*wellness.MoodEntry, error)
}

// ChatStore persists and lists the append-only conversation log.
type ChatStore interface {
	// SaveMessage inserts msg and returns the stored row with its assigned
	// ID and UTC timestamp.
	SaveMessage(ctx context.Context, msg wellness.ChatMessage) (wellness.ChatMessage, error)

	// MessagesOn returns the user's messages for the calendar day of date
	// (UTC), in chronological order.
	MessagesOn(ctx context.Context, userID string, date time.Time) ([]wellness.ChatMessage, error)

	// RecentMessages returns up to limit of the user's most recent messages,
	// newest first.
	RecentMessages(ctx context.Context, userID string, limit int) ([]wellness.ChatMessage, error)
}

// SummaryStore persists the derived per-user and per-day summaries.
type SummaryStore interface {
	// ReplaceUserSummary stores summary via a single atomic upsert, replacing
	// any previous row wholesale. Concurrent callers converge on one of the
	// written snapshots (last writer wins), never a merge.
	ReplaceUserSummary(ctx context.Context, summary wellness.UserSummary) error

	// GetUserSummary returns the user's summary, or nil when none exists.
	GetUserSummary(ctx context.Context, userID string) (*wellness.UserSummary, error)

	// CreateDaySummary stores summary keyed by (user, date) unless a row
	// already exists, and returns the row that won: the existing one on
	// conflict (first writer wins).
	CreateDaySummary(ctx context.Context, summary wellness.DaySummary) (wellness.DaySummary, error)

	// GetDaySummary returns the stored day summary, or nil when none exists.
	GetDaySummary(ctx context.Context, userID string, date time.Time) (*wellness.DaySummary, error)
}

// Store bundles all persistence capabilities the core consumes.
type Store interface {
	EntryStore
	ChatStore
	SummaryStore
}
