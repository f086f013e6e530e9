package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sinagtala/tala/pkg/wellness"
)

// SaveEntry implements [store.EntryStore]. The row's timestamp defaults to
// now() when the entry carries a zero time.
func (s *Store) SaveEntry(ctx context.Context, entry wellness.MoodEntry) (wellness.MoodEntry, error) {
	const q = `
		INSERT INTO mood_entries (user_id, mood, note, timestamp)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id, user_id, mood, note, timestamp`

	var ts *time.Time
	if !entry.Timestamp.IsZero() {
		t := entry.Timestamp.UTC()
		ts = &t
	}

	row := s.pool.QueryRow(ctx, q, entry.UserID, entry.Mood, entry.Note, ts)
	saved, err := scanEntry(row)
	if err != nil {
		return wellness.MoodEntry{}, wrapErr("save entry", err)
	}
	return saved, nil
}

// EntriesBetween implements [store.EntryStore]. Both window boundaries are
// inclusive; results are newest first.
func (s *Store) EntriesBetween(ctx context.Context, userID string, w wellness.Window) ([]wellness.MoodEntry, error) {
	const q = `
		SELECT id, user_id, mood, note, timestamp
		FROM   mood_entries
		WHERE  user_id = $1
		  AND  timestamp BETWEEN $2 AND $3
		ORDER  BY timestamp DESC`

	rows, err := s.pool.Query(ctx, q, userID, w.Start.UTC(), w.End.UTC())
	if err != nil {
		return nil, wrapErr("entries between", err)
	}
	return collectEntries(rows)
}

// EntriesOn implements [store.EntryStore].
func (s *Store) EntriesOn(ctx context.Context, userID string, date time.Time) ([]wellness.MoodEntry, error) {
	const q = `
		SELECT id, user_id, mood, note, timestamp
		FROM   mood_entries
		WHERE  user_id = $1
		  AND  DATE(timestamp AT TIME ZONE 'UTC') = $2
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, userID, wellness.DateOf(date))
	if err != nil {
		return nil, wrapErr("entries on", err)
	}
	return collectEntries(rows)
}

// RecentEntries implements [store.EntryStore].
func (s *Store) RecentEntries(ctx context.Context, userID string, limit int) ([]wellness.MoodEntry, error) {
	const q = `
		SELECT id, user_id, mood, note, timestamp
		FROM   mood_entries
		WHERE  user_id = $1
		ORDER  BY timestamp DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, wrapErr("recent entries", err)
	}
	return collectEntries(rows)
}

// AllEntries implements [store.EntryStore].
func (s *Store) AllEntries(ctx context.Context, userID string) ([]wellness.MoodEntry, error) {
	const q = `
		SELECT id, user_id, mood, note, timestamp
		FROM   mood_entries
		WHERE  user_id = $1
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, wrapErr("all entries", err)
	}
	return collectEntries(rows)
}

// OldestEntry implements [store.EntryStore]. Returns nil when the user has
// no entries.
func (s *Store) OldestEntry(ctx context.Context, userID string) (*wellness.MoodEntry, error) {
	const q = `
		SELECT id, user_id, mood, note, timestamp
		FROM   mood_entries
		WHERE  user_id = $1
		ORDER  BY timestamp
		LIMIT  1`

	row := s.pool.QueryRow(ctx, q, userID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("oldest entry", err)
	}
	return &entry, nil
}

// ActiveUsers returns the IDs of users with at least one mood entry or chat
// message inside the trailing lookback period. Used by the background
// summary-refresh job; not part of the store interfaces.
func (s *Store) ActiveUsers(ctx context.Context, lookback time.Duration) ([]string, error) {
	const q = `
		SELECT user_id FROM mood_entries WHERE timestamp >= $1
		UNION
		SELECT user_id FROM chat_messages WHERE timestamp >= $1`

	cutoff := time.Now().UTC().Add(-lookback)
	rows, err := s.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, wrapErr("active users", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("scan active users", err)
	}
	return users, nil
}

// scanEntry scans a single mood_entries row, normalising the timestamp to UTC.
func scanEntry(row pgx.Row) (wellness.MoodEntry, error) {
	var e wellness.MoodEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.Mood, &e.Note, &e.Timestamp); err != nil {
		return wellness.MoodEntry{}, err
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// collectEntries scans pgx rows into a slice of MoodEntry values.
func collectEntries(rows pgx.Rows) ([]wellness.MoodEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (wellness.MoodEntry, error) {
		return scanEntry(row)
	})
	if err != nil {
		return nil, wrapErr("scan entries", err)
	}
	if entries == nil {
		entries = []wellness.MoodEntry{}
	}
	return entries, nil
}
