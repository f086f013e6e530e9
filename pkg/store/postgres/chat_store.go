package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sinagtala/tala/pkg/wellness"
)

// SaveMessage implements [store.ChatStore].
func (s *Store) SaveMessage(ctx context.Context, msg wellness.ChatMessage) (wellness.ChatMessage, error) {
	const q = `
		INSERT INTO chat_messages (user_id, content, sender, timestamp)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id, user_id, content, sender, timestamp`

	var ts *time.Time
	if !msg.Timestamp.IsZero() {
		t := msg.Timestamp.UTC()
		ts = &t
	}

	row := s.pool.QueryRow(ctx, q, msg.UserID, msg.Content, msg.Sender, ts)
	saved, err := scanMessage(row)
	if err != nil {
		return wellness.ChatMessage{}, wrapErr("save message", err)
	}
	return saved, nil
}

// MessagesOn implements [store.ChatStore].
func (s *Store) MessagesOn(ctx context.Context, userID string, date time.Time) ([]wellness.ChatMessage, error) {
	const q = `
		SELECT id, user_id, content, sender, timestamp
		FROM   chat_messages
		WHERE  user_id = $1
		  AND  DATE(timestamp AT TIME ZONE 'UTC') = $2
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, userID, wellness.DateOf(date))
	if err != nil {
		return nil, wrapErr("messages on", err)
	}
	return collectMessages(rows)
}

// RecentMessages implements [store.ChatStore].
func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]wellness.ChatMessage, error) {
	const q = `
		SELECT id, user_id, content, sender, timestamp
		FROM   chat_messages
		WHERE  user_id = $1
		ORDER  BY timestamp DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, wrapErr("recent messages", err)
	}
	return collectMessages(rows)
}

// scanMessage scans a single chat_messages row, normalising the timestamp to UTC.
func scanMessage(row pgx.Row) (wellness.ChatMessage, error) {
	var m wellness.ChatMessage
	if err := row.Scan(&m.ID, &m.UserID, &m.Content, &m.Sender, &m.Timestamp); err != nil {
		return wellness.ChatMessage{}, err
	}
	m.Timestamp = m.Timestamp.UTC()
	return m, nil
}

// collectMessages scans pgx rows into a slice of ChatMessage values.
func collectMessages(rows pgx.Rows) ([]wellness.ChatMessage, error) {
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (wellness.ChatMessage, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, wrapErr("scan messages", err)
	}
	if msgs == nil {
		msgs = []wellness.ChatMessage{}
	}
	return msgs, nil
}
