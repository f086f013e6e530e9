// Package postgres provides the PostgreSQL-backed implementation of
// [store.Store] on a single [pgxpool.Pool].
//
// [Migrate] is idempotent (CREATE TABLE IF NOT EXISTS) and safe to run on
// every application start.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	saved, err := st.SaveEntry(ctx, entry)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMoodEntries = `
CREATE TABLE IF NOT EXISTS mood_entries (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    TEXT         NOT NULL,
    mood       TEXT         NOT NULL,
    note       TEXT         NOT NULL DEFAULT '',
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mood_entries_user_timestamp
    ON mood_entries (user_id, timestamp);
`

const ddlChatMessages = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id         BIGSERIAL    PRIMARY KEY,
    user_id    TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    sender     TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_user_timestamp
    ON chat_messages (user_id, timestamp);
`

const ddlSummaries = `
CREATE TABLE IF NOT EXISTS user_summaries (
    user_id     TEXT         PRIMARY KEY,
    summary     JSONB        NOT NULL DEFAULT '{}',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS day_summaries (
    user_id     TEXT         NOT NULL,
    date        DATE         NOT NULL,
    summary     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, date)
);
`

// Migrate creates all required tables and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlMoodEntries,
		ddlChatMessages,
		ddlSummaries,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
