package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sinagtala/tala/pkg/wellness"
)

// summaryPayload is the JSONB shape stored in user_summaries.summary.
type summaryPayload struct {
	MoodDistribution  []wellness.MoodShare   `json:"mood_distribution"`
	ActiveTimePeriods []wellness.PeriodCount `json:"active_time_periods"`
}

// ReplaceUserSummary implements [store.SummaryStore]. The whole row is
// written in one upsert so concurrent callers can never interleave into a
// half-state; the last writer wins.
func (s *Store) ReplaceUserSummary(ctx context.Context, summary wellness.UserSummary) error {
	payload, err := json.Marshal(summaryPayload{
		MoodDistribution:  summary.MoodDistribution,
		ActiveTimePeriods: summary.ActiveTimePeriods,
	})
	if err != nil {
		return fmt.Errorf("store: marshal user summary: %w", err)
	}

	const q = `
		INSERT INTO user_summaries (user_id, summary, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET summary = EXCLUDED.summary, updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, q, summary.UserID, payload, summary.LastUpdated.UTC()); err != nil {
		return wrapErr("replace user summary", err)
	}
	return nil
}

// GetUserSummary implements [store.SummaryStore]. Returns nil when the user
// has no summary yet.
func (s *Store) GetUserSummary(ctx context.Context, userID string) (*wellness.UserSummary, error) {
	const q = `
		SELECT summary, updated_at
		FROM   user_summaries
		WHERE  user_id = $1`

	var (
		raw       []byte
		updatedAt time.Time
	)
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&raw, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get user summary", err)
	}

	var payload summaryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("store: unmarshal user summary: %w", err)
	}

	return &wellness.UserSummary{
		UserID:            userID,
		MoodDistribution:  payload.MoodDistribution,
		ActiveTimePeriods: payload.ActiveTimePeriods,
		LastUpdated:       updatedAt.UTC(),
	}, nil
}

// CreateDaySummary implements [store.SummaryStore]. The first writer wins:
// ON CONFLICT DO NOTHING followed by a re-select means a concurrent duplicate
// call coalesces into the row that was created first.
func (s *Store) CreateDaySummary(ctx context.Context, summary wellness.DaySummary) (wellness.DaySummary, error) {
	const ins = `
		INSERT INTO day_summaries (user_id, date, summary)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO NOTHING`

	date := wellness.DateOf(summary.Date)
	if _, err := s.pool.Exec(ctx, ins, summary.UserID, date, summary.Summary); err != nil {
		return wellness.DaySummary{}, wrapErr("create day summary", err)
	}

	stored, err := s.GetDaySummary(ctx, summary.UserID, date)
	if err != nil {
		return wellness.DaySummary{}, err
	}
	if stored == nil {
		return wellness.DaySummary{}, fmt.Errorf("store: create day summary: row missing after upsert")
	}
	return *stored, nil
}

// GetDaySummary implements [store.SummaryStore]. Returns nil when no summary
// exists for the given (user, date).
func (s *Store) GetDaySummary(ctx context.Context, userID string, date time.Time) (*wellness.DaySummary, error) {
	const q = `
		SELECT user_id, date, summary, created_at
		FROM   day_summaries
		WHERE  user_id = $1 AND date = $2`

	var ds wellness.DaySummary
	err := s.pool.QueryRow(ctx, q, userID, wellness.DateOf(date)).
		Scan(&ds.UserID, &ds.Date, &ds.Summary, &ds.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get day summary", err)
	}
	ds.Date = wellness.DateOf(ds.Date)
	ds.CreatedAt = ds.CreatedAt.UTC()
	return &ds, nil
}
