package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/service/transform"
)

// RawEventRepo implements fetch.Repository and the raw half of
// transform.Repository.
type RawEventRepo struct{ db *sql.DB }

// NewRawEventRepo creates a Postgres-backed raw payload store.
func NewRawEventRepo(db *sql.DB) *RawEventRepo { return &RawEventRepo{db: db} }

// UpsertRawEvent overwrites the payload; last_parsed is kept so the
// scheduler can see the record changed since its last parse.
func (r *RawEventRepo) UpsertRawEvent(ctx context.Context, eventID string, data json.RawMessage, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO raw_events (event_id, data, last_fetched)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO UPDATE SET data = EXCLUDED.data, last_fetched = EXCLUDED.last_fetched
	`, eventID, []byte(data), fetchedAt)
	if err != nil {
		return fmt.Errorf("upsert raw event %s: %w", eventID, err)
	}
	return nil
}

func (r *RawEventRepo) RawEvent(ctx context.Context, eventID string) (*domain.RawEvent, error) {
	var (
		raw  domain.RawEvent
		data []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT event_id, data, last_fetched, last_parsed
		FROM raw_events WHERE event_id = $1
	`, eventID).Scan(&raw.EventID, &data, &raw.LastFetched, &raw.LastParsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transform.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get raw event %s: %w", eventID, err)
	}
	raw.Data = json.RawMessage(data)
	return &raw, nil
}

func (r *RawEventRepo) MarkParsed(ctx context.Context, eventID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE raw_events SET last_parsed = $2 WHERE event_id = $1`,
		eventID, at,
	)
	if err != nil {
		return fmt.Errorf("mark raw event %s parsed: %w", eventID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return transform.ErrNotFound
	}
	return nil
}
