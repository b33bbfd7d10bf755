package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ExternalEventRepo implements discovery.Repository against PostgreSQL.
type ExternalEventRepo struct{ db *sql.DB }

// NewExternalEventRepo creates a Postgres-backed registry of discovered ids.
func NewExternalEventRepo(db *sql.DB) *ExternalEventRepo { return &ExternalEventRepo{db: db} }

// TouchExternalEventID inserts the id or refreshes its last_seen. xmax is
// zero only for a freshly inserted row.
func (r *ExternalEventRepo) TouchExternalEventID(ctx context.Context, id string, seenAt time.Time) (bool, error) {
	var created bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO external_event_ids (event_id, first_fetched, last_seen)
		VALUES ($1, $2, $2)
		ON CONFLICT (event_id) DO UPDATE SET last_seen = EXCLUDED.last_seen
		RETURNING (xmax = 0)
	`, id, seenAt).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("touch external event id %s: %w", id, err)
	}
	return created, nil
}

// Count returns the number of known external ids.
func (r *ExternalEventRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM external_event_ids`).Scan(&n)
	return n, err
}
