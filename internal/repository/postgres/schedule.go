package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ScheduleRepo implements schedule.Repository against PostgreSQL.
type ScheduleRepo struct{ db *sql.DB }

// NewScheduleRepo creates the candidate query repository.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

func (r *ScheduleRepo) UnfetchedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error) {
	return r.ids(ctx, "unfetched ids", `
		SELECT e.event_id
		FROM external_event_ids e
		LEFT JOIN raw_events r ON r.event_id = e.event_id
		WHERE e.last_seen > $1 AND r.event_id IS NULL
		ORDER BY e.last_seen DESC, e.event_id
		LIMIT $2
	`, seenAfter, limit)
}

func (r *ScheduleRepo) StaleFetchedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error) {
	return r.ids(ctx, "stale fetched ids", `
		SELECT e.event_id
		FROM external_event_ids e
		JOIN raw_events r ON r.event_id = e.event_id
		WHERE e.last_seen > $1
		ORDER BY r.last_fetched ASC, e.event_id
		LIMIT $2
	`, seenAfter, limit)
}

func (r *ScheduleRepo) UnparsedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error) {
	return r.ids(ctx, "unparsed ids", `
		SELECT e.event_id
		FROM external_event_ids e
		JOIN raw_events r ON r.event_id = e.event_id
		WHERE e.last_seen > $1 AND r.last_parsed IS NULL
		ORDER BY r.last_fetched DESC, e.event_id
		LIMIT $2
	`, seenAfter, limit)
}

func (r *ScheduleRepo) ChangedIDs(ctx context.Context, seenAfter time.Time, limit int) ([]string, error) {
	return r.ids(ctx, "changed ids", `
		SELECT e.event_id
		FROM external_event_ids e
		JOIN raw_events r ON r.event_id = e.event_id
		WHERE e.last_seen > $1 AND r.last_fetched > r.last_parsed
		ORDER BY r.last_parsed ASC, e.event_id
		LIMIT $2
	`, seenAfter, limit)
}

func (r *ScheduleRepo) ids(ctx context.Context, what, query string, seenAfter time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, query, seenAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
