package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/service/transform"
)

const eventColumns = `
	e.id, e.headline, e.description, e.url,
	e.price_lower, e.price_upper, e.duration_lower, e.duration_upper,
	e.people_lower, e.people_upper, e.dates, e.attributes,
	e.source_type, e.source_id, COALESCE(e.created_by::text, ''), e.created_at, e.last_updated,
	e.approved_by::text, e.approval_timestamp,
	ARRAY(SELECT ei.image_id::text FROM event_images ei WHERE ei.event_id = e.id ORDER BY ei.position, ei.image_id),
	ARRAY(SELECT ep.place_id::text FROM event_places ep WHERE ep.event_id = e.id ORDER BY ep.position, ep.place_id)`

// EventRepo implements the event half of transform.Repository.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// EventsBySource returns every event for the source, oldest first.
func (r *EventRepo) EventsBySource(ctx context.Context, st domain.SourceType, externalID string) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		WHERE e.source_type = $1 AND e.source_id = $2
		ORDER BY e.created_at, e.id
	`, string(st), externalID)
	if err != nil {
		return nil, fmt.Errorf("events by source %s/%s: %w", st, externalID, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// DeleteEvents removes the events; their image and place links cascade.
func (r *EventRepo) DeleteEvents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func (r *EventRepo) LinkedImageByURL(ctx context.Context, eventID, url string) (*domain.Image, error) {
	var img domain.Image
	err := r.db.QueryRowContext(ctx, `
		SELECT i.id, i.uploaded_by, i.s3_key, i.link_url, i.alt_text, i.content_type, i.width, i.height, i.uploaded_at
		FROM images i
		JOIN event_images ei ON ei.image_id = i.id
		WHERE ei.event_id = $1 AND i.link_url = $2
		LIMIT 1
	`, eventID, url).Scan(&img.ID, &img.UploadedBy, &img.S3Key, &img.LinkURL, &img.AltText,
		&img.ContentType, &img.Width, &img.Height, &img.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transform.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("linked image for event %s: %w", eventID, err)
	}
	return &img, nil
}

// SaveEvent upserts the event row, inserts newImages and links every image
// and place id the event holds, all in one transaction. Tags are unioned into
// the stored set.
func (r *EventRepo) SaveEvent(ctx context.Context, ev *domain.Event, newImages []*domain.Image) error {
	dates, err := json.Marshal(ev.Dates)
	if err != nil {
		return fmt.Errorf("encode dates: %w", err)
	}
	attrs, err := encodeTags(ev.Tags)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save event: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (
			id, headline, description, url,
			price_lower, price_upper, duration_lower, duration_upper,
			people_lower, people_upper, dates, attributes,
			source_type, source_id, created_by, created_at, last_updated,
			approved_by, approval_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			headline = EXCLUDED.headline, description = EXCLUDED.description, url = EXCLUDED.url,
			price_lower = EXCLUDED.price_lower, price_upper = EXCLUDED.price_upper,
			duration_lower = EXCLUDED.duration_lower, duration_upper = EXCLUDED.duration_upper,
			people_lower = EXCLUDED.people_lower, people_upper = EXCLUDED.people_upper,
			dates = EXCLUDED.dates, attributes = merge_tags(events.attributes, EXCLUDED.attributes),
			source_type = EXCLUDED.source_type, source_id = EXCLUDED.source_id,
			created_by = EXCLUDED.created_by, last_updated = EXCLUDED.last_updated,
			approved_by = EXCLUDED.approved_by, approval_timestamp = EXCLUDED.approval_timestamp
	`, ev.ID, ev.Headline, ev.Description, ev.URL,
		ev.PriceLower, ev.PriceUpper, ev.DurationLower, ev.DurationUpper,
		ev.PeopleLower, ev.PeopleUpper, dates, attrs,
		string(ev.Source.Type), ev.Source.ExternalID, nullString(ev.CreatedBy), ev.CreatedAt, ev.LastUpdated,
		ev.ApprovedBy, ev.ApprovalTimestamp)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}

	for _, img := range newImages {
		if err := insertImage(ctx, tx, img); err != nil {
			return err
		}
	}
	if err := linkIDs(ctx, tx, "event_images", "event_id", "image_id", ev.ID, ev.ImageIDs); err != nil {
		return err
	}
	if err := linkIDs(ctx, tx, "event_places", "event_id", "place_id", ev.ID, ev.PlaceIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save event %s: %w", ev.ID, err)
	}
	return nil
}

func scanEvent(s rowScanner) (*domain.Event, error) {
	var (
		ev         domain.Event
		sourceType string
		dates      []byte
		attrs      []byte
		imageIDs   pq.StringArray
		placeIDs   pq.StringArray
	)
	err := s.Scan(&ev.ID, &ev.Headline, &ev.Description, &ev.URL,
		&ev.PriceLower, &ev.PriceUpper, &ev.DurationLower, &ev.DurationUpper,
		&ev.PeopleLower, &ev.PeopleUpper, &dates, &attrs,
		&sourceType, &ev.Source.ExternalID, &ev.CreatedBy, &ev.CreatedAt, &ev.LastUpdated,
		&ev.ApprovedBy, &ev.ApprovalTimestamp, &imageIDs, &placeIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	ev.Source.Type = domain.SourceType(sourceType)
	if len(dates) > 0 {
		if err := json.Unmarshal(dates, &ev.Dates); err != nil {
			return nil, fmt.Errorf("decode dates of event %s: %w", ev.ID, err)
		}
	}
	if ev.Tags, err = decodeTags(attrs); err != nil {
		return nil, err
	}
	ev.ImageIDs = []string(imageIDs)
	ev.PlaceIDs = []string(placeIDs)
	return &ev, nil
}
