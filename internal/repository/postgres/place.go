package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mymemorymaker/event-ingest/internal/domain"
	"github.com/mymemorymaker/event-ingest/internal/service/venue"
)

const placeColumns = `
	p.id, p.google_maps_place_id, p.headline, p.description,
	p.location_lat, p.location_long, p.address, p.snapshot,
	p.price_lower, p.price_upper, p.duration_lower, p.duration_upper,
	p.people_lower, p.people_upper, p.attributes,
	p.source_type, p.source_id, COALESCE(p.created_by::text, ''), p.created_at, p.updated_at,
	ARRAY(SELECT pi.image_id::text FROM place_images pi WHERE pi.place_id = p.id ORDER BY pi.position, pi.image_id)`

// PlaceRepo implements venue.Repository against PostgreSQL.
type PlaceRepo struct{ db *sql.DB }

// NewPlaceRepo creates a Postgres-backed place repository.
func NewPlaceRepo(db *sql.DB) *PlaceRepo { return &PlaceRepo{db: db} }

func (r *PlaceRepo) PlaceByGoogleID(ctx context.Context, googlePlaceID string) (*domain.Place, error) {
	p, err := scanPlace(r.db.QueryRowContext(ctx,
		`SELECT `+placeColumns+` FROM places p WHERE p.google_maps_place_id = $1`,
		googlePlaceID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, venue.ErrNotFound
	}
	return p, err
}

// GetOrCreatePlace inserts p; when the provider id is already taken the
// stored place is returned instead.
func (r *PlaceRepo) GetOrCreatePlace(ctx context.Context, p *domain.Place) (*domain.Place, bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	snapshot, err := json.Marshal(p.Snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("encode snapshot: %w", err)
	}
	attrs, err := encodeTags(p.Tags)
	if err != nil {
		return nil, false, err
	}

	var id string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO places (
			id, google_maps_place_id, headline, description,
			location_lat, location_long, address, snapshot,
			price_lower, price_upper, duration_lower, duration_upper,
			people_lower, people_upper, attributes,
			source_type, source_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (google_maps_place_id) DO NOTHING
		RETURNING id
	`, p.ID, p.GooglePlaceID, p.Headline, p.Description,
		p.Lat, p.Lng, p.Address, snapshot,
		p.PriceLower, p.PriceUpper, p.DurationLower, p.DurationUpper,
		p.PeopleLower, p.PeopleUpper, attrs,
		string(p.Source.Type), p.Source.ExternalID, nullString(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	switch {
	case err == nil:
		return p, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("insert place %s: %w", p.GooglePlaceID, err)
	}

	existing, err := r.PlaceByGoogleID(ctx, p.GooglePlaceID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// UpdatePlaceSnapshot writes the snapshot and unions p.Tags into the stored
// tags in one statement. p.Tags is replaced with the merged set.
func (r *PlaceRepo) UpdatePlaceSnapshot(ctx context.Context, p *domain.Place) error {
	snapshot, err := json.Marshal(p.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	attrs, err := encodeTags(p.Tags)
	if err != nil {
		return err
	}
	var merged []byte
	err = r.db.QueryRowContext(ctx, `
		UPDATE places
		SET snapshot = $2, attributes = merge_tags(places.attributes, $3::jsonb), updated_at = $4
		WHERE id = $1
		RETURNING attributes
	`, p.ID, snapshot, attrs, p.UpdatedAt).Scan(&merged)
	if errors.Is(err, sql.ErrNoRows) {
		return venue.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update place %s: %w", p.ID, err)
	}
	if p.Tags, err = decodeTags(merged); err != nil {
		return err
	}
	return nil
}

// AddPlaceImage inserts img and appends it to the place's images.
func (r *PlaceRepo) AddPlaceImage(ctx context.Context, placeID string, img *domain.Image) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add place image: %w", err)
	}
	defer tx.Rollback()

	if err := insertImage(ctx, tx, img); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO place_images (place_id, image_id, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1 FROM place_images WHERE place_id = $1
		ON CONFLICT (place_id, image_id) DO NOTHING
	`, placeID, img.ID)
	if err != nil {
		return fmt.Errorf("link place image: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add place image: %w", err)
	}
	return nil
}

func scanPlace(s rowScanner) (*domain.Place, error) {
	var (
		p          domain.Place
		snapshot   []byte
		attrs      []byte
		sourceType string
		imageIDs   pq.StringArray
	)
	err := s.Scan(&p.ID, &p.GooglePlaceID, &p.Headline, &p.Description,
		&p.Lat, &p.Lng, &p.Address, &snapshot,
		&p.PriceLower, &p.PriceUpper, &p.DurationLower, &p.DurationUpper,
		&p.PeopleLower, &p.PeopleUpper, &attrs,
		&sourceType, &p.Source.ExternalID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &imageIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan place: %w", err)
	}
	p.Source.Type = domain.SourceType(sourceType)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &p.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot of place %s: %w", p.ID, err)
		}
	}
	if p.Tags, err = decodeTags(attrs); err != nil {
		return nil, err
	}
	p.ImageIDs = []string(imageIDs)
	return &p, nil
}
