// Package postgres implements the pipeline's keyed stores on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/mymemorymaker/event-ingest/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeTags(t domain.Tags) ([]byte, error) {
	if t == nil {
		t = domain.Tags{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return b, nil
}

func decodeTags(b []byte) (domain.Tags, error) {
	t := domain.Tags{}
	if len(b) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return t, nil
}

func insertImage(ctx context.Context, db execer, img *domain.Image) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO images (id, uploaded_by, s3_key, link_url, alt_text, content_type, width, height, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, img.ID, img.UploadedBy, img.S3Key, img.LinkURL, img.AltText, img.ContentType, img.Width, img.Height, img.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert image %s: %w", img.ID, err)
	}
	return nil
}

// linkIDs links ids to owner in table, keeping slice order as position.
// Existing links are left as they are.
func linkIDs(ctx context.Context, db execer, table, ownerCol, idCol, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, position)
		SELECT $1, u.id::uuid, u.ord
		FROM unnest($2::text[]) WITH ORDINALITY AS u(id, ord)
		ON CONFLICT (%s, %s) DO NOTHING
	`, table, ownerCol, idCol, ownerCol, idCol)
	if _, err := db.ExecContext(ctx, q, owner, pq.Array(ids)); err != nil {
		return fmt.Errorf("link %s: %w", table, err)
	}
	return nil
}
