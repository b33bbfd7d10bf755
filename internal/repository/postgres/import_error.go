package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// ImportErrorRepo is the append-only import error log.
type ImportErrorRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewImportErrorRepo creates a Postgres-backed import error log.
func NewImportErrorRepo(db *sql.DB) *ImportErrorRepo {
	return &ImportErrorRepo{db: db, now: time.Now}
}

func (r *ImportErrorRepo) RecordImportError(ctx context.Context, e *domain.ImportError) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	args := e.Args
	if args == nil {
		args = map[string]string{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode import error args: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO import_errors (id, operation, message, args, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Operation, e.Message, b, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record import error: %w", err)
	}
	return nil
}

// Recent returns the newest rows first.
func (r *ImportErrorRepo) Recent(ctx context.Context, limit int) ([]domain.ImportError, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, message, args, created_at
		FROM import_errors
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import errors: %w", err)
	}
	defer rows.Close()

	out := []domain.ImportError{}
	for rows.Next() {
		var (
			e    domain.ImportError
			args []byte
		)
		if err := rows.Scan(&e.ID, &e.Operation, &e.Message, &args, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import error: %w", err)
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &e.Args); err != nil {
				return nil, fmt.Errorf("decode import error args: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
