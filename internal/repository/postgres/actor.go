package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mymemorymaker/event-ingest/internal/domain"
)

// ActorRepo stores the non-human accounts writes are attributed to.
type ActorRepo struct{ db *sql.DB }

// NewActorRepo creates a Postgres-backed actor repository.
func NewActorRepo(db *sql.DB) *ActorRepo { return &ActorRepo{db: db} }

// EnsureActor returns the stored actor with a's email, creating it first if
// needed. Names are refreshed from a.
func (r *ActorRepo) EnsureActor(ctx context.Context, a domain.Actor) (domain.Actor, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO actors (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING id
	`, a.ID, a.Email, a.FirstName, a.LastName).Scan(&a.ID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("ensure actor %s: %w", a.Email, err)
	}
	return a, nil
}
