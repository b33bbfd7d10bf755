// Package distlock serializes ingestion work across processes: one lock per
// pipeline stage, and one per external event id while it is fetched or
// transformed.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned by WithLock when another holder owns the lock.
	ErrNotAcquired = errors.New("distlock: lock held elsewhere")
	// ErrLockLost is the cancellation cause seen by fn when the lock could
	// not be renewed.
	ErrLockLost = errors.New("distlock: lock lost")
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// Factory hands out a fresh lock per key under a common prefix.
type Factory struct {
	redis  *redis.Client
	db     *sql.DB
	prefix string
	ttl    time.Duration
}

// NewFactory creates a lock factory. Keys are namespaced as "<prefix>:<key>".
func NewFactory(redisClient *redis.Client, db *sql.DB, prefix string, ttl time.Duration) *Factory {
	return &Factory{redis: redisClient, db: db, prefix: prefix, ttl: ttl}
}

// Lock returns a new lock for key.
func (f *Factory) Lock(key string) DistLock {
	return NewLock(f.redis, f.db, f.prefix+":"+key, f.ttl)
}

// WithLock runs fn while holding the lock for key. It does not wait: if the
// lock is held elsewhere it returns ErrNotAcquired without calling fn.
func (f *Factory) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return WithLock(ctx, f.Lock(key), fn)
}

// renewable locks expire unless their holder extends them.
type renewable interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// WithLock runs fn while holding l. A lock with a TTL is extended every
// third of its TTL until fn returns; if an extension fails, fn's context is
// cancelled with ErrLockLost as its cause.
func WithLock(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer l.Release(context.WithoutCancel(ctx))

	r, ok := l.(renewable)
	if !ok || r.TTL() <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, r, stop, cancel)
	}()

	err = fn(ctx)
	close(stop)
	<-done
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrLockLost) {
			return cause
		}
	}
	return err
}

func keepAlive(ctx context.Context, r renewable, stop <-chan struct{}, lost context.CancelCauseFunc) {
	ttl := r.TTL()
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Extend(ctx, ttl); err != nil {
				lost(fmt.Errorf("%w: %v", ErrLockLost, err))
				return
			}
		}
	}
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped.
// The lock is automatically released if the DB connection drops, providing
// crash-safety similar to Redis TTL expiration.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// Session-scoped locks need the same connection for lock and unlock, so the
// lock pins one *sql.Conn between Acquire and Release.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
