package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "ingest:stage:fetch", time.Minute)
	second := NewRedisLock(client, "ingest:stage:fetch", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire")

	// releasing a lock we do not own is a no-op
	require.NoError(t, second.Release(ctx))
	ok, _ = second.Acquire(ctx)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "ingest:event:42", time.Second)
	ok, _ := l.Acquire(ctx)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err := NewRedisLock(client, "ingest:event:42", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFactory_WithLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	f := NewFactory(client, nil, "ingest:event", time.Minute)

	called := false
	err := f.WithLock(ctx, "42", func(ctx context.Context) error {
		called = true
		assert.True(t, mr.Exists("lock:ingest:event:42"))

		inner := f.WithLock(ctx, "42", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrNotAcquired)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists("lock:ingest:event:42"), "lock released after fn")
}

func TestFactory_WithLockPropagatesError(t *testing.T) {
	client, _ := setupTestRedis(t)
	f := NewFactory(client, nil, "ingest:event", time.Minute)
	boom := errors.New("boom")

	err := f.WithLock(context.Background(), "1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestFactory_WithLockRenewsWhileRunning(t *testing.T) {
	client, mr := setupTestRedis(t)
	f := NewFactory(client, nil, "ingest:event", 300*time.Millisecond)

	err := f.WithLock(context.Background(), "7", func(ctx context.Context) error {
		// 800ms of lock time passes, well past the 300ms TTL.
		for i := 0; i < 4; i++ {
			time.Sleep(150 * time.Millisecond)
			mr.FastForward(200 * time.Millisecond)
			require.True(t, mr.Exists("lock:ingest:event:7"), "lock expired after step %d", i)
		}
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:ingest:event:7"))
}

func TestFactory_WithLockCancelsWhenLockLost(t *testing.T) {
	client, mr := setupTestRedis(t)
	f := NewFactory(client, nil, "ingest:event", 90*time.Millisecond)

	err := f.WithLock(context.Background(), "8", func(ctx context.Context) error {
		// Another holder takes the key after ours vanished.
		mr.Del("lock:ingest:event:8")
		require.NoError(t, mr.Set("lock:ingest:event:8", "someone-else"))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("fn context was not cancelled")
		}
	})
	assert.ErrorIs(t, err, ErrLockLost)
	v, _ := mr.Get("lock:ingest:event:8")
	assert.Equal(t, "someone-else", v, "release must not delete another holder's lock")
}

func TestPGAdvisoryLock_AcquireRelease(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "ingest:stage:transform")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "ingest:stage:transform")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "ingest:stage:full", time.Second)
	ok, _ := l.Acquire(ctx)
	require.True(t, ok)
	require.NoError(t, l.Extend(ctx, time.Minute))
	assert.Greater(t, mr.TTL("lock:ingest:stage:full"), 30*time.Second)

	require.NoError(t, l.Release(ctx))
	assert.Error(t, l.Extend(ctx, time.Minute))
}
