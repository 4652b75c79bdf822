package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	l, _ := newLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "lock:sweep")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "lock:sweep")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()

	again, err := l.Acquire(ctx, "lock:sweep")
	require.NoError(t, err)
	again()
}

func TestReleaseLeavesForeignLockAlone(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "lock:sync:u1")
	require.NoError(t, err)

	// Simulate expiry followed by another run taking the key.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("lock:sync:u1", "someone-else"))

	release()

	got, err := mr.Get("lock:sync:u1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLockExpires(t *testing.T) {
	l, mr := newLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "lock:sweep")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	release, err := l.Acquire(ctx, "lock:sweep")
	require.NoError(t, err)
	release()
}

func TestNilClientIsNoop(t *testing.T) {
	l := New(nil, time.Minute)

	release, err := l.Acquire(context.Background(), "lock:sweep")
	require.NoError(t, err)
	release()

	_, err = l.Acquire(context.Background(), "lock:sweep")
	assert.NoError(t, err)
}
