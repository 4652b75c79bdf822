// Package lock guards sweeps and syncs against overlapping runs across
// processes with a single Redis key per job.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock is held by another run")

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a Locker. With a nil client every Acquire succeeds.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

// Acquire takes key for the locker's TTL. The returned release func is always
// safe to call.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}

	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func() {
		if err := releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err(); err != nil {
			slog.Warn("releasing lock", "key", key, "error", err)
		}
	}, nil
}
