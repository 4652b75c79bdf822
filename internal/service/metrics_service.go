package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/maheshrc27/crosspost/internal/lock"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"
)

// MetricsSyncer refreshes engagement counters for an owner's published posts.
type MetricsSyncer interface {
	Sync(ctx context.Context, userID string) (*transfer.SyncResult, error)
}

type metricsSyncer struct {
	posts    repository.PostRepository
	creds    CredentialStore
	registry *PlatformRegistry
	locker   *lock.Locker
	limiter  *rate.Limiter
	batch    int
	now      func() time.Time
}

// NewMetricsSyncer paces remote fetches at rps per second; rps <= 0 disables
// pacing.
func NewMetricsSyncer(
	posts repository.PostRepository,
	creds CredentialStore,
	registry *PlatformRegistry,
	locker *lock.Locker,
	batch int,
	rps float64) MetricsSyncer {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &metricsSyncer{
		posts:    posts,
		creds:    creds,
		registry: registry,
		locker:   locker,
		limiter:  rate.NewLimiter(limit, 1),
		batch:    batch,
		now:      time.Now,
	}
}

type cachedCredential struct {
	acc *models.SocialAccount
	err error
}

func (s *metricsSyncer) Sync(ctx context.Context, userID string) (*transfer.SyncResult, error) {
	if userID == "" {
		return nil, newValidationError("userId", "is required")
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	log := slog.With("run_id", runID, "user_id", userID)

	result := &transfer.SyncResult{RateLimited: []transfer.PlatformRef{}}

	release, err := s.locker.Acquire(ctx, "lock:metrics-sync:"+userID)
	if errors.Is(err, lock.ErrNotAcquired) {
		log.Info("metrics sync already running for owner")
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring sync lock: %w", err)
	}
	defer release()

	posts, err := s.posts.ListWithRemoteID(ctx, userID, s.batch)
	if err != nil {
		return nil, fmt.Errorf("listing posts for %s: %w", userID, err)
	}

	creds := make(map[models.Platform]cachedCredential)
	for _, post := range posts {
		counters := make(map[string]int64)

	platforms:
		for _, platform := range slices.Sorted(maps.Keys(post.PlatformPostIDs)) {
			remoteID := post.PlatformPostIDs[platform]
			if remoteID == "" {
				continue
			}

			adapter, ok := s.registry.Get(platform)
			if !ok {
				log.Warn("skipping unrecognised platform", "post_id", post.ID, "platform", platform)
				continue
			}

			acc, err := s.credential(ctx, userID, platform, creds)
			if err != nil {
				log.Warn("no usable credential for metrics", "post_id", post.ID, "platform", platform, "error", err)
				continue
			}

			if err := s.limiter.Wait(ctx); err != nil {
				return result, err
			}

			fetched, err := adapter.FetchMetrics(ctx, acc, remoteID)
			if IsRateLimited(err) {
				log.Info("metrics fetch rate limited", "post_id", post.ID, "platform", platform)
				result.RateLimited = append(result.RateLimited, transfer.PlatformRef{Platform: platform, PostID: post.ID})
				break platforms
			}
			if err != nil {
				log.Warn("metrics fetch failed", "post_id", post.ID, "platform", platform, "kind", KindOf(err), "error", err)
				continue
			}

			for counter, value := range fetched {
				counters[models.MetricKey(platform, counter)] = value
			}
		}

		if len(counters) == 0 {
			continue
		}
		if err := s.posts.MergeMetrics(ctx, post.ID, counters, s.now()); err != nil {
			log.Error("saving metrics", "post_id", post.ID, "error", err)
			continue
		}
		result.Updated++
	}

	log.Info("metrics sync finished", "posts", len(posts), "updated", result.Updated, "rate_limited", len(result.RateLimited))
	return result, nil
}

func (s *metricsSyncer) credential(ctx context.Context, userID string, platform models.Platform, cache map[models.Platform]cachedCredential) (*models.SocialAccount, error) {
	if c, ok := cache[platform]; ok {
		return c.acc, c.err
	}

	acc, err := s.creds.Get(ctx, userID, platform)
	if err == nil && acc == nil {
		err = &AuthError{Platform: platform, Message: "account not connected", NeedsReauth: true}
	}
	cache[platform] = cachedCredential{acc: acc, err: err}
	return acc, err
}
