// Package bootstrap wires repositories, adapters and services for the
// server and the operator CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/lock"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// lockTTL outlives the longest sweep so a live run never loses its lock.
const lockTTL = 25 * time.Minute

type Deps struct {
	Posts       repository.PostRepository
	Creds       service.CredentialStore
	Youtube     service.YoutubeService
	Registry    *service.PlatformRegistry
	Coordinator service.PublishCoordinator
	Trigger     service.ScheduleTrigger
	Syncer      service.MetricsSyncer
}

// Build assembles the services. rdb may be nil, in which case overlap
// locking is disabled.
func Build(ctx context.Context, cfg config.Config, db *sql.DB, rdb *redis.Client) (*Deps, error) {
	cipher, err := utils.NewTokenCipher([]byte(cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY must be 16, 24 or 32 bytes: %w", err)
	}

	r2, err := service.NewR2Service(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring r2: %w", err)
	}

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	creds := service.NewCredentialStore(socialAccountRepo, cipher)
	media := service.NewMediaFetcher(httpClient, r2)

	youtubeService := service.NewYoutubeService(cfg, creds, media)
	registry := service.NewPlatformRegistry(
		service.NewTwitterService(cfg.Twitter, media),
		youtubeService,
		service.NewInstagramService(cfg.Instagram, httpClient),
		service.NewLinkedInService(cfg.LinkedIn, httpClient),
	)

	var locker *lock.Locker
	if rdb != nil {
		locker = lock.New(rdb, lockTTL)
	}

	coordinator := service.NewPublishCoordinator(postRepo, creds, registry)

	return &Deps{
		Posts:       postRepo,
		Creds:       creds,
		Youtube:     youtubeService,
		Registry:    registry,
		Coordinator: coordinator,
		Trigger:     service.NewScheduleTrigger(postRepo, coordinator, locker, cfg.Schedule.BatchSize),
		Syncer: service.NewMetricsSyncer(postRepo, creds, registry, locker,
			cfg.Schedule.SyncBatchSize, cfg.Schedule.MetricsRPS),
	}, nil
}

// OpenDB opens and pings Postgres.
func OpenDB(cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	return db, nil
}

// OpenRedis returns nil when REDIS_URI is unset.
func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisURI == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis is unreachable: %w", err)
	}
	return rdb, nil
}
