package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

// PostRepository is the durable post store. Publish outcomes and metrics are
// written through separate methods touching disjoint columns so the publish
// and sync paths never overwrite each other's fields.
type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	ClaimForPublish(ctx context.Context, postID string) (bool, error)
	SavePublishOutcome(ctx context.Context, postID string, outcome *models.PublishOutcome) error
	MarkFailed(ctx context.Context, postID string, postErr models.PostError) error
	MergeMetrics(ctx context.Context, postID string, counters map[string]int64, syncedAt time.Time) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	ListWithRemoteID(ctx context.Context, userID string, limit int) ([]*models.Post, error)
	ListOwnersWithRemoteID(ctx context.Context) ([]string, error)
}

var ErrPostNotFound = errors.New("post not found")

const postColumns = `id, user_id, caption, platforms, image_url, video_url, platform_content,
	scheduled_time, status, platform_post_ids, errors, metrics, last_synced_at,
	created_at, updated_at, published_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post                                         models.Post
		platforms                                    pq.StringArray
		platformContent, postIDs, postErrs, counters []byte
		scheduled, synced, published                 sql.NullTime
	)

	err := row.Scan(&post.ID, &post.UserID, &post.Caption, &platforms, &post.Media.ImageURL,
		&post.Media.VideoURL, &platformContent, &scheduled, &post.Status, &postIDs, &postErrs,
		&counters, &synced, &post.CreatedAt, &post.UpdatedAt, &published)
	if err != nil {
		return nil, err
	}

	post.Platforms = make([]models.Platform, 0, len(platforms))
	for _, p := range platforms {
		post.Platforms = append(post.Platforms, models.Platform(p))
	}
	if scheduled.Valid {
		post.ScheduledTime = &scheduled.Time
	}
	if synced.Valid {
		post.LastSyncedAt = &synced.Time
	}
	if published.Valid {
		post.PublishedAt = &published.Time
	}

	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{platformContent, &post.PlatformContent},
		{postIDs, &post.PlatformPostIDs},
		{postErrs, &post.Errors},
		{counters, &post.Metrics},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, err
		}
	}

	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	platformContent, err := json.Marshal(post.PlatformContent)
	if err != nil {
		return err
	}
	if post.PlatformContent == nil {
		platformContent = []byte("{}")
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}

	platforms := make([]string, 0, len(post.Platforms))
	for _, p := range post.Platforms {
		platforms = append(platforms, string(p))
	}

	query := `
		INSERT INTO posts (id, user_id, caption, platforms, image_url, video_url, platform_content, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query, post.ID, post.UserID, post.Caption, pq.Array(platforms),
		post.Media.ImageURL, post.Media.VideoURL, platformContent, post.ScheduledTime, post.Status,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ClaimForPublish moves the post to publishing. It reports false when the
// post is missing or another publish already holds it.
func (r *postRepository) ClaimForPublish(ctx context.Context, postID string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status <> $1
	`
	err := r.exec(ctx, query, models.PostStatusPublishing, time.Now(), postID)
	if errors.Is(err, ErrPostNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *postRepository) SavePublishOutcome(ctx context.Context, postID string, outcome *models.PublishOutcome) error {
	postIDs, err := json.Marshal(outcome.PlatformPostIDs)
	if err != nil {
		return err
	}
	if outcome.PlatformPostIDs == nil {
		postIDs = []byte("{}")
	}
	postErrs, err := json.Marshal(outcome.Errors)
	if err != nil {
		return err
	}
	if outcome.Errors == nil {
		postErrs = []byte("[]")
	}

	// platform_post_ids merges so ids from earlier attempts survive a later failure.
	query := `
		UPDATE posts
		SET status = $1,
			platform_post_ids = platform_post_ids || $2::jsonb,
			errors = $3::jsonb,
			published_at = COALESCE($4, published_at),
			updated_at = $5
		WHERE id = $6
	`
	return r.exec(ctx, query, outcome.Status, postIDs, postErrs, outcome.PublishedAt, time.Now(), postID)
}

func (r *postRepository) MarkFailed(ctx context.Context, postID string, postErr models.PostError) error {
	postErrs, err := json.Marshal([]models.PostError{postErr})
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET status = $1,
			errors = $2::jsonb,
			updated_at = $3
		WHERE id = $4
	`
	return r.exec(ctx, query, models.PostStatusFailed, postErrs, time.Now(), postID)
}

func (r *postRepository) MergeMetrics(ctx context.Context, postID string, counters map[string]int64, syncedAt time.Time) error {
	payload, err := json.Marshal(counters)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET metrics = COALESCE(metrics, '{}'::jsonb) || $1::jsonb,
			last_synced_at = $2
		WHERE id = $3
	`
	return r.exec(ctx, query, payload, syncedAt, postID)
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time
		LIMIT $3`
	return r.list(ctx, query, models.PostStatusScheduled, now, limit)
}

func (r *postRepository) ListWithRemoteID(ctx context.Context, userID string, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE user_id = $1 AND platform_post_ids <> '{}'::jsonb
		ORDER BY last_synced_at ASC NULLS FIRST
		LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

func (r *postRepository) ListOwnersWithRemoteID(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM posts WHERE platform_post_ids <> '{}'::jsonb`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrPostNotFound
	}
	return nil
}
