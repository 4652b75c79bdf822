package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// PublishCoordinator fans one post out to its platform adapters and records
// the aggregate outcome.
type PublishCoordinator interface {
	// Publish returns an error only for request validation or a failed store
	// write. Per-platform failures are reported in the response.
	Publish(ctx context.Context, userID string, req *transfer.PublishRequest) (*transfer.PublishResponse, error)
	// PublishPost republishes a stored post using its saved content. An empty
	// platforms list means every platform on the post.
	PublishPost(ctx context.Context, post *models.Post, platforms []models.Platform) (*transfer.PublishResponse, error)
	// PublishDirect runs a single adapter without touching the post store.
	PublishDirect(ctx context.Context, userID string, platform models.Platform, content Content) (*PublishedItem, error)
}

type publishCoordinator struct {
	posts    repository.PostRepository
	creds    CredentialStore
	registry *PlatformRegistry
	now      func() time.Time
}

func NewPublishCoordinator(posts repository.PostRepository, creds CredentialStore, registry *PlatformRegistry) PublishCoordinator {
	return &publishCoordinator{
		posts:    posts,
		creds:    creds,
		registry: registry,
		now:      time.Now,
	}
}

func (c *publishCoordinator) Publish(ctx context.Context, userID string, req *transfer.PublishRequest) (*transfer.PublishResponse, error) {
	if userID == "" {
		return nil, &AuthError{Message: "owner is required"}
	}
	if req == nil || req.PostID == "" {
		return nil, newValidationError("postId", "is required")
	}
	if len(req.Platforms) == 0 {
		return nil, newValidationError("platforms", "at least one platform is required")
	}
	if strings.TrimSpace(req.Caption) == "" {
		return nil, newValidationError("caption", "is required")
	}

	post, err := c.posts.GetByID(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("loading post %s: %w", req.PostID, err)
	}
	if post == nil || post.UserID != userID {
		return nil, newValidationError("postId", "post not found")
	}

	targets := c.targets(post, req.Platforms)
	if len(targets) == 0 {
		return nil, newValidationError("platforms", "none of the requested platforms are enabled for this post")
	}

	// Once claimed, the publish runs to completion and its outcome is written
	// even if the caller goes away.
	run := context.WithoutCancel(ctx)

	claimed, err := c.posts.ClaimForPublish(run, post.ID)
	if err != nil {
		return nil, fmt.Errorf("marking post %s publishing: %w", post.ID, err)
	}
	if !claimed {
		return nil, ErrPublishInProgress
	}

	results := c.dispatch(run, userID, targets, req, post.PlatformContent)
	outcome := BuildOutcome(results, c.now())

	if err := c.posts.SavePublishOutcome(run, post.ID, outcome); err != nil {
		return nil, fmt.Errorf("saving publish outcome for %s: %w", post.ID, err)
	}

	slog.Info("post published", "post_id", post.ID, "status", outcome.Status, "platforms", len(targets), "errors", len(outcome.Errors))
	return &transfer.PublishResponse{
		Success: outcome.Status == models.PostStatusPublished,
		Results: results,
	}, nil
}

func (c *publishCoordinator) PublishPost(ctx context.Context, post *models.Post, platforms []models.Platform) (*transfer.PublishResponse, error) {
	if len(platforms) == 0 {
		platforms = post.Platforms
	}
	return c.Publish(ctx, post.UserID, &transfer.PublishRequest{
		PostID:          post.ID,
		Platforms:       platforms,
		Caption:         post.Caption,
		ImageURL:        post.Media.ImageURL,
		VideoURL:        post.Media.VideoURL,
		PlatformContent: post.PlatformContent,
	})
}

func (c *publishCoordinator) PublishDirect(ctx context.Context, userID string, platform models.Platform, content Content) (*PublishedItem, error) {
	if userID == "" {
		return nil, &AuthError{Platform: platform, Message: "owner is required"}
	}

	adapter, ok := c.registry.Get(platform)
	if !ok {
		return nil, &PlatformError{Platform: platform, Message: "unsupported platform"}
	}

	acc, err := c.creds.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, &AuthError{Platform: platform, Message: "account not connected", NeedsReauth: true}
	}

	return adapter.Publish(ctx, acc, content)
}

// targets keeps the requested platforms that the post was created for, in
// request order and without duplicates.
func (c *publishCoordinator) targets(post *models.Post, requested []models.Platform) []models.Platform {
	seen := make(map[models.Platform]bool, len(requested))
	targets := make([]models.Platform, 0, len(requested))
	for _, p := range requested {
		if seen[p] {
			continue
		}
		seen[p] = true
		if !post.HasPlatform(p) {
			slog.Warn("skipping platform not enabled for post", "post_id", post.ID, "platform", p)
			continue
		}
		targets = append(targets, p)
	}
	return targets
}

// dispatch runs every adapter concurrently. Each result lands at its
// platform's index so the response order matches the request.
func (c *publishCoordinator) dispatch(
	ctx context.Context,
	userID string,
	targets []models.Platform,
	req *transfer.PublishRequest,
	stored map[models.Platform]models.PlatformContent,
) []transfer.PublishResult {
	results := make([]transfer.PublishResult, len(targets))

	var wg sync.WaitGroup
	for i, platform := range targets {
		override, ok := req.PlatformContent[platform]
		if !ok {
			override, ok = stored[platform]
		}
		var o *models.PlatformContent
		if ok {
			o = &override
		}
		content := EffectiveContent(req.Caption, req.Media(), o)

		wg.Add(1)
		go func(i int, platform models.Platform, content Content) {
			defer wg.Done()
			results[i] = c.attempt(ctx, userID, platform, content)
		}(i, platform, content)
	}
	wg.Wait()

	return results
}

func (c *publishCoordinator) attempt(ctx context.Context, userID string, platform models.Platform, content Content) (result transfer.PublishResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked", "platform", platform, "panic", r)
			result = failedResult(platform, fmt.Errorf("%s adapter panicked: %v", platform, r))
		}
	}()

	item, err := c.PublishDirect(ctx, userID, platform, content)
	if err != nil {
		slog.Info("platform publish failed", "platform", platform, "user_id", userID, "kind", KindOf(err), "error", err)
		return failedResult(platform, err)
	}
	return transfer.PublishResult{
		Platform:     platform,
		Success:      true,
		RemotePostID: item.RemoteID,
		URL:          item.URL,
	}
}

func failedResult(platform models.Platform, err error) transfer.PublishResult {
	return transfer.PublishResult{
		Platform:     platform,
		ErrorMessage: err.Error(),
		ErrorKind:    string(KindOf(err)),
		NeedsReauth:  NeedsReauth(err),
	}
}

// AggregateStatus derives the post status from the latest attempt's results.
func AggregateStatus(results []transfer.PublishResult) models.PostStatus {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	switch {
	case len(results) > 0 && succeeded == len(results):
		return models.PostStatusPublished
	case succeeded > 0:
		return models.PostStatusPartiallyPublished
	}
	return models.PostStatusFailed
}

func BuildOutcome(results []transfer.PublishResult, now time.Time) *models.PublishOutcome {
	outcome := &models.PublishOutcome{
		Status:          AggregateStatus(results),
		PlatformPostIDs: make(map[models.Platform]string),
		Errors:          []models.PostError{},
	}
	for _, r := range results {
		if r.Success {
			outcome.PlatformPostIDs[r.Platform] = r.RemotePostID
			continue
		}
		outcome.Errors = append(outcome.Errors, models.PostError{
			Platform: r.Platform,
			Message:  r.ErrorMessage,
			Kind:     r.ErrorKind,
		})
	}
	if len(outcome.PlatformPostIDs) > 0 {
		outcome.PublishedAt = &now
	}
	return outcome
}
