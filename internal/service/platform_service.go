package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

// Content is the effective content handed to one adapter after per-platform
// overrides have been applied.
type Content struct {
	Caption     string
	Title       string
	Description string
	Tags        []string
	ImageURL    string
	VideoURL    string
	Visibility  string
}

func (c Content) HasMedia() bool {
	return c.ImageURL != "" || c.VideoURL != ""
}

// EffectiveContent applies a platform override on top of the shared caption
// and media.
func EffectiveContent(caption string, media models.Media, override *models.PlatformContent) Content {
	content := Content{
		Caption:  caption,
		ImageURL: media.ImageURL,
		VideoURL: media.VideoURL,
	}
	if override == nil {
		return content
	}
	if override.Caption != "" {
		content.Caption = override.Caption
	}
	if override.ImageURL != "" {
		content.ImageURL = override.ImageURL
	}
	if override.VideoURL != "" {
		content.VideoURL = override.VideoURL
	}
	content.Title = override.Title
	content.Description = override.Description
	content.Tags = override.Tags
	content.Visibility = override.Visibility
	return content
}

type PublishedItem struct {
	RemoteID string
	URL      string
}

// PlatformAdapter translates the uniform publish and metrics calls into one
// platform's wire protocol.
type PlatformAdapter interface {
	Platform() models.Platform
	Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error)
	FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error)
}

type PlatformRegistry struct {
	adapters map[models.Platform]PlatformAdapter
}

func NewPlatformRegistry(adapters ...PlatformAdapter) *PlatformRegistry {
	r := &PlatformRegistry{adapters: make(map[models.Platform]PlatformAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

func (r *PlatformRegistry) Get(platform models.Platform) (PlatformAdapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func (r *PlatformRegistry) Supports(platform models.Platform) bool {
	_, ok := r.adapters[platform]
	return ok
}

// errorFromResponse converts a non-2xx platform response into the error
// taxonomy. The body is read and attached as the diagnostic payload.
func errorFromResponse(platform models.Platform, resp *http.Response, message func(body []byte) string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{Platform: platform, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusUnauthorized:
		msg := string(body)
		if message != nil {
			if m := message(body); m != "" {
				msg = m
			}
		}
		return &AuthError{Platform: platform, Message: msg, NeedsReauth: true}
	}

	msg := fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	if message != nil {
		if m := message(body); m != "" {
			msg = m
		}
	}
	return &PlatformError{Platform: platform, StatusCode: resp.StatusCode, Message: msg, Payload: body}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// waitFunc pauses between remote status checks. Tests swap it for a no-op.
type waitFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
