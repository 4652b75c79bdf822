package models

import (
	"strings"
	"time"
)

type PostStatus string

const (
	PostStatusDraft              PostStatus = "draft"
	PostStatusScheduled          PostStatus = "scheduled"
	PostStatusPublishing         PostStatus = "publishing"
	PostStatusPublished          PostStatus = "published"
	PostStatusPartiallyPublished PostStatus = "partially_published"
	PostStatusFailed             PostStatus = "failed"
)

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformYoutube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type Media struct {
	ImageURL string `json:"imageUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

func (m Media) Empty() bool {
	return m.ImageURL == "" && m.VideoURL == ""
}

// PlatformContent overrides the shared caption and media for a single platform.
// Empty fields fall back to the post's values.
type PlatformContent struct {
	Caption     string   `json:"caption,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
}

type PostError struct {
	Platform Platform `json:"platform"`
	Message  string   `json:"message"`
	Kind     string   `json:"kind,omitempty"`
}

type Post struct {
	ID              string                       `db:"id" json:"id"`
	UserID          string                       `db:"user_id" json:"userId"`
	Caption         string                       `db:"caption" json:"caption"`
	Platforms       []Platform                   `db:"platforms" json:"platforms"`
	Media           Media                        `json:"media"`
	PlatformContent map[Platform]PlatformContent `db:"platform_content" json:"platformContent,omitempty"`
	ScheduledTime   *time.Time                   `db:"scheduled_time" json:"scheduledTime,omitempty"`
	Status          PostStatus                   `db:"status" json:"status"`
	PlatformPostIDs map[Platform]string          `db:"platform_post_ids" json:"platformPostIds"`
	Errors          []PostError                  `db:"errors" json:"errors"`
	Metrics         map[string]int64             `db:"metrics" json:"metrics"`
	LastSyncedAt    *time.Time                   `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt       time.Time                    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time                    `db:"updated_at" json:"updatedAt"`
	PublishedAt     *time.Time                   `db:"published_at" json:"publishedAt,omitempty"`
}

func (p *Post) HasPlatform(platform Platform) bool {
	for _, pl := range p.Platforms {
		if pl == platform {
			return true
		}
	}
	return false
}

// MissingField names the first required field a due post lacks, or "" when
// the post can be published.
func (p *Post) MissingField() string {
	switch {
	case p.UserID == "":
		return "ownerId"
	case strings.TrimSpace(p.Caption) == "":
		return "caption"
	case len(p.Platforms) == 0:
		return "platforms"
	}
	return ""
}

// MetricKey namespaces a platform counter so counters from different
// platforms never collide in the flat metrics map.
func MetricKey(platform Platform, counter string) string {
	return string(platform) + "." + counter
}

// PublishOutcome is the batched result of one publish attempt, written to
// the post in a single update.
type PublishOutcome struct {
	Status          PostStatus
	PlatformPostIDs map[Platform]string
	Errors          []PostError
	PublishedAt     *time.Time
}
