package transfer

import "github.com/maheshrc27/crosspost/internal/models"

type PublishRequest struct {
	PostID          string                                     `json:"postId"`
	Platforms       []models.Platform                          `json:"platforms"`
	Caption         string                                     `json:"caption"`
	ImageURL        string                                     `json:"imageUrl,omitempty"`
	VideoURL        string                                     `json:"videoUrl,omitempty"`
	PlatformContent map[models.Platform]models.PlatformContent `json:"platformContent,omitempty"`
}

func (r *PublishRequest) Media() models.Media {
	return models.Media{ImageURL: r.ImageURL, VideoURL: r.VideoURL}
}

// PublishResult is one platform's outcome. RemotePostID is set iff Success,
// ErrorMessage iff not.
type PublishResult struct {
	Platform     models.Platform `json:"platform" yaml:"platform"`
	Success      bool            `json:"success" yaml:"success"`
	RemotePostID string          `json:"remotePostId,omitempty" yaml:"remotePostId,omitempty"`
	URL          string          `json:"url,omitempty" yaml:"url,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	ErrorKind    string          `json:"errorKind,omitempty" yaml:"errorKind,omitempty"`
	NeedsReauth  bool            `json:"needsReauth,omitempty" yaml:"needsReauth,omitempty"`
}

type PublishResponse struct {
	Success bool            `json:"success" yaml:"success"`
	Results []PublishResult `json:"results" yaml:"results"`
}

type SyncRequest struct {
	UserID string `json:"userId"`
}

type PlatformRef struct {
	Platform models.Platform `json:"platform" yaml:"platform"`
	PostID   string          `json:"postId" yaml:"postId"`
}

type SyncResult struct {
	Updated     int           `json:"updated" yaml:"updated"`
	RateLimited []PlatformRef `json:"rateLimitHits" yaml:"rateLimitHits"`
}

type SyncResponse struct {
	Success       bool          `json:"success"`
	Updated       int           `json:"updated"`
	RateLimitHits []PlatformRef `json:"rateLimitHits"`
}

type SweepResult struct {
	Processed int `json:"processed" yaml:"processed"`
	Failed    int `json:"failed" yaml:"failed"`
}

type SweepResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// PlatformPublishRequest is the body of the per-platform helper routes.
type PlatformPublishRequest struct {
	UserID      string   `json:"userId"`
	Caption     string   `json:"caption"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
}

type ErrorResponse struct {
	Error       string `json:"error"`
	Details     string `json:"details,omitempty"`
	NeedsReauth bool   `json:"needsReauth,omitempty"`
}
