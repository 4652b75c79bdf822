package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeTitleLimit       = 100
	youtubeDescriptionLimit = 5000
	youtubeTagLimit         = 30
)

// YoutubeService publishes through the YouTube Data API and keeps the stored
// OAuth2 grant fresh.
type YoutubeService interface {
	PlatformAdapter
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type youtubeService struct {
	oauth *oauth2.Config
	creds CredentialStore
	media MediaFetcher
	opts  []option.ClientOption
}

// NewYoutubeService builds the adapter. Extra client options are appended
// after the per-user HTTP client, which lets callers point it at another
// endpoint.
func NewYoutubeService(cfg config.Config, creds CredentialStore, media MediaFetcher, opts ...option.ClientOption) YoutubeService {
	return &youtubeService{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		creds: creds,
		media: media,
		opts:  opts,
	}
}

func (s *youtubeService) Platform() models.Platform { return models.PlatformYoutube }

// RefreshToken exchanges the refresh token for a new access token and writes
// the result back through the credential store. acc is updated in place.
func (s *youtubeService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	if acc.RefreshToken == "" {
		return &AuthError{Platform: models.PlatformYoutube, Message: "no refresh token stored", NeedsReauth: true}
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: acc.RefreshToken}).Token()
	if err != nil {
		slog.Info(err.Error())
		return youtubeError(err)
	}

	acc.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		acc.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		acc.TokenExpiresAt = &expiry
	}

	return s.creds.Refresh(ctx, acc.UserID, models.PlatformYoutube, acc)
}

func (s *youtubeService) Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error) {
	if acc == nil || (acc.AccessToken == "" && acc.RefreshToken == "") {
		return nil, &AuthError{Platform: models.PlatformYoutube, Message: "oauth2 credential is required"}
	}

	if err := s.RefreshToken(ctx, acc); err != nil {
		slog.Warn("youtube token refresh failed, using stored access token", "user_id", acc.UserID, "error", err)
	}

	svc, err := s.service(ctx, acc)
	if err != nil {
		return nil, err
	}

	if content.VideoURL == "" {
		return s.createPlaylist(ctx, svc, content)
	}
	return s.uploadVideo(ctx, svc, content)
}

func (s *youtubeService) FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error) {
	if acc == nil || (acc.AccessToken == "" && acc.RefreshToken == "") {
		return nil, &AuthError{Platform: models.PlatformYoutube, Message: "oauth2 credential is required"}
	}

	if acc.AccessToken == "" || acc.Expired(time.Now().Add(time.Minute)) {
		if err := s.RefreshToken(ctx, acc); err != nil {
			slog.Warn("youtube token refresh failed, using stored access token", "user_id", acc.UserID, "error", err)
		}
	}

	svc, err := s.service(ctx, acc)
	if err != nil {
		return nil, err
	}

	if isPlaylistID(remoteID) {
		return s.playlistMetrics(ctx, svc, remoteID)
	}

	resp, err := svc.Videos.List([]string{"statistics"}).Id(remoteID).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, &PlatformError{Platform: models.PlatformYoutube, StatusCode: http.StatusNotFound, Message: "video " + remoteID + " not found"}
	}

	stats := resp.Items[0].Statistics
	return map[string]int64{
		"views":    int64(stats.ViewCount),
		"likes":    int64(stats.LikeCount),
		"comments": int64(stats.CommentCount),
	}, nil
}

// playlistMetrics covers posts published without a video, whose remote id is
// the playlist created for them.
func (s *youtubeService) playlistMetrics(ctx context.Context, svc *youtube.Service, playlistID string) (map[string]int64, error) {
	resp, err := svc.Playlists.List([]string{"contentDetails"}).Id(playlistID).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil {
		return nil, &PlatformError{Platform: models.PlatformYoutube, StatusCode: http.StatusNotFound, Message: "playlist " + playlistID + " not found"}
	}
	return map[string]int64{"items": resp.Items[0].ContentDetails.ItemCount}, nil
}

// isPlaylistID tells playlist ids ("PL" plus at least 16 characters) from
// 11-character video ids.
func isPlaylistID(id string) bool {
	return len(id) > 11 && strings.HasPrefix(id, "PL")
}

func (s *youtubeService) service(ctx context.Context, acc *models.SocialAccount) (*youtube.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: acc.AccessToken}))
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.opts...)

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("creating youtube client: %w", err)
	}
	return svc, nil
}

func (s *youtubeService) uploadVideo(ctx context.Context, svc *youtube.Service, content Content) (*PublishedItem, error) {
	file, err := s.media.Fetch(ctx, content.VideoURL, models.MediaKindVideo)
	if err != nil {
		return nil, err
	}
	defer file.Body.Close()

	title, description := youtubeText(content)
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        youtubeTags(content.Tags),
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: youtubePrivacy(content.Visibility, "public"),
		},
	}

	contentType := file.ContentType
	if !strings.HasPrefix(contentType, "video/") {
		contentType = "video/mp4"
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).Context(ctx)
	resp, err := call.Media(file.Body, googleapi.ContentType(contentType)).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, youtubeError(err)
	}
	if resp.Id == "" {
		return nil, &PlatformError{Platform: models.PlatformYoutube, Message: "no video id returned"}
	}

	return &PublishedItem{
		RemoteID: resp.Id,
		URL:      "https://www.youtube.com/watch?v=" + resp.Id,
	}, nil
}

// createPlaylist is the degraded path for posts without a video: an unlisted
// playlist carries the title and description so the post still gets a remote id.
func (s *youtubeService) createPlaylist(ctx context.Context, svc *youtube.Service, content Content) (*PublishedItem, error) {
	title, description := youtubeText(content)
	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{
			Title:       title,
			Description: description,
			Tags:        youtubeTags(content.Tags),
		},
		Status: &youtube.PlaylistStatus{
			PrivacyStatus: youtubePrivacy(content.Visibility, "unlisted"),
		},
	}

	resp, err := svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, youtubeError(err)
	}
	if resp.Id == "" {
		return nil, &PlatformError{Platform: models.PlatformYoutube, Message: "no playlist id returned"}
	}

	return &PublishedItem{
		RemoteID: resp.Id,
		URL:      "https://www.youtube.com/playlist?list=" + resp.Id,
	}, nil
}

func youtubeText(content Content) (string, string) {
	title := content.Title
	if title == "" {
		title, _, _ = strings.Cut(content.Caption, "\n")
	}
	description := content.Description
	if description == "" {
		description = content.Caption
	}
	return truncateRunes(strings.TrimSpace(title), youtubeTitleLimit), truncateRunes(description, youtubeDescriptionLimit)
}

func youtubeTags(tags []string) []string {
	if len(tags) > youtubeTagLimit {
		return tags[:youtubeTagLimit]
	}
	return tags
}

func youtubePrivacy(visibility, fallback string) string {
	switch v := strings.ToLower(visibility); v {
	case "public", "unlisted", "private":
		return v
	}
	return fallback
}

func youtubeError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := ""
		if len(gerr.Errors) > 0 {
			reason = gerr.Errors[0].Reason
		}
		switch {
		case gerr.Code == http.StatusUnauthorized || looksLikeGrantFailure(gerr.Message):
			return &AuthError{Platform: models.PlatformYoutube, Message: gerr.Message, NeedsReauth: true, Err: err}
		case gerr.Code == http.StatusTooManyRequests, reason == "rateLimitExceeded", reason == "quotaExceeded":
			return &RateLimitError{Platform: models.PlatformYoutube}
		}
		return &PlatformError{Platform: models.PlatformYoutube, StatusCode: gerr.Code, Message: gerr.Message, Payload: []byte(gerr.Body)}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) || looksLikeGrantFailure(err.Error()) {
		return &AuthError{Platform: models.PlatformYoutube, NeedsReauth: looksLikeGrantFailure(err.Error()), Err: err}
	}
	return fmt.Errorf("youtube: %w", err)
}
