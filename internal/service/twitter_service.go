package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	twitterImageLimit    = 5 << 20
	twitterVideoLimit    = 512 << 20
	twitterChunkSize     = 4 << 20
	twitterStatusChecks  = 20
	twitterDefaultStatus = 5 * time.Second
)

type twitterService struct {
	cfg    config.Twitter
	oauth  *oauth1.Config
	media  MediaFetcher
	wait   waitFunc
	checks int
}

func NewTwitterService(cfg config.Twitter, media MediaFetcher) PlatformAdapter {
	return &twitterService{
		cfg:    cfg,
		oauth:  oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret),
		media:  media,
		wait:   sleepCtx,
		checks: twitterStatusChecks,
	}
}

func (s *twitterService) Platform() models.Platform { return models.PlatformTwitter }

func (s *twitterService) client(ctx context.Context, acc *models.SocialAccount) (*http.Client, error) {
	if acc == nil || acc.AccessToken == "" || acc.TokenSecret == "" {
		return nil, &AuthError{Platform: models.PlatformTwitter, Message: "oauth1 access token and token secret are required"}
	}
	return s.oauth.Client(ctx, oauth1.NewToken(acc.AccessToken, acc.TokenSecret)), nil
}

func (s *twitterService) Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error) {
	client, err := s.client(ctx, acc)
	if err != nil {
		return nil, err
	}

	tweet := transfer.TweetCreateRequest{Text: content.Caption}
	if content.HasMedia() {
		mediaID, err := s.uploadMedia(ctx, client, content)
		if err != nil {
			slog.Warn("twitter media upload failed, posting text only", "user_id", acc.UserID, "error", err)
		} else {
			tweet.Media = &transfer.TweetMedia{MediaIDs: []string{mediaID}}
		}
	}

	body, err := json.Marshal(tweet)
	if err != nil {
		return nil, fmt.Errorf("error marshalling tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(models.PlatformTwitter, resp, twitterMessage)
	}

	var created transfer.TweetCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if created.Data.ID == "" {
		return nil, &PlatformError{Platform: models.PlatformTwitter, StatusCode: resp.StatusCode, Message: "no tweet id returned"}
	}

	return &PublishedItem{
		RemoteID: created.Data.ID,
		URL:      "https://x.com/i/web/status/" + created.Data.ID,
	}, nil
}

func (s *twitterService) FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error) {
	client, err := s.client(ctx, acc)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics", s.cfg.APIURL, url.PathEscape(remoteID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(models.PlatformTwitter, resp, twitterMessage)
	}

	var lookup transfer.TweetLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	m := lookup.Data.PublicMetrics
	return map[string]int64{
		"likes":       m.LikeCount,
		"retweets":    m.RetweetCount,
		"replies":     m.ReplyCount,
		"quotes":      m.QuoteCount,
		"impressions": m.ImpressionCount,
	}, nil
}

func (s *twitterService) uploadMedia(ctx context.Context, client *http.Client, content Content) (string, error) {
	src, declared := content.ImageURL, models.MediaKindImage
	if content.VideoURL != "" {
		src, declared = content.VideoURL, models.MediaKindVideo
	}

	file, err := s.media.Fetch(ctx, src, declared)
	if err != nil {
		return "", err
	}
	defer file.Body.Close()

	if file.Kind == models.MediaKindVideo {
		return s.uploadChunked(ctx, client, file)
	}
	return s.uploadSimple(ctx, client, file)
}

func (s *twitterService) uploadSimple(ctx context.Context, client *http.Client, file *MediaFile) (string, error) {
	data, err := readAllLimited(file.Body, twitterImageLimit)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	upload, err := s.uploadMultipart(ctx, client, nil, data)
	if err != nil {
		return "", err
	}
	if upload.MediaIDString == "" {
		return "", errors.New("no media id returned from upload")
	}
	return upload.MediaIDString, nil
}

// uploadChunked runs the INIT, APPEND and FINALIZE sequence and waits for
// server-side processing when the upload reports it.
func (s *twitterService) uploadChunked(ctx context.Context, client *http.Client, file *MediaFile) (string, error) {
	size := file.Size
	var body io.Reader = file.Body
	if size < 0 {
		data, err := readAllLimited(file.Body, twitterVideoLimit)
		if err != nil {
			return "", fmt.Errorf("reading video: %w", err)
		}
		size, body = int64(len(data)), bytes.NewReader(data)
	}

	mediaType := file.ContentType
	if !strings.HasPrefix(mediaType, "video/") {
		mediaType = "video/mp4"
	}

	initResp, err := s.uploadForm(ctx, client, url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(size, 10)},
		"media_type":     {mediaType},
		"media_category": {"tweet_video"},
	})
	if err != nil {
		return "", fmt.Errorf("INIT: %w", err)
	}
	mediaID := initResp.MediaIDString
	if mediaID == "" {
		return "", errors.New("INIT: no media id returned")
	}

	chunk := make([]byte, twitterChunkSize)
	for segment := 0; ; segment++ {
		n, readErr := io.ReadFull(body, chunk)
		if n > 0 {
			fields := map[string]string{
				"command":       "APPEND",
				"media_id":      mediaID,
				"segment_index": strconv.Itoa(segment),
			}
			if _, err := s.uploadMultipart(ctx, client, fields, chunk[:n]); err != nil {
				return "", fmt.Errorf("APPEND segment %d: %w", segment, err)
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("reading video: %w", readErr)
		}
	}

	final, err := s.uploadForm(ctx, client, url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}})
	if err != nil {
		return "", fmt.Errorf("FINALIZE: %w", err)
	}

	if final.ProcessingInfo != nil {
		if err := s.awaitProcessing(ctx, client, mediaID, final.ProcessingInfo); err != nil {
			return "", err
		}
	}
	return mediaID, nil
}

func (s *twitterService) awaitProcessing(ctx context.Context, client *http.Client, mediaID string, info *transfer.TwitterProcessingInfo) error {
	for check := 0; check < s.checks; check++ {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			if info.Error != nil {
				return fmt.Errorf("media processing failed: %s", info.Error.Message)
			}
			return errors.New("media processing failed")
		}

		delay := time.Duration(info.CheckAfterSecs) * time.Second
		if delay <= 0 {
			delay = twitterDefaultStatus
		}
		if err := s.wait(ctx, delay); err != nil {
			return err
		}

		endpoint := fmt.Sprintf("%s/1.1/media/upload.json?command=STATUS&media_id=%s", s.cfg.UploadURL, url.QueryEscape(mediaID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		status, err := s.doUpload(client, req)
		if err != nil {
			return fmt.Errorf("STATUS: %w", err)
		}
		if status.ProcessingInfo == nil {
			return nil
		}
		info = status.ProcessingInfo
	}
	return fmt.Errorf("media %s still processing after %d status checks", mediaID, s.checks)
}

func (s *twitterService) uploadForm(ctx context.Context, client *http.Client, form url.Values) (*transfer.TwitterMediaUpload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UploadURL+"/1.1/media/upload.json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.doUpload(client, req)
}

func (s *twitterService) uploadMultipart(ctx context.Context, client *http.Client, fields map[string]string, data []byte) (*transfer.TwitterMediaUpload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := w.CreateFormFile("media", "media")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UploadURL+"/1.1/media/upload.json", &buf)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.doUpload(client, req)
}

func (s *twitterService) doUpload(client *http.Client, req *http.Request) (*transfer.TwitterMediaUpload, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(models.PlatformTwitter, resp, twitterMessage)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// APPEND answers with an empty body.
	var upload transfer.TwitterMediaUpload
	if len(bytes.TrimSpace(body)) == 0 {
		return &upload, nil
	}
	if err := json.Unmarshal(body, &upload); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if upload.MediaIDString == "" && upload.MediaID != 0 {
		upload.MediaIDString = strconv.FormatInt(upload.MediaID, 10)
	}
	return &upload, nil
}

func twitterMessage(body []byte) string {
	var e transfer.TwitterErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.Detail != "":
		return e.Detail
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	}
	return e.Title
}
