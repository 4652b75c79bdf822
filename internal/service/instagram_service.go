package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type containerState string

const (
	stateCreating   containerState = "CREATING"
	stateInProgress containerState = "IN_PROGRESS"
	stateFinished   containerState = "FINISHED"
	stateError      containerState = "ERROR"
	stateTimedOut   containerState = "TIMED_OUT"
	statePublished  containerState = "PUBLISHED"
)

// Graph API error codes that mean the caller is being throttled.
var instagramRateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

const instagramInvalidToken = 190

type instagramService struct {
	graphURL string
	client   *http.Client
	interval time.Duration
	attempts int
	wait     waitFunc
}

func NewInstagramService(cfg config.Instagram, client *http.Client) PlatformAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramService{
		graphURL: cfg.GraphURL,
		client:   client,
		interval: cfg.PollInterval,
		attempts: cfg.PollAttempts,
		wait:     sleepCtx,
	}
}

func (s *instagramService) Platform() models.Platform { return models.PlatformInstagram }

// instagramRun is one pass through the container state machine.
type instagramRun struct {
	state       containerState
	containerID string
	polls       int
	lastStatus  string
	mediaID     string
}

func (s *instagramService) Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error) {
	if acc == nil || acc.AccessToken == "" || acc.PlatformAccountID == "" {
		return nil, &AuthError{Platform: models.PlatformInstagram, Message: "access token and account id are required"}
	}
	if !content.HasMedia() {
		return nil, newValidationError("media", "instagram requires an image or a video")
	}

	// The poll ceiling is the only bound on a publish; a created container
	// is always driven to a terminal state.
	ctx = context.WithoutCancel(ctx)

	run := &instagramRun{state: stateCreating}
	for {
		var err error
		switch run.state {
		case stateCreating:
			err = s.createContainer(ctx, acc, content, run)
		case stateInProgress:
			err = s.pollContainer(ctx, acc, run)
		case stateFinished:
			err = s.publishContainer(ctx, acc, run)
		case stateError:
			return nil, &PlatformError{
				Platform: models.PlatformInstagram,
				Message:  fmt.Sprintf("container %s failed processing: %s", run.containerID, run.lastStatus),
			}
		case stateTimedOut:
			slog.Warn("instagram container still processing", "container_id", run.containerID, "polls", run.polls)
			return nil, &TimeoutError{Platform: models.PlatformInstagram, ContainerID: run.containerID, Attempts: run.polls}
		case statePublished:
			return &PublishedItem{RemoteID: run.mediaID}, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *instagramService) createContainer(ctx context.Context, acc *models.SocialAccount, content Content, run *instagramRun) error {
	payload := map[string]any{
		"caption":      content.Caption,
		"access_token": acc.AccessToken,
	}
	if content.VideoURL != "" {
		payload["video_url"] = content.VideoURL
		payload["media_type"] = "REELS"
	} else {
		payload["image_url"] = content.ImageURL
	}

	var container transfer.InstagramContainer
	endpoint := fmt.Sprintf("%s/%s/media", s.graphURL, url.PathEscape(acc.PlatformAccountID))
	if err := s.do(ctx, http.MethodPost, endpoint, payload, &container); err != nil {
		return err
	}
	if container.ID == "" {
		return &PlatformError{Platform: models.PlatformInstagram, Message: "no container id returned"}
	}

	run.containerID = container.ID
	run.state = stateInProgress
	return nil
}

// pollContainer waits one interval and checks the container once. After the
// last allowed check the run moves to TIMED_OUT.
func (s *instagramService) pollContainer(ctx context.Context, acc *models.SocialAccount, run *instagramRun) error {
	if run.polls >= s.attempts {
		run.state = stateTimedOut
		return nil
	}

	if err := s.wait(ctx, s.interval); err != nil {
		return err
	}
	run.polls++

	q := url.Values{"fields": {"status_code,status"}, "access_token": {acc.AccessToken}}
	endpoint := fmt.Sprintf("%s/%s?%s", s.graphURL, url.PathEscape(run.containerID), q.Encode())

	var status transfer.InstagramContainerStatus
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return err
	}

	run.lastStatus = status.StatusCode
	if status.Status != "" {
		run.lastStatus = status.StatusCode + ": " + status.Status
	}

	switch containerState(status.StatusCode) {
	case stateFinished, statePublished:
		run.state = stateFinished
	case stateError, "EXPIRED":
		run.state = stateError
	}
	return nil
}

func (s *instagramService) publishContainer(ctx context.Context, acc *models.SocialAccount, run *instagramRun) error {
	payload := map[string]string{
		"creation_id":  run.containerID,
		"access_token": acc.AccessToken,
	}

	var published transfer.InstagramContainer
	endpoint := fmt.Sprintf("%s/%s/media_publish", s.graphURL, url.PathEscape(acc.PlatformAccountID))
	if err := s.do(ctx, http.MethodPost, endpoint, payload, &published); err != nil {
		return err
	}
	if published.ID == "" {
		return &PlatformError{Platform: models.PlatformInstagram, Message: "no media id returned from publish"}
	}

	run.mediaID = published.ID
	run.state = statePublished
	return nil
}

func (s *instagramService) FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error) {
	if acc == nil || acc.AccessToken == "" {
		return nil, &AuthError{Platform: models.PlatformInstagram, Message: "access token is required"}
	}

	q := url.Values{"fields": {"like_count,comments_count"}, "access_token": {acc.AccessToken}}
	endpoint := fmt.Sprintf("%s/%s?%s", s.graphURL, url.PathEscape(remoteID), q.Encode())

	var insights transfer.InstagramMediaInsights
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &insights); err != nil {
		return nil, err
	}

	return map[string]int64{
		"likes":    insights.LikeCount,
		"comments": insights.CommentsCount,
	}, nil
}

func (s *instagramService) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshalling payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return instagramError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func instagramError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var graphErr transfer.InstagramErrorResponse
	_ = json.Unmarshal(body, &graphErr)
	code, msg := graphErr.Error.Code, graphErr.Error.Message
	if graphErr.Error.ErrorUserMsg != "" {
		msg = graphErr.Error.ErrorUserMsg
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || instagramRateLimitCodes[code]:
		return &RateLimitError{Platform: models.PlatformInstagram, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || code == instagramInvalidToken:
		return &AuthError{Platform: models.PlatformInstagram, Message: msg, NeedsReauth: true}
	}
	return &PlatformError{Platform: models.PlatformInstagram, StatusCode: resp.StatusCode, Message: msg, Payload: body}
}
