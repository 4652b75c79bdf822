package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type linkedinService struct {
	cfg    config.LinkedIn
	client *http.Client
}

func NewLinkedInService(cfg config.LinkedIn, client *http.Client) PlatformAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &linkedinService{cfg: cfg, client: client}
}

func (s *linkedinService) Platform() models.Platform { return models.PlatformLinkedIn }

func (s *linkedinService) Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error) {
	if acc == nil || acc.AccessToken == "" || acc.PlatformAccountID == "" {
		return nil, &AuthError{Platform: models.PlatformLinkedIn, Message: "access token and author urn are required"}
	}

	post := transfer.LinkedInPostRequest{
		Author:     authorURN(acc.PlatformAccountID),
		Commentary: content.Caption,
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []any{},
			ThirdPartyDistributionChannels: []any{},
		},
		LifecycleState: "PUBLISHED",
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := s.request(ctx, http.MethodPost, s.cfg.APIURL+"/rest/posts", acc, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(models.PlatformLinkedIn, resp, linkedinMessage)
	}

	urn := resp.Header.Get("x-restli-id")
	if urn == "" {
		return nil, &PlatformError{Platform: models.PlatformLinkedIn, StatusCode: resp.StatusCode, Message: "no post urn returned"}
	}

	return &PublishedItem{
		RemoteID: urn,
		URL:      "https://www.linkedin.com/feed/update/" + urn,
	}, nil
}

func (s *linkedinService) FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error) {
	if acc == nil || acc.AccessToken == "" {
		return nil, &AuthError{Platform: models.PlatformLinkedIn, Message: "access token is required"}
	}

	req, err := s.request(ctx, http.MethodGet, s.cfg.APIURL+"/rest/socialActions/"+url.QueryEscape(remoteID), acc, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(models.PlatformLinkedIn, resp, linkedinMessage)
	}

	var actions transfer.LinkedInSocialActions
	if err := json.NewDecoder(resp.Body).Decode(&actions); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	return map[string]int64{
		"likes":    actions.LikesSummary.TotalLikes,
		"comments": actions.CommentsSummary.AggregatedTotalComments,
	}, nil
}

func (s *linkedinService) request(ctx context.Context, method, endpoint string, acc *models.SocialAccount, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("LinkedIn-Version", s.cfg.APIVersion)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	return req, nil
}

// authorURN accepts either a bare member id or a full person/organization URN.
func authorURN(accountID string) string {
	if strings.HasPrefix(accountID, "urn:li:") {
		return accountID
	}
	return "urn:li:person:" + accountID
}

func linkedinMessage(body []byte) string {
	var e transfer.LinkedInErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}
