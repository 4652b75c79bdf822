package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

type fakePostRepo struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	outcomes int
	statuses []models.PostStatus
	// strictCtx makes writes fail on a done context the way database/sql does.
	strictCtx bool
}

func (r *fakePostRepo) writable(ctx context.Context) error {
	if r.strictCtx {
		return ctx.Err()
	}
	return nil
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[string]*models.Post)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) get(id string) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posts[id]
}

func (r *fakePostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return r.get(id), nil
}

func (r *fakePostRepo) Create(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = post
	return nil
}

func (r *fakePostRepo) ClaimForPublish(ctx context.Context, postID string) (bool, error) {
	if err := r.writable(ctx); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok || p.Status == models.PostStatusPublishing {
		return false, nil
	}
	p.Status = models.PostStatusPublishing
	r.statuses = append(r.statuses, p.Status)
	return true, nil
}

func (r *fakePostRepo) SavePublishOutcome(ctx context.Context, postID string, outcome *models.PublishOutcome) error {
	if err := r.writable(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrPostNotFound
	}
	r.outcomes++
	p.Status = outcome.Status
	if p.PlatformPostIDs == nil {
		p.PlatformPostIDs = make(map[models.Platform]string)
	}
	for k, v := range outcome.PlatformPostIDs {
		p.PlatformPostIDs[k] = v
	}
	p.Errors = outcome.Errors
	if outcome.PublishedAt != nil {
		p.PublishedAt = outcome.PublishedAt
	}
	return nil
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, postID string, postErr models.PostError) error {
	if err := r.writable(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrPostNotFound
	}
	p.Status = models.PostStatusFailed
	p.Errors = []models.PostError{postErr}
	return nil
}

// MergeMetrics mirrors the store's jsonb "metrics || counters" update:
// same-key counters are overwritten and every other key is kept.
func (r *fakePostRepo) MergeMetrics(ctx context.Context, postID string, counters map[string]int64, syncedAt time.Time) error {
	if err := r.writable(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrPostNotFound
	}
	if p.Metrics == nil {
		p.Metrics = make(map[string]int64, len(counters))
	}
	for k, v := range counters {
		p.Metrics[k] = v
	}
	p.LastSyncedAt = &syncedAt
	return nil
}

func (r *fakePostRepo) sorted(keep func(*models.Post) bool, limit int) []*models.Post {
	var out []*models.Post
	for _, p := range r.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(p *models.Post) bool {
		return p.Status == models.PostStatusScheduled && p.ScheduledTime != nil && !p.ScheduledTime.After(now)
	}, limit), nil
}

func (r *fakePostRepo) ListWithRemoteID(ctx context.Context, userID string, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(p *models.Post) bool {
		return p.UserID == userID && len(p.PlatformPostIDs) > 0
	}, limit), nil
}

func (r *fakePostRepo) ListOwnersWithRemoteID(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var owners []string
	for _, p := range r.sorted(func(p *models.Post) bool { return len(p.PlatformPostIDs) > 0 }, 0) {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			owners = append(owners, p.UserID)
		}
	}
	return owners, nil
}

type fakeCredentialStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.SocialAccount
	refreshed []*models.SocialAccount
	gets      int
}

func newFakeCredentialStore(accounts ...*models.SocialAccount) *fakeCredentialStore {
	s := &fakeCredentialStore{accounts: make(map[string]*models.SocialAccount)}
	for _, a := range accounts {
		s.accounts[a.UserID+"/"+string(a.Platform)] = a
	}
	return s
}

func (s *fakeCredentialStore) Get(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	acc, ok := s.accounts[userID+"/"+string(platform)]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (s *fakeCredentialStore) Refresh(ctx context.Context, userID string, platform models.Platform, acc *models.SocialAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acc
	s.refreshed = append(s.refreshed, &cp)
	s.accounts[userID+"/"+string(platform)] = &cp
	return nil
}

func (s *fakeCredentialStore) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range s.accounts {
		if a.Platform == platform && a.TokenExpiresAt != nil && a.TokenExpiresAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeAdapter answers from canned functions and records what it was asked.
type fakeAdapter struct {
	platform models.Platform
	publish  func(content Content) (*PublishedItem, error)
	metrics  func(remoteID string) (map[string]int64, error)

	mu        sync.Mutex
	published []Content
	fetched   []string
}

func (a *fakeAdapter) Platform() models.Platform { return a.platform }

func (a *fakeAdapter) Publish(ctx context.Context, acc *models.SocialAccount, content Content) (*PublishedItem, error) {
	a.mu.Lock()
	a.published = append(a.published, content)
	a.mu.Unlock()
	return a.publish(content)
}

func (a *fakeAdapter) FetchMetrics(ctx context.Context, acc *models.SocialAccount, remoteID string) (map[string]int64, error) {
	a.mu.Lock()
	a.fetched = append(a.fetched, remoteID)
	a.mu.Unlock()
	return a.metrics(remoteID)
}

func (a *fakeAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.published)
}

func succeedWith(id string) func(Content) (*PublishedItem, error) {
	return func(Content) (*PublishedItem, error) { return &PublishedItem{RemoteID: id}, nil }
}

func failWith(err error) func(Content) (*PublishedItem, error) {
	return func(Content) (*PublishedItem, error) { return nil, err }
}

// fakeFetcher serves in-memory media keyed by URL.
type fakeFetcher struct {
	files map[string]fakeMedia
	err   error
}

type fakeMedia struct {
	kind        models.MediaKind
	contentType string
	data        string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, declared models.MediaKind) (*MediaFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.files[rawURL]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &MediaFile{
		Body:        io.NopCloser(strings.NewReader(m.data)),
		ContentType: m.contentType,
		Size:        int64(len(m.data)),
		Kind:        m.kind,
	}, nil
}

func account(userID string, platform models.Platform) *models.SocialAccount {
	return &models.SocialAccount{
		UserID:            userID,
		Platform:          platform,
		PlatformAccountID: "acct-" + string(platform),
		AccessToken:       "access-" + string(platform),
		RefreshToken:      "refresh-" + string(platform),
		TokenSecret:       "secret-" + string(platform),
	}
}
