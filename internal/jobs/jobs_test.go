package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	service.CredentialStore
	accounts []*models.SocialAccount
	before   time.Time
}

func (f *fakeCreds) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error) {
	f.before = before
	return f.accounts, nil
}

type fakeYoutube struct {
	service.YoutubeService
	mu    sync.Mutex
	users []string
}

func (f *fakeYoutube) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, acc.UserID)
	if acc.RefreshToken == "revoked" {
		return &service.AuthError{Platform: models.PlatformYoutube, Message: "invalid_grant", NeedsReauth: true}
	}
	return nil
}

func TestRefreshTokensWaitsForAll(t *testing.T) {
	creds := &fakeCreds{accounts: []*models.SocialAccount{
		{UserID: "u1", RefreshToken: "r1"},
		{UserID: "u2", RefreshToken: "revoked"},
		{UserID: "u3", RefreshToken: "r3"},
	}}
	yt := &fakeYoutube{}

	n := NewTokenRefreshJob(creds, yt).RefreshTokens(context.Background())
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, yt.users)
	assert.WithinDuration(t, time.Now().Add(refreshWindow), creds.before, time.Minute)
}

type fakeTrigger struct {
	calls       int
	hasDeadline bool
}

func (f *fakeTrigger) Sweep(ctx context.Context) (*transfer.SweepResult, error) {
	f.calls++
	_, f.hasDeadline = ctx.Deadline()
	return &transfer.SweepResult{Processed: 1}, nil
}

func TestScheduleSweepJobRun(t *testing.T) {
	trigger := &fakeTrigger{}
	NewScheduleSweepJob(trigger).Run()
	assert.Equal(t, 1, trigger.calls)
	// A deadline would cut a publish off between claim and outcome.
	assert.False(t, trigger.hasDeadline)
}

type fakeOwners struct {
	owners []string
	err    error
}

func (f fakeOwners) ListOwnersWithRemoteID(ctx context.Context) ([]string, error) {
	return f.owners, f.err
}

func TestMetricsSyncJobEnqueuesEachOwner(t *testing.T) {
	var queued []string
	job := NewMetricsSyncJob(fakeOwners{owners: []string{"u1", "u2", "u3"}}, func(p queue.SyncMetricsPayload) error {
		if p.UserID == "u2" {
			return errors.New("redis unavailable")
		}
		queued = append(queued, p.UserID)
		return nil
	})

	n, err := job.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"u1", "u3"}, queued)
}

func TestMetricsSyncJobListFailure(t *testing.T) {
	job := NewMetricsSyncJob(fakeOwners{err: errors.New("db down")}, func(queue.SyncMetricsPayload) error {
		t.Fatal("nothing should be queued")
		return nil
	})

	_, err := job.EnqueueAll(context.Background())
	assert.Error(t, err)
}
