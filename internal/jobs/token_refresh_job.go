package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

// refreshWindow is how far ahead of expiry a YouTube token gets renewed.
const refreshWindow = 30 * time.Minute

type TokenRefreshJob struct {
	creds service.CredentialStore
	yt    service.YoutubeService
}

func NewTokenRefreshJob(creds service.CredentialStore, yt service.YoutubeService) *TokenRefreshJob {
	return &TokenRefreshJob{
		creds: creds,
		yt:    yt,
	}
}

// RefreshTokens renews every YouTube token that expires within the window.
// It returns how many refreshes succeeded.
func (c *TokenRefreshJob) RefreshTokens(ctx context.Context) int {
	accounts, err := c.creds.ListExpiring(ctx, models.PlatformYoutube, time.Now().Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.yt.RefreshToken(ctx, acc); err != nil {
				slog.Info("unable to refresh youtube token",
					"user_id", acc.UserID,
					"needs_reauth", service.NeedsReauth(err),
					"error", err)
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	return refreshed
}

func (c *TokenRefreshJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n := c.RefreshTokens(ctx)
	slog.Info("token refresh finished", "refreshed", n)
}
