package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

// CredentialStore hands out decrypted platform credentials. Get returns
// nil, nil when the owner has not connected the platform.
type CredentialStore interface {
	Get(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error)
	Refresh(ctx context.Context, userID string, platform models.Platform, acc *models.SocialAccount) error
	ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error)
}

type credentialStore struct {
	sa     repository.SocialAccountRepository
	cipher *utils.TokenCipher
}

func NewCredentialStore(sa repository.SocialAccountRepository, cipher *utils.TokenCipher) CredentialStore {
	return &credentialStore{sa: sa, cipher: cipher}
}

func (s *credentialStore) Get(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	acc, err := s.sa.GetByPlatform(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("loading %s credential: %w", platform, err)
	}
	if acc == nil {
		return nil, nil
	}
	if err := s.decrypt(acc); err != nil {
		return nil, fmt.Errorf("decrypting %s credential: %w", platform, err)
	}
	return acc, nil
}

func (s *credentialStore) Refresh(ctx context.Context, userID string, platform models.Platform, acc *models.SocialAccount) error {
	sealed := &models.SocialAccount{TokenExpiresAt: acc.TokenExpiresAt}

	var err error
	if sealed.AccessToken, err = s.cipher.Encrypt(acc.AccessToken); err != nil {
		return err
	}
	if sealed.RefreshToken, err = s.cipher.Encrypt(acc.RefreshToken); err != nil {
		return err
	}

	if err := s.sa.SetToken(ctx, userID, platform, sealed); err != nil {
		return fmt.Errorf("saving refreshed %s token: %w", platform, err)
	}
	return nil
}

func (s *credentialStore) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListExpiring(ctx, platform, before)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if err := s.decrypt(acc); err != nil {
			return nil, fmt.Errorf("decrypting %s credential for %s: %w", platform, acc.UserID, err)
		}
	}
	return accounts, nil
}

func (s *credentialStore) decrypt(acc *models.SocialAccount) error {
	var err error
	if acc.AccessToken, err = s.cipher.Decrypt(acc.AccessToken); err != nil {
		return err
	}
	if acc.RefreshToken, err = s.cipher.Decrypt(acc.RefreshToken); err != nil {
		return err
	}
	if acc.TokenSecret, err = s.cipher.Decrypt(acc.TokenSecret); err != nil {
		return err
	}
	return nil
}
