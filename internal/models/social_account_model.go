package models

import (
	"time"
)

// SocialAccount is a user's connected platform account. Token fields hold
// ciphertext when read from the repository and plaintext once decrypted by
// the credential store.
type SocialAccount struct {
	ID                int64      `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	Platform          Platform   `db:"platform" json:"platform"`
	PlatformAccountID string     `db:"account_id" json:"account_id"`
	AccountName       string     `db:"account_name" json:"account_name"`
	AccessToken       string     `db:"access_token" json:"-"`
	RefreshToken      string     `db:"refresh_token" json:"-"`
	TokenSecret       string     `db:"token_secret" json:"-"`
	TokenExpiresAt    *time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *SocialAccount) Expired(now time.Time) bool {
	return a.TokenExpiresAt != nil && !a.TokenExpiresAt.After(now)
}
