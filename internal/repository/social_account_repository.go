package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type SocialAccountRepository interface {
	Create(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByPlatform(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error)
	ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error)
	SetToken(ctx context.Context, userID string, platform models.Platform, sa *models.SocialAccount) error
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, access_token,
	refresh_token, token_secret, token_expires_at, created_at, updated_at`

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	var expiresAt sql.NullTime
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.PlatformAccountID, &sa.AccountName,
		&sa.AccessToken, &sa.RefreshToken, &sa.TokenSecret, &expiresAt, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		sa.TokenExpiresAt = &expiresAt.Time
	}
	return &sa, nil
}

func (r *socialAccountRepository) Create(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	insertQuery := `
		INSERT INTO social_accounts(
			user_id,
			platform,
			account_id,
			account_name,
			access_token,
			refresh_token,
			token_secret,
			token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			account_name = EXCLUDED.account_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_secret = EXCLUDED.token_secret,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, insertQuery,
		sa.UserID,
		sa.Platform,
		sa.PlatformAccountID,
		sa.AccountName,
		sa.AccessToken,
		sa.RefreshToken,
		sa.TokenSecret,
		sa.TokenExpiresAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *socialAccountRepository) GetByPlatform(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 AND platform = $2`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE platform = $1 AND token_expires_at IS NOT NULL AND token_expires_at < $2`

	rows, err := r.db.QueryContext(ctx, query, platform, before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *socialAccountRepository) SetToken(ctx context.Context, userID string, platform models.Platform, sa *models.SocialAccount) error {
	updateTokenQuery := `
		UPDATE social_accounts
		SET
			access_token = COALESCE(NULLIF($3, ''), access_token),
			refresh_token = COALESCE(NULLIF($4, ''), refresh_token),
			token_expires_at = COALESCE($5, token_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2
	`
	result, err := r.db.ExecContext(ctx, updateTokenQuery, userID, platform, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; social account may not exist")
		return errors.New("no rows affected; social account may not exist")
	}
	return nil
}
