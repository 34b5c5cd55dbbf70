package services

import (
	"context"
	"fmt"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/providers"
)

// CredentialManager holds per-account access/refresh credentials and
// refreshes them proactively before use.
type CredentialManager struct {
	accountRepo *repositories.AccountRepo
	provider    providers.ActivityProvider
	margin      time.Duration
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(accountRepo *repositories.AccountRepo, provider providers.ActivityProvider) *CredentialManager {
	return &CredentialManager{
		accountRepo: accountRepo,
		provider:    provider,
		margin:      constants.TokenRefreshMarginMinutes * time.Minute,
	}
}

// EnsureValid returns a usable access token for the account, refreshing
// the pair when the recorded expiry is within the safety margin. A
// refresh failure is fatal for the account: re-authorization is the only
// way out, so the caller must surface it rather than retry.
func (m *CredentialManager) EnsureValid(ctx context.Context, account *gorm.Account) (string, error) {
	if time.Until(account.TokenExpiresAt) > m.margin {
		return account.AccessToken, nil
	}

	logging.Info("Refreshing upstream credentials",
		"account_id", account.ID,
		"expires_at", account.TokenExpiresAt.Format(time.RFC3339),
	)

	pair, err := m.provider.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh credentials for account %s: %w", account.ID, err)
	}

	if err := m.accountRepo.UpdateTokens(ctx, account.ID, pair.AccessToken, pair.RefreshToken, pair.ExpiresAt); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	account.AccessToken = pair.AccessToken
	account.RefreshToken = pair.RefreshToken
	account.TokenExpiresAt = pair.ExpiresAt

	return pair.AccessToken, nil
}

// IsAuthError reports whether err means the account needs operator or
// owner re-authorization rather than a retry.
func IsAuthError(err error) bool {
	switch providers.ErrorCode(err) {
	case constants.ErrCodeInvalidToken,
		constants.ErrCodeTokenExpired,
		constants.ErrCodeRefreshFailed,
		constants.ErrCodeAuthenticationFailed:
		return true
	}
	return false
}
