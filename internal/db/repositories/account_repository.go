package repositories

import (
	"context"
	"fmt"
	"time"

	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
	"gruppetto/internal/models/gorm"
)

// AccountRepo handles accounts table operations
type AccountRepo struct {
	db *gormlib.DB
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *gormlib.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, account *gorm.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*gorm.Account, error) {
	var account gorm.Account

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&account).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

func (r *AccountRepo) GetByExternalID(ctx context.Context, externalID int64) (*gorm.Account, error) {
	var account gorm.Account

	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&account).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// List returns all accounts ordered by name
func (r *AccountRepo) List(ctx context.Context) ([]gorm.Account, error) {
	var accounts []gorm.Account
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&accounts).Error
	return accounts, err
}

// UpdateSyncStatus transitions the account's sync status, rejecting
// transitions outside the closed transition table.
func (r *AccountRepo) UpdateSyncStatus(ctx context.Context, id string, to constants.AccountSyncStatus) error {
	account, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account %s not found", id)
	}

	if account.SyncStatus != to && !constants.IsValidAccountTransition(account.SyncStatus, to) {
		return fmt.Errorf("illegal account status transition %s -> %s", account.SyncStatus, to)
	}

	updates := map[string]interface{}{
		"sync_status": to,
		"updated_at":  time.Now(),
	}

	// A terminal transition clears the stall marker, a successful one
	// clears the error text as well.
	if to == constants.AccountCompleted || to == constants.AccountInProgress {
		updates["stalled"] = false
	}
	if to == constants.AccountCompleted {
		updates["last_error"] = nil
		updates["last_sync_at"] = time.Now()
	}

	return r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetError marks the account as errored with an operator-visible message
func (r *AccountRepo) SetError(ctx context.Context, id string, msg string) error {
	return r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status": constants.AccountError,
			"last_error":  msg,
			"updated_at":  time.Now(),
		}).Error
}

// SetStalled flips the stall marker without touching the sync status, so
// a "stalled" warning stays distinguishable from a hard error.
func (r *AccountRepo) SetStalled(ctx context.Context, id string, stalled bool) error {
	return r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stalled":    stalled,
			"updated_at": time.Now(),
		}).Error
}

// UpdateTokens persists a refreshed credential pair
func (r *AccountRepo) UpdateTokens(ctx context.Context, id string, access, refresh string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":     access,
			"refresh_token":    refresh,
			"token_expires_at": expiresAt,
			"updated_at":       time.Now(),
		}).Error
}

// AddProcessedResults bumps the cumulative processed-record counter
func (r *AccountRepo) AddProcessedResults(ctx context.Context, id string, n int) error {
	return r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("id = ?", id).
		Update("total_results", gormlib.Expr("total_results + ?", n)).Error
}

// ResetStuck flips accounts stuck in_progress for longer than threshold
// back to idle. Returns the number of accounts reset.
func (r *AccountRepo) ResetStuck(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	res := r.db.WithContext(ctx).Model(&gorm.Account{}).
		Where("sync_status = ? AND updated_at < ?", constants.AccountInProgress, cutoff).
		Updates(map[string]interface{}{
			"sync_status": constants.AccountIdle,
			"stalled":     false,
			"updated_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

// Delete removes the account and everything it owns: results, sessions,
// their batches and log entries.
func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		var sessionIDs []string
		if err := tx.Model(&gorm.SyncSession{}).
			Where("account_id = ?", id).
			Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}

		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&gorm.SyncBatch{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&gorm.SyncLog{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("account_id = ?", id).Delete(&gorm.SyncSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&gorm.RaceResult{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&gorm.Account{}).Error
	})
}
