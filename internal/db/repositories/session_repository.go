package repositories

import (
	"context"
	"time"

	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
	"gruppetto/internal/models/gorm"
)

// SessionRepo handles sync_sessions table operations
type SessionRepo struct {
	db *gormlib.DB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *gormlib.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, session *gorm.SyncSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*gorm.SyncSession, error) {
	var session gorm.SyncSession

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// ActiveForAccount returns the account's most recent session that still
// has pending or processing batches, or nil.
func (r *SessionRepo) ActiveForAccount(ctx context.Context, accountID string) (*gorm.SyncSession, error) {
	var session gorm.SyncSession

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND cancelled = ?", accountID, false).
		Where("id IN (?)", r.db.Model(&gorm.SyncBatch{}).
			Select("session_id").
			Where("status IN ?", []constants.BatchStatus{constants.BatchPending, constants.BatchProcessing})).
		Order("created_at DESC").
		First(&session).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// LatestForAccount returns the newest non-cancelled session for the account, or nil
func (r *SessionRepo) LatestForAccount(ctx context.Context, accountID string) (*gorm.SyncSession, error) {
	var session gorm.SyncSession

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND cancelled = ?", accountID, false).
		Order("created_at DESC").
		First(&session).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// UpdateCursor persists the session's pagination position
func (r *SessionRepo) UpdateCursor(ctx context.Context, id string, cursor *time.Time) error {
	return r.db.WithContext(ctx).Model(&gorm.SyncSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cursor":     cursor,
			"updated_at": time.Now(),
		}).Error
}

// SetPreservedLabels stores the labels captured ahead of a full resync's
// destructive delete, as JSON keyed by upstream id.
func (r *SessionRepo) SetPreservedLabels(ctx context.Context, id string, labelsJSON string) error {
	return r.db.WithContext(ctx).Model(&gorm.SyncSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"preserved_labels": labelsJSON,
			"updated_at":       time.Now(),
		}).Error
}

// Cancel flips the session to cancelled and cancels all of its batches
// that are still pending. A batch already processing finishes naturally.
func (r *SessionRepo) Cancel(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		if err := tx.Model(&gorm.SyncSession{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"cancelled":  true,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		return tx.Model(&gorm.SyncBatch{}).
			Where("session_id = ? AND status = ?", id, constants.BatchPending).
			Updates(map[string]interface{}{
				"status":     constants.BatchCancelled,
				"updated_at": time.Now(),
			}).Error
	})
}
