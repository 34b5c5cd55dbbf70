package repositories

import (
	"context"
	"fmt"
	"time"

	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
	"gruppetto/internal/models/gorm"
)

// BatchRepo handles sync_batches table operations, including the atomic
// claim that is the engine's only synchronization primitive.
type BatchRepo struct {
	db *gormlib.DB
}

// NewBatchRepo creates a new batch repository
func NewBatchRepo(db *gormlib.DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// Create inserts a new pending batch with the next free batch number for
// its session, unless one is supplied by the caller.
func (r *BatchRepo) Create(ctx context.Context, batch *gorm.SyncBatch) error {
	if batch.Status == "" {
		batch.Status = constants.BatchPending
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		if batch.BatchNumber == 0 {
			next, err := nextBatchNumber(tx, batch.SessionID)
			if err != nil {
				return err
			}
			batch.BatchNumber = next
		}
		return tx.Create(batch).Error
	})
}

func nextBatchNumber(tx *gormlib.DB, sessionID string) (int, error) {
	var max int
	err := tx.Model(&gorm.SyncBatch{}).
		Where("session_id = ?", sessionID).
		Select("COALESCE(MAX(batch_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// ClaimNext selects the oldest eligible pending batch of the given kind
// and transitions it to processing. Eligible excludes batches of
// cancelled sessions and sessions that already have a batch in flight.
// Returns nil when there is nothing to claim, including when the
// conditional update loses the race to a concurrent claimer; callers must
// not retry within the same invocation.
func (r *BatchRepo) ClaimNext(ctx context.Context, kind constants.BatchKind) (*gorm.SyncBatch, error) {
	var batch gorm.SyncBatch

	err := r.db.WithContext(ctx).
		Joins("JOIN sync_sessions ON sync_sessions.id = sync_batches.session_id").
		Where("sync_batches.status = ? AND sync_batches.kind = ?", constants.BatchPending, kind).
		Where("sync_sessions.cancelled = ?", false).
		Where("NOT EXISTS (?)", r.db.Model(&gorm.SyncBatch{}).
			Select("1").
			Where("sync_batches.session_id = sync_sessions.id AND sync_batches.status = ?", constants.BatchProcessing)).
		Order("sync_batches.created_at ASC, sync_batches.batch_number ASC").
		First(&batch).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	res := r.db.WithContext(ctx).Model(&gorm.SyncBatch{}).
		Where("id = ? AND status = ?", batch.ID, constants.BatchPending).
		Updates(map[string]interface{}{
			"status":     constants.BatchProcessing,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the claim race. Return empty-handed rather than loop.
		return nil, nil
	}

	batch.Status = constants.BatchProcessing
	batch.StartedAt = &now
	return &batch, nil
}

// Finish writes a terminal status for a claimed batch along with its
// counters and cursor. Illegal transitions are rejected.
func (r *BatchRepo) Finish(ctx context.Context, batch *gorm.SyncBatch, to constants.BatchStatus, errText *string) error {
	if !constants.IsValidBatchTransition(batch.Status, to) {
		return fmt.Errorf("illegal batch status transition %s -> %s", batch.Status, to)
	}

	now := time.Now()
	return r.db.WithContext(ctx).Model(&gorm.SyncBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]interface{}{
			"status":            to,
			"cursor_out":        batch.CursorOut,
			"items_fetched":     batch.ItemsFetched,
			"results_added":     batch.ResultsAdded,
			"results_removed":   batch.ResultsRemoved,
			"quota_window_used": batch.QuotaWindowUsed,
			"quota_daily_used":  batch.QuotaDailyUsed,
			"last_error":        errText,
			"finished_at":       now,
			"updated_at":        now,
		}).Error
}

// Release puts a claimed batch back to pending without recording a
// terminal status. Used when the rate budget defers the account. The
// counters accumulated before the deferral are persisted so work done
// up to that point stays accounted for.
func (r *BatchRepo) Release(ctx context.Context, batch *gorm.SyncBatch) error {
	return r.db.WithContext(ctx).Model(&gorm.SyncBatch{}).
		Where("id = ? AND status = ?", batch.ID, constants.BatchProcessing).
		Updates(map[string]interface{}{
			"status":            constants.BatchPending,
			"items_fetched":     batch.ItemsFetched,
			"results_added":     batch.ResultsAdded,
			"results_removed":   batch.ResultsRemoved,
			"quota_window_used": batch.QuotaWindowUsed,
			"quota_daily_used":  batch.QuotaDailyUsed,
			"started_at":        nil,
			"updated_at":        time.Now(),
		}).Error
}

// CountOpenForSession counts pending and processing batches for a session,
// optionally restricted to one kind.
func (r *BatchRepo) CountOpenForSession(ctx context.Context, sessionID string, kind *constants.BatchKind) (int64, error) {
	q := r.db.WithContext(ctx).Model(&gorm.SyncBatch{}).
		Where("session_id = ? AND status IN ?", sessionID,
			[]constants.BatchStatus{constants.BatchPending, constants.BatchProcessing})
	if kind != nil {
		q = q.Where("kind = ?", *kind)
	}

	var count int64
	err := q.Count(&count).Error
	return count, err
}

// ListForSession returns all batches of a session in batch-number order
func (r *BatchRepo) ListForSession(ctx context.Context, sessionID string) ([]gorm.SyncBatch, error) {
	var batches []gorm.SyncBatch
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("batch_number ASC").
		Find(&batches).Error
	return batches, err
}

// LastActivityForSession returns the most recent batch update time for a
// session, or nil when the session has no batches.
func (r *BatchRepo) LastActivityForSession(ctx context.Context, sessionID string) (*time.Time, error) {
	var batch gorm.SyncBatch
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("updated_at DESC").
		First(&batch).Error
	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &batch.UpdatedAt, nil
}
