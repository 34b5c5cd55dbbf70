package repositories

import (
	"context"
	"time"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gruppetto/internal/models/gorm"
)

// RaceResultRepo handles race_results table operations
type RaceResultRepo struct {
	db *gormlib.DB
}

// NewRaceResultRepo creates a new race result repository
func NewRaceResultRepo(db *gormlib.DB) *RaceResultRepo {
	return &RaceResultRepo{db: db}
}

// Upsert inserts or updates a result discovered upstream.
// ON CONFLICT (external_id) DO UPDATE. Re-processing the same upstream
// item is a no-op, never a duplicate insert.
func (r *RaceResultRepo) Upsert(ctx context.Context, result *gorm.RaceResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "external_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "sport_type", "distance_m", "moving_time_s",
				"elapsed_time_s", "elevation_gain", "started_at",
				"needs_enrichment", "updated_at",
			}),
		}).
		Create(result).Error
}

// FindByExternalID finds a result by account and upstream activity id
func (r *RaceResultRepo) FindByExternalID(ctx context.Context, accountID string, externalID int64) (*gorm.RaceResult, error) {
	var result gorm.RaceResult

	err := r.db.WithContext(ctx).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		First(&result).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &result, nil
}

// LabelsByExternalID captures the user-assigned labels currently stored
// for an account, keyed by upstream id. Used to re-apply labels across a
// destructive full resync.
func (r *RaceResultRepo) LabelsByExternalID(ctx context.Context, accountID string) (map[int64]string, error) {
	var rows []gorm.RaceResult
	err := r.db.WithContext(ctx).
		Select("external_id", "user_label").
		Where("account_id = ? AND user_label IS NOT NULL", accountID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	labels := make(map[int64]string, len(rows))
	for _, row := range rows {
		if row.UserLabel != nil {
			labels[row.ExternalID] = *row.UserLabel
		}
	}
	return labels, nil
}

// SetLabel writes a user-assigned label for one result
func (r *RaceResultRepo) SetLabel(ctx context.Context, accountID string, externalID int64, label string) error {
	return r.db.WithContext(ctx).Model(&gorm.RaceResult{}).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		Updates(map[string]interface{}{
			"user_label": label,
			"updated_at": time.Now(),
		}).Error
}

// DeleteAllForAccount bulk-deletes an account's results ahead of a full
// resync. Returns the number of rows removed.
func (r *RaceResultRepo) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&gorm.RaceResult{})
	return res.RowsAffected, res.Error
}

// ListNeedingEnrichment returns up to limit results flagged for a detail
// fetch, oldest activity first.
func (r *RaceResultRepo) ListNeedingEnrichment(ctx context.Context, accountID string, limit int) ([]gorm.RaceResult, error) {
	var results []gorm.RaceResult
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND needs_enrichment = ?", accountID, true).
		Order("started_at ASC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

// CountNeedingEnrichment counts results still flagged for enrichment
func (r *RaceResultRepo) CountNeedingEnrichment(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&gorm.RaceResult{}).
		Where("account_id = ? AND needs_enrichment = ?", accountID, true).
		Count(&count).Error
	return count, err
}

// SetEnrichment writes the enrichment payload and clears the flag
func (r *RaceResultRepo) SetEnrichment(ctx context.Context, id string, payload string) error {
	return r.db.WithContext(ctx).Model(&gorm.RaceResult{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enrichment":       payload,
			"needs_enrichment": false,
			"updated_at":       time.Now(),
		}).Error
}

// CountForAccount counts all results owned by the account
func (r *RaceResultRepo) CountForAccount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&gorm.RaceResult{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}
