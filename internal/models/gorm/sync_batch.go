package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
)

// SyncBatch is one atomic, independently schedulable unit of sync work
type SyncBatch struct {
	ID          string                `gorm:"column:id;primaryKey;type:uuid"`
	SessionID   string                `gorm:"column:session_id;type:uuid;not null;uniqueIndex:idx_session_batch_number,priority:1"`
	BatchNumber int                   `gorm:"column:batch_number;not null;uniqueIndex:idx_session_batch_number,priority:2"`
	Kind        constants.BatchKind   `gorm:"column:kind;type:varchar(20);not null;index"`
	Status      constants.BatchStatus `gorm:"column:status;type:varchar(20);not null;default:pending;index"`

	// Pagination position going in and coming out of this batch
	CursorIn  *time.Time `gorm:"column:cursor_in"`
	CursorOut *time.Time `gorm:"column:cursor_out"`

	// Result counters
	ItemsFetched   int `gorm:"column:items_fetched;not null;default:0"`
	ResultsAdded   int `gorm:"column:results_added;not null;default:0"`
	ResultsRemoved int `gorm:"column:results_removed;not null;default:0"`

	// Rate-limit counters observed on the last upstream response
	QuotaWindowUsed int `gorm:"column:quota_window_used;not null;default:0"`
	QuotaDailyUsed  int `gorm:"column:quota_daily_used;not null;default:0"`

	StartedAt  *time.Time `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
	LastError  *string    `gorm:"column:last_error;type:text"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncBatch) TableName() string {
	return "sync_batches"
}

// BeforeCreate assigns a UUID primary key
func (b *SyncBatch) BeforeCreate(tx *gormlib.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
