package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
)

// SyncSession groups all batches belonging to one logical sync run
type SyncSession struct {
	ID        string             `gorm:"column:id;primaryKey;type:uuid"`
	AccountID string             `gorm:"column:account_id;type:uuid;not null;index"`
	Mode      constants.SyncMode `gorm:"column:mode;type:varchar(20);not null"`

	// Cursor describing the current pagination position. Incremental
	// sessions walk forward from it, full sessions walk backward to it.
	Cursor *time.Time `gorm:"column:cursor"`

	// Labels captured before a full resync's destructive delete, keyed
	// by upstream id, re-applied as results are re-discovered.
	PreservedLabels *string `gorm:"column:preserved_labels;type:jsonb"`

	Cancelled bool `gorm:"column:cancelled;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncSession) TableName() string {
	return "sync_sessions"
}

// BeforeCreate assigns a UUID primary key
func (s *SyncSession) BeforeCreate(tx *gormlib.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
