package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"

	"gruppetto/internal/constants"
)

// Account represents one upstream athlete identity authorized for syncing
type Account struct {
	ID         string `gorm:"column:id;primaryKey;type:uuid"`
	ExternalID int64  `gorm:"column:external_id;uniqueIndex;not null"`
	Name       string `gorm:"column:name;type:varchar(100)"`

	// OAuth credential pair
	AccessToken    string    `gorm:"column:access_token;type:text"`
	RefreshToken   string    `gorm:"column:refresh_token;type:text"`
	TokenExpiresAt time.Time `gorm:"column:token_expires_at"`

	// Sync state
	SyncStatus constants.AccountSyncStatus `gorm:"column:sync_status;type:varchar(20);not null;default:idle"`
	Stalled    bool                        `gorm:"column:stalled;not null;default:false"`
	LastError  *string                     `gorm:"column:last_error;type:text"`
	LastSyncAt *time.Time                  `gorm:"column:last_sync_at"`

	// Cumulative processed-record count across all sessions
	TotalResults int `gorm:"column:total_results;not null;default:0"`

	// Timestamps
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate assigns a UUID primary key
func (a *Account) BeforeCreate(tx *gormlib.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
