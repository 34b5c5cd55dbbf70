package gorm

import (
	"time"
)

// SyncLog is an append-only progress entry tied to a SyncSession
type SyncLog struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string    `gorm:"column:session_id;type:uuid;not null;index"`
	Level     string    `gorm:"column:level;type:varchar(10);not null"`
	Message   string    `gorm:"column:message;type:text;not null"`
	Metadata  *string   `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

// TableName specifies the table name for GORM
func (SyncLog) TableName() string {
	return "sync_logs"
}
