package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// RaceResult represents one race activity discovered for an Account
type RaceResult struct {
	ID         string `gorm:"column:id;primaryKey;type:uuid"`
	AccountID  string `gorm:"column:account_id;type:uuid;not null;index"`
	ExternalID int64  `gorm:"column:external_id;uniqueIndex;not null"`

	// Core metrics from the list payload
	Name          string    `gorm:"column:name;type:varchar(255)"`
	SportType     string    `gorm:"column:sport_type;type:varchar(50)"`
	DistanceM     float64   `gorm:"column:distance_m;type:numeric(12,2)"`
	MovingTimeS   int       `gorm:"column:moving_time_s"`
	ElapsedTimeS  int       `gorm:"column:elapsed_time_s"`
	ElevationGain float64   `gorm:"column:elevation_gain;type:numeric(10,2)"`
	StartedAt     time.Time `gorm:"column:started_at;index"`

	// User-assigned label, preserved across full resyncs
	UserLabel *string `gorm:"column:user_label;type:varchar(100)"`

	// Enrichment state
	NeedsEnrichment bool    `gorm:"column:needs_enrichment;not null;default:false;index"`
	Enrichment      *string `gorm:"column:enrichment;type:jsonb"`

	// Timestamps
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (RaceResult) TableName() string {
	return "race_results"
}

// BeforeCreate assigns a UUID primary key
func (r *RaceResult) BeforeCreate(tx *gormlib.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
