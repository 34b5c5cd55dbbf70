package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ActivityProvider defines the upstream contract the sync engine depends
// on: a paginated list endpoint, a per-item detail endpoint, and a token
// refresh operation.
type ActivityProvider interface {
	// ListActivities fetches one page of the athlete's activities.
	// Exactly one of params.After / params.Before may be set.
	ListActivities(ctx context.Context, accessToken string, params ListParams) (*ActivityPage, error)

	// GetActivity fetches the detail payload for one activity
	GetActivity(ctx context.Context, accessToken string, id int64) (*ActivityDetail, error)

	// RefreshToken exchanges a refresh token for a new credential pair
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// ListParams controls pagination of the list endpoint
type ListParams struct {
	PageSize int
	After    *time.Time // forward cursor: items strictly after this instant
	Before   *time.Time // backward cursor: items strictly before this instant
}

// Validate rejects parameter combinations the upstream API refuses
func (p ListParams) Validate() error {
	if p.After != nil && p.Before != nil {
		return fmt.Errorf("after and before cursors are mutually exclusive")
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	return nil
}

// ActivitySummary is one item of the list payload
type ActivitySummary struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	SportType     string    `json:"sport_type"`
	WorkoutType   *int      `json:"workout_type"`
	Distance      float64   `json:"distance"`
	MovingTime    int       `json:"moving_time"`
	ElapsedTime   int       `json:"elapsed_time"`
	ElevationGain float64   `json:"total_elevation_gain"`
	StartDate     time.Time `json:"start_date"`
}

// ActivityPage is one page of the list endpoint plus the quota counters
// observed on the response.
type ActivityPage struct {
	Activities []ActivitySummary
	Quota      *QuotaUsage
}

// ActivityDetail is the enrichment payload of the detail endpoint
type ActivityDetail struct {
	ActivitySummary
	Description      string  `json:"description"`
	Calories         float64 `json:"calories"`
	AverageHeartrate float64 `json:"average_heartrate"`
	MaxHeartrate     float64 `json:"max_heartrate"`
	AverageCadence   float64 `json:"average_cadence"`
	GearID           string  `json:"gear_id"`
	Splits           []Split `json:"splits_metric"`
}

// Split is one per-kilometer split of the detail payload
type Split struct {
	Distance      float64 `json:"distance"`
	ElapsedTime   int     `json:"elapsed_time"`
	ElevationDiff float64 `json:"elevation_difference"`
	Split         int     `json:"split"`
}

// TokenPair is the result of a refresh exchange
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"-"`
}

// QuotaUsage mirrors the upstream rate-limit counters: a short rolling
// window and a daily ceiling.
type QuotaUsage struct {
	WindowUsed  int
	WindowLimit int
	DailyUsed   int
	DailyLimit  int
}

// ProviderError represents an upstream-specific error
type ProviderError struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the provider error code from err, or "" when err is
// not a ProviderError.
func ErrorCode(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
