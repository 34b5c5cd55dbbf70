package requests

import "time"

// StartSyncRequest selects the mode for a new sync session. Mode must be
// "incremental" or "full"; an empty body defaults to incremental.
type StartSyncRequest struct {
	Mode string `json:"mode"`
}

// CreateAccountRequest registers an upstream athlete for syncing.
type CreateAccountRequest struct {
	ExternalID     int64     `json:"external_id"`
	Name           string    `json:"name"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// ResetStuckRequest overrides the default stuck-account threshold.
type ResetStuckRequest struct {
	ThresholdMinutes int `json:"threshold_minutes"`
}
