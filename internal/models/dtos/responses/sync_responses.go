package responses

import "time"

// AccountSummary is one row of the operator account listing. Progress is
// populated from the latest session when one exists.
type AccountSummary struct {
	ID           string           `json:"id"`
	ExternalID   int64            `json:"external_id"`
	Name         string           `json:"name"`
	SyncStatus   string           `json:"sync_status"`
	Stalled      bool             `json:"stalled"`
	LastError    *string          `json:"last_error,omitempty"`
	LastSyncAt   *time.Time       `json:"last_sync_at,omitempty"`
	TotalResults int              `json:"total_results"`
	Session      *SessionProgress `json:"session,omitempty"`
}

type SessionProgress struct {
	SessionID      string     `json:"session_id"`
	Mode           string     `json:"mode"`
	Cancelled      bool       `json:"cancelled"`
	Cursor         *time.Time `json:"cursor,omitempty"`
	Batches        int        `json:"batches"`
	OpenBatches    int        `json:"open_batches"`
	ItemsFetched   int        `json:"items_fetched"`
	ResultsAdded   int        `json:"results_added"`
	ResultsRemoved int        `json:"results_removed"`
}

type AccountListResponse struct {
	Accounts []AccountSummary `json:"accounts"`
	Count    int              `json:"count"`
}

type SyncStartedResponse struct {
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
	Mode      string `json:"mode"`
}

type SyncStoppedResponse struct {
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
}

type SyncLogLine struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Metadata  *string   `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionLogsResponse struct {
	SessionID string        `json:"session_id"`
	Logs      []SyncLogLine `json:"logs"`
	Count     int           `json:"count"`
}

type ResetStuckResponse struct {
	ResetCount       int64 `json:"reset_count"`
	ThresholdMinutes int   `json:"threshold_minutes"`
}

type AccountDeletedResponse struct {
	AccountID string `json:"account_id"`
}

type AccountCreatedResponse struct {
	AccountID  string `json:"account_id"`
	ExternalID int64  `json:"external_id"`
}
