package entities

import "time"

// SyncLogEntry is the sqlx row shape for sync_logs
type SyncLogEntry struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	Level     string    `db:"level"`
	Message   string    `db:"message"`
	Metadata  *string   `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

// SessionProgress is an aggregate row describing one session's counters,
// used by the operator account listing.
type SessionProgress struct {
	SessionID      string  `db:"session_id"`
	Batches        int     `db:"batches"`
	OpenBatches    int     `db:"open_batches"`
	ItemsFetched   int     `db:"items_fetched"`
	ResultsAdded   int     `db:"results_added"`
	ResultsRemoved int     `db:"results_removed"`
	LastError      *string `db:"last_error"`
}
