package jobs

import (
	"context"
	"encoding/json"

	"gruppetto/internal/logging"
	"gruppetto/internal/models/entities"
)

// SessionLogger appends progress entries to a session's log. Satisfied by
// repositories.SyncLogRepo in production.
type SessionLogger interface {
	Append(ctx context.Context, entry *entities.SyncLogEntry) error
}

// logSession writes a log entry, dropping it with a warning when the log
// store itself fails; log writes must never fail a batch.
func logSession(ctx context.Context, logger SessionLogger, sessionID, level, message string, metadata map[string]interface{}) {
	if logger == nil {
		return
	}

	entry := &entities.SyncLogEntry{
		SessionID: sessionID,
		Level:     level,
		Message:   message,
	}

	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			raw := string(data)
			entry.Metadata = &raw
		}
	}

	if err := logger.Append(ctx, entry); err != nil {
		logging.Warn("Failed to append session log entry",
			"session_id", sessionID,
			"error", err.Error(),
		)
	}
}
