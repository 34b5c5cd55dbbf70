package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"gruppetto/internal/models/entities"
)

// SyncLogRepo appends and prunes session log entries. Kept on sqlx since
// the table is append-only and queried with fixed statements.
type SyncLogRepo struct {
	db *sqlx.DB
}

func NewSyncLogRepo(db *sqlx.DB) *SyncLogRepo {
	return &SyncLogRepo{
		db: db,
	}
}

func (svc SyncLogRepo) Append(
	ctx context.Context,
	entry *entities.SyncLogEntry) error {
	const query = `
		INSERT INTO sync_logs (session_id, level, message, metadata, created_at)
		VALUES (:session_id, :level, :message, :metadata, :created_at)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := svc.db.NamedExecContext(ctx, query, entry)
	return err
}

func (svc SyncLogRepo) ListBySession(
	ctx context.Context,
	sessionID string,
	limit int,
) ([]entities.SyncLogEntry, error) {
	const query = `
		SELECT id, session_id, level, message, metadata, created_at
		FROM sync_logs
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var entries []entities.SyncLogEntry
	if err := svc.db.SelectContext(ctx, &entries, query, sessionID, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

// PruneOlderThan deletes log entries past the retention window
func (svc SyncLogRepo) PruneOlderThan(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	const query = `
		DELETE FROM sync_logs
		WHERE created_at < $1
	`

	res, err := svc.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SessionProgress aggregates batch counters for one session
func (svc SyncLogRepo) SessionProgress(
	ctx context.Context,
	sessionID string,
) (*entities.SessionProgress, error) {
	const query = `
		SELECT
			session_id,
			COUNT(*) AS batches,
			COUNT(*) FILTER (WHERE status IN ('pending', 'processing')) AS open_batches,
			COALESCE(SUM(items_fetched), 0) AS items_fetched,
			COALESCE(SUM(results_added), 0) AS results_added,
			COALESCE(SUM(results_removed), 0) AS results_removed,
			MAX(last_error) AS last_error
		FROM sync_batches
		WHERE session_id = $1
		GROUP BY session_id
	`

	var rows []entities.SessionProgress
	if err := svc.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
