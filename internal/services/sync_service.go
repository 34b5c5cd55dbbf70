package services

import (
	"context"
	"fmt"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/models/gorm"
)

// SyncService owns the session lifecycle: starting a sync run for an
// account and cooperatively stopping one. Batches do the actual work;
// this only materializes the first discovery batch of a chain.
type SyncService struct {
	accountRepo *repositories.AccountRepo
	sessionRepo *repositories.SessionRepo
	batchRepo   *repositories.BatchRepo
}

// NewSyncService creates a new sync service
func NewSyncService(
	accountRepo *repositories.AccountRepo,
	sessionRepo *repositories.SessionRepo,
	batchRepo *repositories.BatchRepo,
) *SyncService {
	return &SyncService{
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		batchRepo:   batchRepo,
	}
}

// ErrSyncInProgress is returned when a sync is requested for an account
// that already has one running.
var ErrSyncInProgress = fmt.Errorf("a sync is already in progress for this account")

// ErrNoActiveSession is returned when a stop is requested for an account
// with nothing running.
var ErrNoActiveSession = fmt.Errorf("no active sync session for this account")

// StartSession creates a session and its first discovery batch, and moves
// the account to in_progress.
func (s *SyncService) StartSession(ctx context.Context, accountID string, mode constants.SyncMode) (*gorm.SyncSession, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	if account.SyncStatus == constants.AccountInProgress {
		return nil, ErrSyncInProgress
	}

	session := &gorm.SyncSession{
		AccountID: account.ID,
		Mode:      mode,
	}

	// Incremental sessions resume from the last successful sync. An
	// account that has never synced starts from the epoch, so the forward
	// walk covers all history instead of just the newest unbounded page.
	// Full sessions start unbounded and walk backward.
	if mode == constants.SyncModeIncremental {
		cursor := time.Unix(0, 0).UTC()
		if account.LastSyncAt != nil {
			cursor = *account.LastSyncAt
		}
		session.Cursor = &cursor
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	batch := &gorm.SyncBatch{
		SessionID: session.ID,
		Kind:      constants.BatchKindDiscovery,
		CursorIn:  session.Cursor,
	}
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create first batch: %w", err)
	}

	if err := s.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountInProgress); err != nil {
		return nil, err
	}

	logging.Info("Sync session started",
		"session_id", session.ID,
		"account_id", account.ID,
		"mode", string(mode),
	)

	return session, nil
}

// StopForAccount cancels the account's active session. When the account
// is marked in_progress but no session has open batches left, it is
// returned to idle anyway so a stop always leaves a consistent state.
func (s *SyncService) StopForAccount(ctx context.Context, accountID string) (*gorm.SyncSession, error) {
	session, err := s.sessionRepo.ActiveForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		account, err := s.accountRepo.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if account != nil && account.SyncStatus == constants.AccountInProgress {
			if err := s.accountRepo.UpdateSyncStatus(ctx, accountID, constants.AccountIdle); err != nil {
				return nil, err
			}
		}
		return nil, ErrNoActiveSession
	}

	if err := s.StopSession(ctx, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// StopSession cancels a session: the session is marked cancelled, pending
// batches become cancelled, and the account returns to idle. A batch
// already processing finishes on its own.
func (s *SyncService) StopSession(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}

	if err := s.sessionRepo.Cancel(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	account, err := s.accountRepo.GetByID(ctx, session.AccountID)
	if err != nil {
		return err
	}
	if account != nil && account.SyncStatus == constants.AccountInProgress {
		if err := s.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountIdle); err != nil {
			return err
		}
	}

	logging.Info("Sync session stopped",
		"session_id", sessionID,
		"account_id", session.AccountID,
	)

	return nil
}
