package jobs

import (
	"context"
	"fmt"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/models/gorm"
)

// HealthMonitor is the reconciliation pass that guarantees forward
// progress independently of the processors' own continuation logic. It
// materializes enrichment batches a crashed processor failed to create,
// completes accounts whose work is actually done, and flags stalls.
type HealthMonitor struct {
	accountRepo *repositories.AccountRepo
	sessionRepo *repositories.SessionRepo
	batchRepo   *repositories.BatchRepo
	resultRepo  *repositories.RaceResultRepo
	logger      SessionLogger

	capacity       int
	stallThreshold time.Duration
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(
	accountRepo *repositories.AccountRepo,
	sessionRepo *repositories.SessionRepo,
	batchRepo *repositories.BatchRepo,
	resultRepo *repositories.RaceResultRepo,
	logger SessionLogger,
	capacity int,
) *HealthMonitor {
	if capacity <= 0 {
		capacity = constants.EnrichmentBatchCapacity
	}
	return &HealthMonitor{
		accountRepo:    accountRepo,
		sessionRepo:    sessionRepo,
		batchRepo:      batchRepo,
		resultRepo:     resultRepo,
		logger:         logger,
		capacity:       capacity,
		stallThreshold: constants.StallThresholdMinutes * time.Minute,
	}
}

// Run reconciles every in-progress account once. Errors on one account
// are logged and do not block reconciliation of the others.
func (m *HealthMonitor) Run(ctx context.Context) error {
	accounts, err := m.accountRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("health monitor failed to list accounts: %w", err)
	}

	for _, account := range accounts {
		if account.SyncStatus != constants.AccountInProgress {
			continue
		}
		if err := m.reconcileAccount(ctx, &account); err != nil {
			logging.Error("Health monitor reconciliation failed",
				"account_id", account.ID,
				"error", err.Error(),
			)
		}
	}

	return nil
}

func (m *HealthMonitor) reconcileAccount(ctx context.Context, account *gorm.Account) error {
	session, err := m.sessionRepo.LatestForAccount(ctx, account.ID)
	if err != nil {
		return err
	}
	if session == nil {
		// In progress with no session at all: nothing can ever finish
		// this account, so close it out.
		return m.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted)
	}

	outstanding, err := m.resultRepo.CountNeedingEnrichment(ctx, account.ID)
	if err != nil {
		return err
	}

	open, err := m.batchRepo.CountOpenForSession(ctx, session.ID, nil)
	if err != nil {
		return err
	}

	// Outstanding work with no batch to do it: materialize the missing
	// enrichment batches.
	if outstanding > 0 && open == 0 {
		needed := int(outstanding+int64(m.capacity)-1) / m.capacity
		for i := 0; i < needed; i++ {
			batch := &gorm.SyncBatch{
				SessionID: session.ID,
				Kind:      constants.BatchKindEnrichment,
			}
			if err := m.batchRepo.Create(ctx, batch); err != nil {
				return fmt.Errorf("failed to materialize enrichment batch: %w", err)
			}
		}
		logSession(ctx, m.logger, session.ID, constants.LogLevelWarn,
			fmt.Sprintf("Health monitor created %d enrichment batches for %d outstanding results", needed, outstanding), nil)
		return nil
	}

	// No outstanding work anywhere but the account still says in
	// progress: the completing processor crashed before the transition.
	if outstanding == 0 && open == 0 {
		logSession(ctx, m.logger, session.ID, constants.LogLevelInfo,
			"Health monitor marked the session complete", nil)
		return m.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted)
	}

	// Work exists but nothing has moved for a while: flag the stall for
	// the operator without killing anything. The next tick still gets
	// its chance to claim the pending batch.
	lastActivity, err := m.batchRepo.LastActivityForSession(ctx, session.ID)
	if err != nil {
		return err
	}
	if lastActivity != nil && time.Since(*lastActivity) > m.stallThreshold && !account.Stalled {
		logSession(ctx, m.logger, session.ID, constants.LogLevelWarn,
			fmt.Sprintf("No batch activity for %s, session looks stalled", time.Since(*lastActivity).Truncate(time.Second)), nil)
		return m.accountRepo.SetStalled(ctx, account.ID, true)
	}

	return nil
}
