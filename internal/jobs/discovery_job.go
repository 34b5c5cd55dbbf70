package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/providers"
	"gruppetto/internal/services"
)

// DiscoveryJob converts one page-walk of the upstream list endpoint into
// persisted race results and decides continuation. Each run handles
// exactly one claimed batch; continuation happens by creating the next
// batch, never by looping in memory.
type DiscoveryJob struct {
	accountRepo *repositories.AccountRepo
	sessionRepo *repositories.SessionRepo
	batchRepo   *repositories.BatchRepo
	resultRepo  *repositories.RaceResultRepo
	credentials *services.CredentialManager
	budget      *services.RateBudgetTracker
	provider    providers.ActivityProvider
	logger      SessionLogger

	pageSize int
	maxPages int
}

// NewDiscoveryJob creates a new discovery processor
func NewDiscoveryJob(
	accountRepo *repositories.AccountRepo,
	sessionRepo *repositories.SessionRepo,
	batchRepo *repositories.BatchRepo,
	resultRepo *repositories.RaceResultRepo,
	credentials *services.CredentialManager,
	budget *services.RateBudgetTracker,
	provider providers.ActivityProvider,
	logger SessionLogger,
	pageSize int,
	maxPages int,
) *DiscoveryJob {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = constants.MaxPagesPerBatch
	}
	return &DiscoveryJob{
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		batchRepo:   batchRepo,
		resultRepo:  resultRepo,
		credentials: credentials,
		budget:      budget,
		provider:    provider,
		logger:      logger,
		pageSize:    pageSize,
		maxPages:    maxPages,
	}
}

// Process runs one claimed discovery batch to completion, to its page
// budget, or to the invocation deadline. It always writes a terminal
// batch status except when the batch is released back to pending for a
// deferred retry.
func (j *DiscoveryJob) Process(ctx context.Context, batch *gorm.SyncBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("discovery batch panicked: %v", r)
			j.failBatch(ctx, batch, "", err)
		}
	}()

	session, err := j.sessionRepo.GetByID(ctx, batch.SessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return j.failBatch(ctx, batch, "", fmt.Errorf("session %s not found", batch.SessionID))
	}

	if session.Cancelled {
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo, "Batch cancelled before processing", nil)
		return j.batchRepo.Finish(ctx, batch, constants.BatchCancelled, nil)
	}

	account, err := j.accountRepo.GetByID(ctx, session.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return j.failBatch(ctx, batch, session.ID, fmt.Errorf("account %s not found", session.AccountID))
	}

	token, err := j.credentials.EnsureValid(ctx, account)
	if err != nil {
		// Credential failures are fatal for the account: surface and stop.
		j.accountRepo.SetError(ctx, account.ID, err.Error())
		return j.failBatch(ctx, batch, session.ID, err)
	}

	if !j.budget.CanProceed(1) {
		logSession(ctx, j.logger, session.ID, constants.LogLevelWarn,
			"Deferring discovery batch: rate budget exhausted", nil)
		return j.batchRepo.Release(ctx, batch)
	}

	labels, err := j.preservedLabels(session)
	if err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}

	cursor := batch.CursorIn
	moreData := false

	for page := 0; page < j.maxPages; page++ {
		params := providers.ListParams{PageSize: j.pageSize}
		if session.Mode == constants.SyncModeFull {
			params.Before = cursor
		} else {
			params.After = cursor
		}

		result, listErr := j.provider.ListActivities(ctx, token, params)
		if listErr != nil {
			return j.handleFetchError(ctx, batch, session, account, listErr)
		}

		j.budget.Record(result.Quota)
		if result.Quota != nil {
			batch.QuotaWindowUsed = result.Quota.WindowUsed
			batch.QuotaDailyUsed = result.Quota.DailyUsed
		}
		batch.ItemsFetched += len(result.Activities)

		// A full resync must end up reflecting exactly what exists
		// upstream, so the very first page of the session wipes the
		// slate, after capturing labels worth preserving.
		if session.Mode == constants.SyncModeFull && batch.BatchNumber == 1 && page == 0 {
			if captureErr := j.captureLabels(ctx, session, account.ID, &labels); captureErr != nil {
				return j.failBatch(ctx, batch, session.ID, captureErr)
			}
			removed, delErr := j.resultRepo.DeleteAllForAccount(ctx, account.ID)
			if delErr != nil {
				return j.failBatch(ctx, batch, session.ID, delErr)
			}
			batch.ResultsRemoved += int(removed)
		}

		for _, item := range result.Activities {
			started := item.StartDate
			cursor = &started

			if !isRaceActivity(item) {
				continue
			}

			record := mapSummary(account.ID, item)
			if label, ok := labels[item.ID]; ok {
				record.UserLabel = &label
			}

			if upsertErr := j.resultRepo.Upsert(ctx, record); upsertErr != nil {
				return j.failBatch(ctx, batch, session.ID, fmt.Errorf("failed to upsert result %d: %w", item.ID, upsertErr))
			}
			batch.ResultsAdded++
		}

		// A short page is the sole termination signal; the upstream API
		// does not guarantee a total count.
		if len(result.Activities) < j.pageSize {
			moreData = false
			break
		}
		moreData = true

		if !j.budget.CanProceed(1) {
			break
		}
		if deadlineNear(ctx) {
			logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
				"Stopping page walk at the invocation time budget", nil)
			break
		}
	}

	batch.CursorOut = cursor
	if err := j.sessionRepo.UpdateCursor(ctx, session.ID, cursor); err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}

	// A stop request may have landed while pages were fetched. Re-read
	// before deciding continuation: a cancelled session gets no successor.
	cancelled, err := j.sessionCancelled(ctx, session.ID)
	if err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}
	if cancelled {
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
			"Session cancelled mid-batch, stopping without a successor", nil)
		return j.batchRepo.Finish(ctx, batch, constants.BatchCancelled, nil)
	}

	if moreData {
		next := &gorm.SyncBatch{
			SessionID: session.ID,
			Kind:      constants.BatchKindDiscovery,
			CursorIn:  cursor,
		}
		if err := j.batchRepo.Create(ctx, next); err != nil {
			return j.failBatch(ctx, batch, session.ID, fmt.Errorf("failed to create continuation batch: %w", err))
		}
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
			fmt.Sprintf("Discovery continues in batch %d", next.BatchNumber),
			map[string]interface{}{"items_fetched": batch.ItemsFetched, "results_added": batch.ResultsAdded})
	} else {
		if err := j.finishDiscovery(ctx, session, account, batch); err != nil {
			return j.failBatch(ctx, batch, session.ID, err)
		}
	}

	if batch.ResultsAdded > 0 {
		if err := j.accountRepo.AddProcessedResults(ctx, account.ID, batch.ResultsAdded); err != nil {
			logging.Warn("Failed to bump processed-result counter",
				"account_id", account.ID, "error", err.Error())
		}
	}

	return j.batchRepo.Finish(ctx, batch, constants.BatchCompleted, nil)
}

// sessionCancelled re-reads the session's cancelled flag
func (j *DiscoveryJob) sessionCancelled(ctx context.Context, sessionID string) (bool, error) {
	current, err := j.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, fmt.Errorf("session %s disappeared mid-batch", sessionID)
	}
	return current.Cancelled, nil
}

// finishDiscovery closes out the discovery phase: hand over to enrichment
// when flagged results remain, otherwise the whole session is done.
func (j *DiscoveryJob) finishDiscovery(ctx context.Context, session *gorm.SyncSession, account *gorm.Account, batch *gorm.SyncBatch) error {
	outstanding, err := j.resultRepo.CountNeedingEnrichment(ctx, account.ID)
	if err != nil {
		return err
	}

	if outstanding > 0 {
		next := &gorm.SyncBatch{
			SessionID: session.ID,
			Kind:      constants.BatchKindEnrichment,
		}
		if err := j.batchRepo.Create(ctx, next); err != nil {
			return fmt.Errorf("failed to create enrichment batch: %w", err)
		}
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
			fmt.Sprintf("Discovery finished, %d results queued for enrichment", outstanding), nil)
		return nil
	}

	if err := j.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted); err != nil {
		return err
	}
	logSession(ctx, j.logger, session.ID, constants.LogLevelInfo, "Sync session completed", nil)
	return nil
}

// handleFetchError sorts an upstream failure into the retry taxonomy:
// rate-limit and transient errors leave the batch pending for the next
// tick, auth errors are fatal for the account, everything else fails the
// batch.
func (j *DiscoveryJob) handleFetchError(ctx context.Context, batch *gorm.SyncBatch, session *gorm.SyncSession, account *gorm.Account, err error) error {
	code := providers.ErrorCode(err)

	switch {
	case code == constants.ErrCodeRateLimited:
		logSession(ctx, j.logger, session.ID, constants.LogLevelWarn,
			"Upstream quota exceeded, leaving batch pending", nil)
		return j.batchRepo.Release(ctx, batch)

	case code == constants.ErrCodeNetworkError || code == constants.ErrCodeUpstreamError:
		logSession(ctx, j.logger, session.ID, constants.LogLevelWarn,
			fmt.Sprintf("Transient upstream error, retrying next tick: %v", err), nil)
		return j.batchRepo.Release(ctx, batch)

	case services.IsAuthError(err):
		j.accountRepo.SetError(ctx, account.ID, err.Error())
		return j.failBatch(ctx, batch, session.ID, err)

	default:
		j.accountRepo.SetError(ctx, account.ID, err.Error())
		return j.failBatch(ctx, batch, session.ID, err)
	}
}

func (j *DiscoveryJob) failBatch(ctx context.Context, batch *gorm.SyncBatch, sessionID string, cause error) error {
	msg := cause.Error()
	if sessionID != "" {
		logSession(ctx, j.logger, sessionID, constants.LogLevelError, msg, nil)
	}
	if finishErr := j.batchRepo.Finish(ctx, batch, constants.BatchFailed, &msg); finishErr != nil {
		logging.Error("Failed to mark batch failed",
			"batch_id", batch.ID, "error", finishErr.Error())
	}
	return cause
}

// captureLabels loads the account's current user-assigned labels into the
// in-memory map and persists them on the session, so later batches of the
// same full resync can still re-apply them.
func (j *DiscoveryJob) captureLabels(ctx context.Context, session *gorm.SyncSession, accountID string, labels *map[int64]string) error {
	existing, err := j.resultRepo.LabelsByExternalID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to capture labels: %w", err)
	}
	for id, label := range existing {
		(*labels)[id] = label
	}

	if len(*labels) == 0 {
		return nil
	}

	data, err := json.Marshal(*labels)
	if err != nil {
		return err
	}
	if err := j.sessionRepo.SetPreservedLabels(ctx, session.ID, string(data)); err != nil {
		return fmt.Errorf("failed to persist preserved labels: %w", err)
	}
	raw := string(data)
	session.PreservedLabels = &raw
	return nil
}

// preservedLabels loads labels stashed on the session by an earlier batch
func (j *DiscoveryJob) preservedLabels(session *gorm.SyncSession) (map[int64]string, error) {
	labels := make(map[int64]string)
	if session.PreservedLabels == nil {
		return labels, nil
	}
	if err := json.Unmarshal([]byte(*session.PreservedLabels), &labels); err != nil {
		return nil, fmt.Errorf("failed to decode preserved labels: %w", err)
	}
	return labels, nil
}

// isRaceActivity is the domain predicate: runs and rides explicitly
// flagged as races upstream.
func isRaceActivity(item providers.ActivitySummary) bool {
	if item.WorkoutType == nil {
		return false
	}
	return *item.WorkoutType == workoutTypeRunRace || *item.WorkoutType == workoutTypeRideRace
}

// Upstream workout_type values marking a race
const (
	workoutTypeRunRace  = 1
	workoutTypeRideRace = 11
)

// needsDetailFetch decides whether the list payload is enough or a detail
// fetch must fill in splits and heart-rate data. Running races carry
// per-kilometer splits only in the detail payload.
func needsDetailFetch(item providers.ActivitySummary) bool {
	return item.WorkoutType != nil && *item.WorkoutType == workoutTypeRunRace
}

func mapSummary(accountID string, item providers.ActivitySummary) *gorm.RaceResult {
	return &gorm.RaceResult{
		AccountID:       accountID,
		ExternalID:      item.ID,
		Name:            item.Name,
		SportType:       item.SportType,
		DistanceM:       item.Distance,
		MovingTimeS:     item.MovingTime,
		ElapsedTimeS:    item.ElapsedTime,
		ElevationGain:   item.ElevationGain,
		StartedAt:       item.StartDate,
		NeedsEnrichment: needsDetailFetch(item),
	}
}

// deadlineNear reports whether the invocation deadline is within the
// safety margin for another upstream round trip.
func deadlineNear(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < 5*time.Second
}
