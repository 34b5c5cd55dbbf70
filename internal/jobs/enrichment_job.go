package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/providers"
	"gruppetto/internal/services"
)

// EnrichmentJob fills in expensive per-result detail fields for results
// already known to exist, one detail fetch per result. Failures are
// isolated per result: a flagged result that fails stays flagged for a
// later attempt and never aborts the rest of the batch.
type EnrichmentJob struct {
	accountRepo *repositories.AccountRepo
	sessionRepo *repositories.SessionRepo
	batchRepo   *repositories.BatchRepo
	resultRepo  *repositories.RaceResultRepo
	credentials *services.CredentialManager
	budget      *services.RateBudgetTracker
	provider    providers.ActivityProvider
	logger      SessionLogger

	capacity    int
	concurrency int
}

// NewEnrichmentJob creates a new enrichment processor
func NewEnrichmentJob(
	accountRepo *repositories.AccountRepo,
	sessionRepo *repositories.SessionRepo,
	batchRepo *repositories.BatchRepo,
	resultRepo *repositories.RaceResultRepo,
	credentials *services.CredentialManager,
	budget *services.RateBudgetTracker,
	provider providers.ActivityProvider,
	logger SessionLogger,
	capacity int,
) *EnrichmentJob {
	if capacity <= 0 {
		capacity = constants.EnrichmentBatchCapacity
	}
	return &EnrichmentJob{
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		batchRepo:   batchRepo,
		resultRepo:  resultRepo,
		credentials: credentials,
		budget:      budget,
		provider:    provider,
		logger:      logger,
		capacity:    capacity,
		concurrency: 3,
	}
}

// Process runs one claimed enrichment batch
func (j *EnrichmentJob) Process(ctx context.Context, batch *gorm.SyncBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment batch panicked: %v", r)
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
		j.accountRepo.SetError(ctx, account.ID, err.Error())
		return j.failBatch(ctx, batch, session.ID, err)
	}

	pending, err := j.resultRepo.ListNeedingEnrichment(ctx, account.ID, j.capacity)
	if err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}

	if !j.budget.CanProceed(len(pending)) {
		logSession(ctx, j.logger, session.ID, constants.LogLevelWarn,
			"Deferring enrichment batch: rate budget exhausted", nil)
		return j.batchRepo.Release(ctx, batch)
	}

	var enriched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, result := range pending {
		result := result
		g.Go(func() error {
			if fetchErr := j.enrichOne(gctx, token, &result, batch); fetchErr != nil {
				failed.Add(1)
				// Auth and quota failures apply to the whole account,
				// not one result; stop the remaining fetches.
				code := providers.ErrorCode(fetchErr)
				if services.IsAuthError(fetchErr) || code == constants.ErrCodeRateLimited {
					return fetchErr
				}
				logSession(gctx, j.logger, session.ID, constants.LogLevelWarn,
					fmt.Sprintf("Failed to enrich result %d, keeping it flagged: %v", result.ExternalID, fetchErr), nil)
				return nil
			}
			enriched.Add(1)
			return nil
		})
	}

	groupErr := g.Wait()

	batch.ItemsFetched += int(enriched.Load() + failed.Load())
	batch.ResultsAdded += int(enriched.Load())

	if groupErr != nil {
		if providers.ErrorCode(groupErr) == constants.ErrCodeRateLimited {
			logSession(ctx, j.logger, session.ID, constants.LogLevelWarn,
				"Upstream quota exceeded during enrichment, leaving batch pending", nil)
			return j.batchRepo.Release(ctx, batch)
		}
		if services.IsAuthError(groupErr) {
			j.accountRepo.SetError(ctx, account.ID, groupErr.Error())
			return j.failBatch(ctx, batch, session.ID, groupErr)
		}
		return j.failBatch(ctx, batch, session.ID, groupErr)
	}

	// A stop request may have landed during the detail fetches. Re-read
	// before deciding continuation: a cancelled session gets no successor.
	current, err := j.sessionRepo.GetByID(ctx, session.ID)
	if err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}
	if current == nil || current.Cancelled {
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
			"Session cancelled mid-batch, stopping without a successor", nil)
		return j.batchRepo.Finish(ctx, batch, constants.BatchCancelled, nil)
	}

	if err := j.finishEnrichment(ctx, session, account, batch); err != nil {
		return j.failBatch(ctx, batch, session.ID, err)
	}

	return j.batchRepo.Finish(ctx, batch, constants.BatchCompleted, nil)
}

// enrichOne fetches one detail payload and writes the enrichment fields
func (j *EnrichmentJob) enrichOne(ctx context.Context, token string, result *gorm.RaceResult, batch *gorm.SyncBatch) error {
	detail, err := j.provider.GetActivity(ctx, token, result.ExternalID)
	if err != nil {
		return err
	}

	payload := enrichmentPayload{
		Description:      detail.Description,
		Calories:         detail.Calories,
		AverageHeartrate: detail.AverageHeartrate,
		MaxHeartrate:     detail.MaxHeartrate,
		AverageCadence:   detail.AverageCadence,
		GearID:           detail.GearID,
		Splits:           detail.Splits,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment payload: %w", err)
	}

	return j.resultRepo.SetEnrichment(ctx, result.ID, string(data))
}

// finishEnrichment counts what is left and either closes the session or
// queues the next enrichment batch. The health monitor guarantees the
// same outcome if this continuation is lost to a crash.
func (j *EnrichmentJob) finishEnrichment(ctx context.Context, session *gorm.SyncSession, account *gorm.Account, batch *gorm.SyncBatch) error {
	outstanding, err := j.resultRepo.CountNeedingEnrichment(ctx, account.ID)
	if err != nil {
		return err
	}

	if outstanding == 0 {
		if account.SyncStatus == constants.AccountInProgress {
			if err := j.accountRepo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted); err != nil {
				return err
			}
		}
		logSession(ctx, j.logger, session.ID, constants.LogLevelInfo, "Enrichment completed, session done", nil)
		return nil
	}

	// The batch being finished is still processing here, so it counts as
	// open itself; anything beyond it is a sibling that will continue.
	kind := constants.BatchKindEnrichment
	open, err := j.batchRepo.CountOpenForSession(ctx, session.ID, &kind)
	if err != nil {
		return err
	}
	if open > 1 {
		return nil
	}

	next := &gorm.SyncBatch{
		SessionID: session.ID,
		Kind:      constants.BatchKindEnrichment,
	}
	if err := j.batchRepo.Create(ctx, next); err != nil {
		return fmt.Errorf("failed to create enrichment continuation: %w", err)
	}
	logSession(ctx, j.logger, session.ID, constants.LogLevelInfo,
		fmt.Sprintf("%d results still flagged, enrichment continues in batch %d", outstanding, next.BatchNumber), nil)
	return nil
}

func (j *EnrichmentJob) failBatch(ctx context.Context, batch *gorm.SyncBatch, sessionID string, cause error) error {
	msg := cause.Error()
	if sessionID != "" {
		logSession(ctx, j.logger, sessionID, constants.LogLevelError, msg, nil)
	}
	if finishErr := j.batchRepo.Finish(ctx, batch, constants.BatchFailed, &msg); finishErr != nil {
		logSession(ctx, j.logger, sessionID, constants.LogLevelError,
			fmt.Sprintf("Failed to mark batch failed: %v", finishErr), nil)
	}
	return cause
}

// enrichmentPayload is the JSON shape stored in race_results.enrichment
type enrichmentPayload struct {
	Description      string            `json:"description,omitempty"`
	Calories         float64           `json:"calories,omitempty"`
	AverageHeartrate float64           `json:"average_heartrate,omitempty"`
	MaxHeartrate     float64           `json:"max_heartrate,omitempty"`
	AverageCadence   float64           `json:"average_cadence,omitempty"`
	GearID           string            `json:"gear_id,omitempty"`
	Splits           []providers.Split `json:"splits,omitempty"`
}
