package jobs

import (
	"context"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/metrics"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/services"
)

// logPruneRetention is how long session log entries are kept
const logPruneRetention = 30 * 24 * time.Hour

// LogPruner is the maintenance slice of the log store
type LogPruner interface {
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler is the periodic trigger: each tick claims and runs at most
// one discovery batch and one enrichment batch, then runs the health
// monitor, all inside the invocation time budget. It discovers work from
// the job store alone and keeps no state between ticks.
type Scheduler struct {
	batchRepo  *repositories.BatchRepo
	discovery  *DiscoveryJob
	enrichment *EnrichmentJob
	monitor    *HealthMonitor
	pruner     LogPruner
	budget     *services.RateBudgetTracker
	metrics    *metrics.MetricsRegistry

	interval   time.Duration
	tickBudget time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(
	batchRepo *repositories.BatchRepo,
	discovery *DiscoveryJob,
	enrichment *EnrichmentJob,
	monitor *HealthMonitor,
	pruner LogPruner,
	budget *services.RateBudgetTracker,
	metricsReg *metrics.MetricsRegistry,
	interval time.Duration,
	tickBudget time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if tickBudget <= 0 {
		tickBudget = 25 * time.Second
	}
	return &Scheduler{
		batchRepo:  batchRepo,
		discovery:  discovery,
		enrichment: enrichment,
		monitor:    monitor,
		pruner:     pruner,
		budget:     budget,
		metrics:    metricsReg,
		interval:   interval,
		tickBudget: tickBudget,
	}
}

// RunScheduled runs ticks on the configured interval until ctx is done
func (s *Scheduler) RunScheduled(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			logging.Info("Scheduler shutting down")
			return
		}
	}
}

// Tick executes one scheduler invocation inside the time budget
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	tickCtx, cancel := context.WithTimeout(ctx, s.tickBudget)
	defer cancel()

	s.runBatch(tickCtx, constants.BatchKindDiscovery)
	s.runBatch(tickCtx, constants.BatchKindEnrichment)

	if err := s.monitor.Run(tickCtx); err != nil {
		logging.Error("Health monitor tick failed", "error", err.Error())
	}

	if s.pruner != nil {
		if pruned, err := s.pruner.PruneOlderThan(tickCtx, logPruneRetention); err != nil {
			logging.Warn("Log pruning failed", "error", err.Error())
		} else if pruned > 0 {
			logging.Debug("Pruned old session log entries", "count", pruned)
		}
	}

	if s.metrics != nil {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		if s.budget != nil {
			if quota, ok := s.budget.Observed(); ok {
				s.metrics.QuotaWindowUsed.Set(float64(quota.WindowUsed))
				s.metrics.QuotaDailyUsed.Set(float64(quota.DailyUsed))
			}
		}
	}
}

// runBatch claims at most one batch of the kind and processes it
func (s *Scheduler) runBatch(ctx context.Context, kind constants.BatchKind) {
	batch, err := s.batchRepo.ClaimNext(ctx, kind)
	if err != nil {
		logging.Error("Batch claim failed", "kind", string(kind), "error", err.Error())
		return
	}
	if batch == nil {
		return
	}

	start := time.Now()
	logging.Info("Processing batch",
		"batch_id", batch.ID,
		"session_id", batch.SessionID,
		"batch_number", batch.BatchNumber,
		"kind", string(kind),
	)

	err = s.process(ctx, kind, batch)

	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.BatchesProcessed.WithLabelValues(string(kind), outcome).Inc()
		s.metrics.BatchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		if kind == constants.BatchKindDiscovery && batch.ResultsAdded > 0 {
			s.metrics.ResultsUpserted.Add(float64(batch.ResultsAdded))
		}
	}

	if err != nil {
		logging.Error("Batch processing failed",
			"batch_id", batch.ID,
			"kind", string(kind),
			"error", err.Error(),
		)
		return
	}

	logging.Info("Batch done",
		"batch_id", batch.ID,
		"kind", string(kind),
		"duration", time.Since(start).Truncate(time.Millisecond).String(),
	)
}

func (s *Scheduler) process(ctx context.Context, kind constants.BatchKind, batch *gorm.SyncBatch) error {
	switch kind {
	case constants.BatchKindEnrichment:
		return s.enrichment.Process(ctx, batch)
	default:
		return s.discovery.Process(ctx, batch)
	}
}
