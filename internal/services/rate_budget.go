package services

import (
	"encoding/json"
	"time"

	"gruppetto/internal/common"
	"gruppetto/internal/logging"
	"gruppetto/internal/providers"
)

const (
	quotaCacheKey = "upstream:quota"

	// The upstream's short quota window. Counters older than this are
	// stale and must not defer work.
	quotaWindow = 15 * time.Minute
)

// RateBudgetTracker records the most recently observed upstream quota
// counters and answers "safe to proceed" for the next invocation. State
// lives in the cache (Redis in production) so concurrently running
// instances share one view of the budget.
type RateBudgetTracker struct {
	cache         common.CacheInterface
	windowReserve int
	dailyReserve  int
}

// NewRateBudgetTracker creates a new rate budget tracker
func NewRateBudgetTracker(cache common.CacheInterface, windowReserve, dailyReserve int) *RateBudgetTracker {
	return &RateBudgetTracker{
		cache:         cache,
		windowReserve: windowReserve,
		dailyReserve:  dailyReserve,
	}
}

// Record persists the quota counters observed on an upstream response
func (t *RateBudgetTracker) Record(quota *providers.QuotaUsage) {
	if quota == nil {
		return
	}
	t.cache.Set(quotaCacheKey, quota, quotaWindow)
}

// CanProceed reports whether plannedCalls more upstream calls fit inside
// the observed quota, keeping the configured reserves as headroom. With
// no recorded counters the answer is yes: the first call of a window
// re-establishes them.
func (t *RateBudgetTracker) CanProceed(plannedCalls int) bool {
	quota, ok := t.observed()
	if !ok {
		return true
	}

	if quota.WindowLimit > 0 && quota.WindowUsed+plannedCalls > quota.WindowLimit-t.windowReserve {
		logging.Warn("Rate budget exhausted for the short window",
			"window_used", quota.WindowUsed,
			"window_limit", quota.WindowLimit,
			"planned_calls", plannedCalls,
		)
		return false
	}

	if quota.DailyLimit > 0 && quota.DailyUsed+plannedCalls > quota.DailyLimit-t.dailyReserve {
		logging.Warn("Rate budget exhausted for the day",
			"daily_used", quota.DailyUsed,
			"daily_limit", quota.DailyLimit,
			"planned_calls", plannedCalls,
		)
		return false
	}

	return true
}

// Observed returns the last recorded counters, if any
func (t *RateBudgetTracker) Observed() (providers.QuotaUsage, bool) {
	return t.observed()
}

func (t *RateBudgetTracker) observed() (providers.QuotaUsage, bool) {
	raw, found := t.cache.Get(quotaCacheKey)
	if !found {
		return providers.QuotaUsage{}, false
	}

	// The Redis-backed cache round-trips through JSON and hands back a
	// generic map; re-marshal into the struct either way.
	switch v := raw.(type) {
	case *providers.QuotaUsage:
		return *v, true
	case providers.QuotaUsage:
		return v, true
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return providers.QuotaUsage{}, false
		}
		var quota providers.QuotaUsage
		if err := json.Unmarshal(data, &quota); err != nil {
			return providers.QuotaUsage{}, false
		}
		return quota, true
	}
}
