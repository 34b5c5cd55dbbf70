package constants

// Log levels for sync_logs entries
const (
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
)

// Engine tuning defaults. Overridable through config; these match the
// host execution environment's call and time ceilings with margin.
const (
	// DefaultPageSize is the page size requested from the upstream list endpoint.
	DefaultPageSize = 200

	// MaxPagesPerBatch bounds list calls per discovery batch so the total
	// outbound call count stays under the per-invocation ceiling.
	MaxPagesPerBatch = 3

	// EnrichmentBatchCapacity is the number of detail fetches per enrichment batch.
	EnrichmentBatchCapacity = 15

	// TokenRefreshMarginMinutes refreshes credentials this many minutes
	// before their recorded expiry.
	TokenRefreshMarginMinutes = 5

	// StallThresholdMinutes flags an in-progress account with no batch
	// activity for this long.
	StallThresholdMinutes = 10
)
