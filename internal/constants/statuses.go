package constants

// Account sync statuses
type AccountSyncStatus string

const (
	AccountIdle       AccountSyncStatus = "idle"
	AccountInProgress AccountSyncStatus = "in_progress"
	AccountCompleted  AccountSyncStatus = "completed"
	AccountError      AccountSyncStatus = "error"
)

// Batch statuses
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

// Batch kinds
type BatchKind string

const (
	BatchKindDiscovery  BatchKind = "discovery"
	BatchKindEnrichment BatchKind = "enrichment"
)

// Session modes
type SyncMode string

const (
	SyncModeIncremental SyncMode = "incremental"
	SyncModeFull        SyncMode = "full"
)

// accountTransitions is the closed set of legal account status transitions.
// Everything else is rejected at the repository boundary.
var accountTransitions = map[AccountSyncStatus][]AccountSyncStatus{
	AccountIdle:       {AccountInProgress},
	AccountInProgress: {AccountCompleted, AccountError, AccountIdle},
	AccountCompleted:  {AccountInProgress, AccountIdle},
	AccountError:      {AccountInProgress, AccountIdle},
}

// batchTransitions mirrors the batch lifecycle: pending batches can be
// claimed or cancelled, a claimed batch can only end terminally.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchPending:    {BatchProcessing, BatchCancelled},
	BatchProcessing: {BatchCompleted, BatchFailed, BatchCancelled},
}

// IsValidAccountTransition reports whether from -> to is a legal account
// status transition.
func IsValidAccountTransition(from, to AccountSyncStatus) bool {
	for _, next := range accountTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidBatchTransition reports whether from -> to is a legal batch
// status transition.
func IsValidBatchTransition(from, to BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalBatchStatus reports whether a batch status is terminal.
func IsTerminalBatchStatus(s BatchStatus) bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCancelled
}
