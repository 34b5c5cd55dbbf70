package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gruppetto/internal/common"
	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/models/entities"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/providers"
	"gruppetto/internal/services"
)

var testDBSeq atomic.Int64

// mockProvider is a func-field fake for the upstream API
type mockProvider struct {
	listFunc    func(ctx context.Context, token string, params providers.ListParams) (*providers.ActivityPage, error)
	getFunc     func(ctx context.Context, token string, id int64) (*providers.ActivityDetail, error)
	refreshFunc func(ctx context.Context, refreshToken string) (*providers.TokenPair, error)

	listCalls atomic.Int64
	getCalls  atomic.Int64
}

func (m *mockProvider) ListActivities(ctx context.Context, token string, params providers.ListParams) (*providers.ActivityPage, error) {
	m.listCalls.Add(1)
	return m.listFunc(ctx, token, params)
}

func (m *mockProvider) GetActivity(ctx context.Context, token string, id int64) (*providers.ActivityDetail, error) {
	m.getCalls.Add(1)
	return m.getFunc(ctx, token, id)
}

func (m *mockProvider) RefreshToken(ctx context.Context, refreshToken string) (*providers.TokenPair, error) {
	return m.refreshFunc(ctx, refreshToken)
}

// memLogger collects session log entries in memory
type memLogger struct {
	mu      sync.Mutex
	entries []entities.SyncLogEntry
}

func (l *memLogger) Append(ctx context.Context, entry *entities.SyncLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

type testEnv struct {
	db          *gormlib.DB
	accountRepo *repositories.AccountRepo
	sessionRepo *repositories.SessionRepo
	batchRepo   *repositories.BatchRepo
	resultRepo  *repositories.RaceResultRepo
	budget      *services.RateBudgetTracker
	provider    *mockProvider
	logger      *memLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:jobtest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gormlib.Open(sqlite.Open(dsn), &gormlib.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&gorm.Account{},
		&gorm.SyncSession{},
		&gorm.SyncBatch{},
		&gorm.RaceResult{},
		&gorm.SyncLog{},
	); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}

	cache := common.NewCacheService(time.Minute, time.Minute)
	return &testEnv{
		db:          db,
		accountRepo: repositories.NewAccountRepo(db),
		sessionRepo: repositories.NewSessionRepo(db),
		batchRepo:   repositories.NewBatchRepo(db),
		resultRepo:  repositories.NewRaceResultRepo(db),
		budget:      services.NewRateBudgetTracker(cache, 10, 50),
		provider:    &mockProvider{},
		logger:      &memLogger{},
	}
}

func (e *testEnv) discoveryJob(pageSize, maxPages int) *DiscoveryJob {
	creds := services.NewCredentialManager(e.accountRepo, e.provider)
	return NewDiscoveryJob(e.accountRepo, e.sessionRepo, e.batchRepo, e.resultRepo,
		creds, e.budget, e.provider, e.logger, pageSize, maxPages)
}

func (e *testEnv) enrichmentJob(capacity int) *EnrichmentJob {
	creds := services.NewCredentialManager(e.accountRepo, e.provider)
	return NewEnrichmentJob(e.accountRepo, e.sessionRepo, e.batchRepo, e.resultRepo,
		creds, e.budget, e.provider, e.logger, capacity)
}

func (e *testEnv) healthMonitor(capacity int) *HealthMonitor {
	return NewHealthMonitor(e.accountRepo, e.sessionRepo, e.batchRepo, e.resultRepo, e.logger, capacity)
}

func (e *testEnv) createAccount(t *testing.T, externalID int64, status constants.AccountSyncStatus) *gorm.Account {
	t.Helper()
	account := &gorm.Account{
		ExternalID:     externalID,
		Name:           fmt.Sprintf("athlete-%d", externalID),
		AccessToken:    "valid-token",
		RefreshToken:   "refresh-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
		SyncStatus:     status,
	}
	if err := e.accountRepo.Create(context.Background(), account); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

func (e *testEnv) createSession(t *testing.T, accountID string, mode constants.SyncMode) *gorm.SyncSession {
	t.Helper()
	session := &gorm.SyncSession{AccountID: accountID, Mode: mode}
	if err := e.sessionRepo.Create(context.Background(), session); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return session
}

// claimBatch creates a pending batch and claims it, the way the scheduler
// hands work to a processor.
func (e *testEnv) claimBatch(t *testing.T, sessionID string, kind constants.BatchKind) *gorm.SyncBatch {
	t.Helper()
	batch := &gorm.SyncBatch{SessionID: sessionID, Kind: kind}
	if err := e.batchRepo.Create(context.Background(), batch); err != nil {
		t.Fatalf("Failed to create test batch: %v", err)
	}
	claimed, err := e.batchRepo.ClaimNext(context.Background(), kind)
	if err != nil || claimed == nil {
		t.Fatalf("Failed to claim test batch: batch=%v err=%v", claimed, err)
	}
	return claimed
}

func (e *testEnv) reloadBatch(t *testing.T, id string) *gorm.SyncBatch {
	t.Helper()
	var batch gorm.SyncBatch
	if err := e.db.First(&batch, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload batch: %v", err)
	}
	return &batch
}

func (e *testEnv) reloadAccount(t *testing.T, id string) *gorm.Account {
	t.Helper()
	account, err := e.accountRepo.GetByID(context.Background(), id)
	if err != nil || account == nil {
		t.Fatalf("Failed to reload account: %v", err)
	}
	return account
}

func intPtr(v int) *int { return &v }

func raceResultFixture(accountID string, externalID int64, start time.Time) *gorm.RaceResult {
	return &gorm.RaceResult{
		AccountID:  accountID,
		ExternalID: externalID,
		Name:       fmt.Sprintf("race-%d", externalID),
		SportType:  "Run",
		DistanceM:  21097,
		StartedAt:  start,
	}
}

func raceRun(id int64, start time.Time) providers.ActivitySummary {
	return providers.ActivitySummary{
		ID:          id,
		Name:        fmt.Sprintf("run-race-%d", id),
		SportType:   "Run",
		WorkoutType: intPtr(1),
		Distance:    10000,
		MovingTime:  2400,
		ElapsedTime: 2450,
		StartDate:   start,
	}
}

func raceRide(id int64, start time.Time) providers.ActivitySummary {
	return providers.ActivitySummary{
		ID:          id,
		Name:        fmt.Sprintf("ride-race-%d", id),
		SportType:   "Ride",
		WorkoutType: intPtr(11),
		Distance:    40000,
		MovingTime:  3600,
		ElapsedTime: 3650,
		StartDate:   start,
	}
}

func easyRun(id int64, start time.Time) providers.ActivitySummary {
	return providers.ActivitySummary{
		ID:        id,
		Name:      fmt.Sprintf("easy-run-%d", id),
		SportType: "Run",
		StartDate: start,
	}
}
