package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gruppetto/internal/constants"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/models/gorm"
	"gruppetto/internal/providers"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gormlib.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", testDBSeq.Add(1))
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
	return db
}

func createTestAccount(t *testing.T, db *gormlib.DB, externalID int64, status constants.AccountSyncStatus) *gorm.Account {
	t.Helper()

	account := &gorm.Account{
		ExternalID:     externalID,
		Name:           fmt.Sprintf("athlete-%d", externalID),
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		TokenExpiresAt: time.Now().Add(time.Hour),
		SyncStatus:     status,
	}
	if err := repositories.NewAccountRepo(db).Create(context.Background(), account); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// mockProvider is a func-field fake for the upstream API
type mockProvider struct {
	listFunc    func(ctx context.Context, token string, params providers.ListParams) (*providers.ActivityPage, error)
	getFunc     func(ctx context.Context, token string, id int64) (*providers.ActivityDetail, error)
	refreshFunc func(ctx context.Context, refreshToken string) (*providers.TokenPair, error)

	refreshCalls atomic.Int64
}

func (m *mockProvider) ListActivities(ctx context.Context, token string, params providers.ListParams) (*providers.ActivityPage, error) {
	return m.listFunc(ctx, token, params)
}

func (m *mockProvider) GetActivity(ctx context.Context, token string, id int64) (*providers.ActivityDetail, error) {
	return m.getFunc(ctx, token, id)
}

func (m *mockProvider) RefreshToken(ctx context.Context, refreshToken string) (*providers.TokenPair, error) {
	m.refreshCalls.Add(1)
	return m.refreshFunc(ctx, refreshToken)
}
