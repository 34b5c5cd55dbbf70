package repositories

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
	"gruppetto/internal/models/gorm"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gormlib.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", testDBSeq.Add(1))
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
	if err := NewAccountRepo(db).Create(context.Background(), account); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

func createTestSession(t *testing.T, db *gormlib.DB, accountID string, mode constants.SyncMode) *gorm.SyncSession {
	t.Helper()

	session := &gorm.SyncSession{
		AccountID: accountID,
		Mode:      mode,
	}
	if err := NewSessionRepo(db).Create(context.Background(), session); err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return session
}

func createTestBatch(t *testing.T, db *gormlib.DB, sessionID string, kind constants.BatchKind) *gorm.SyncBatch {
	t.Helper()

	batch := &gorm.SyncBatch{
		SessionID: sessionID,
		Kind:      kind,
	}
	if err := NewBatchRepo(db).Create(context.Background(), batch); err != nil {
		t.Fatalf("Failed to create test batch: %v", err)
	}
	return batch
}
