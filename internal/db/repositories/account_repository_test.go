package repositories

import (
	"context"
	"testing"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/models/gorm"
)

func TestUpdateSyncStatus_Transitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	account := createTestAccount(t, db, 200, constants.AccountIdle)

	// idle -> completed skips in_progress and must be rejected
	if err := repo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted); err == nil {
		t.Error("Expected an error for idle -> completed")
	}

	if err := repo.UpdateSyncStatus(ctx, account.ID, constants.AccountInProgress); err != nil {
		t.Fatalf("idle -> in_progress failed: %v", err)
	}

	// Leave an error and a stall flag behind, then complete
	if err := repo.SetError(ctx, account.ID, "boom"); err != nil {
		t.Fatalf("SetError failed: %v", err)
	}
	if err := repo.UpdateSyncStatus(ctx, account.ID, constants.AccountInProgress); err != nil {
		t.Fatalf("error -> in_progress failed: %v", err)
	}
	if err := repo.SetStalled(ctx, account.ID, true); err != nil {
		t.Fatalf("SetStalled failed: %v", err)
	}

	if err := repo.UpdateSyncStatus(ctx, account.ID, constants.AccountCompleted); err != nil {
		t.Fatalf("in_progress -> completed failed: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.SyncStatus != constants.AccountCompleted {
		t.Errorf("Expected completed, got %s", reloaded.SyncStatus)
	}
	if reloaded.LastError != nil {
		t.Errorf("Expected last_error cleared on completion, got %q", *reloaded.LastError)
	}
	if reloaded.Stalled {
		t.Error("Expected stall flag cleared on completion")
	}
	if reloaded.LastSyncAt == nil {
		t.Error("Expected last_sync_at set on completion")
	}
}

func TestSetError_MarksAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	account := createTestAccount(t, db, 201, constants.AccountInProgress)

	if err := repo.SetError(ctx, account.ID, "token revoked"); err != nil {
		t.Fatalf("SetError failed: %v", err)
	}

	reloaded, _ := repo.GetByID(ctx, account.ID)
	if reloaded.SyncStatus != constants.AccountError {
		t.Errorf("Expected error status, got %s", reloaded.SyncStatus)
	}
	if reloaded.LastError == nil || *reloaded.LastError != "token revoked" {
		t.Errorf("Expected last_error to carry the message, got %v", reloaded.LastError)
	}
}

func TestResetStuck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	stuck := createTestAccount(t, db, 202, constants.AccountInProgress)
	fresh := createTestAccount(t, db, 203, constants.AccountInProgress)

	// Backdate the stuck account past the threshold
	old := time.Now().Add(-time.Hour)
	if err := db.Model(&gorm.Account{}).Where("id = ?", stuck.ID).
		UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("Failed to backdate account: %v", err)
	}

	count, err := repo.ResetStuck(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("ResetStuck failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 account reset, got %d", count)
	}

	reloaded, _ := repo.GetByID(ctx, stuck.ID)
	if reloaded.SyncStatus != constants.AccountIdle {
		t.Errorf("Expected stuck account back to idle, got %s", reloaded.SyncStatus)
	}

	untouched, _ := repo.GetByID(ctx, fresh.ID)
	if untouched.SyncStatus != constants.AccountInProgress {
		t.Errorf("Expected recent account untouched, got %s", untouched.SyncStatus)
	}
}

func TestDelete_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	account := createTestAccount(t, db, 204, constants.AccountIdle)
	session := createTestSession(t, db, account.ID, constants.SyncModeFull)
	createTestBatch(t, db, session.ID, constants.BatchKindDiscovery)

	if err := db.Create(&gorm.SyncLog{SessionID: session.ID, Level: "info", Message: "hello"}).Error; err != nil {
		t.Fatalf("Failed to seed log: %v", err)
	}
	if err := NewRaceResultRepo(db).Upsert(ctx, &gorm.RaceResult{
		AccountID:  account.ID,
		ExternalID: 9001,
		Name:       "City Marathon",
		StartedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Failed to seed result: %v", err)
	}

	if err := repo.Delete(ctx, account.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for table, model := range map[string]interface{}{
		"accounts":      &gorm.Account{},
		"sync_sessions": &gorm.SyncSession{},
		"sync_batches":  &gorm.SyncBatch{},
		"sync_logs":     &gorm.SyncLog{},
		"race_results":  &gorm.RaceResult{},
	} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("Count on %s failed: %v", table, err)
		}
		if count != 0 {
			t.Errorf("Expected %s to be empty after delete, found %d rows", table, count)
		}
	}
}

func TestAddProcessedResults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepo(db)

	account := createTestAccount(t, db, 205, constants.AccountInProgress)

	if err := repo.AddProcessedResults(ctx, account.ID, 7); err != nil {
		t.Fatalf("AddProcessedResults failed: %v", err)
	}
	if err := repo.AddProcessedResults(ctx, account.ID, 3); err != nil {
		t.Fatalf("AddProcessedResults failed: %v", err)
	}

	reloaded, _ := repo.GetByID(ctx, account.ID)
	if reloaded.TotalResults != 10 {
		t.Errorf("Expected total_results 10, got %d", reloaded.TotalResults)
	}
}
