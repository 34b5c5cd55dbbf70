package repositories

import (
	"context"
	"testing"
	"time"

	"gruppetto/internal/constants"
	"gruppetto/internal/models/gorm"
)

func TestUpsert_IsIdempotentAndKeepsLabel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRaceResultRepo(db)

	account := createTestAccount(t, db, 400, constants.AccountInProgress)

	result := &gorm.RaceResult{
		AccountID:       account.ID,
		ExternalID:      5001,
		Name:            "Spring 10K",
		SportType:       "Run",
		DistanceM:       10000,
		MovingTimeS:     2400,
		StartedAt:       time.Date(2024, 4, 7, 9, 0, 0, 0, time.UTC),
		NeedsEnrichment: true,
	}
	if err := repo.Upsert(ctx, result); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := repo.SetLabel(ctx, account.ID, 5001, "Season opener"); err != nil {
		t.Fatalf("SetLabel failed: %v", err)
	}
	if err := repo.SetEnrichment(ctx, result.ID, `{"calories":512}`); err != nil {
		t.Fatalf("SetEnrichment failed: %v", err)
	}

	// Re-discovering the same activity updates the metrics but must not
	// touch the label or the stored enrichment payload.
	update := &gorm.RaceResult{
		AccountID:       account.ID,
		ExternalID:      5001,
		Name:            "Spring 10K (renamed)",
		SportType:       "Run",
		DistanceM:       10050,
		MovingTimeS:     2390,
		StartedAt:       time.Date(2024, 4, 7, 9, 0, 0, 0, time.UTC),
		NeedsEnrichment: true,
	}
	if err := repo.Upsert(ctx, update); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	count, err := repo.CountForAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("CountForAccount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 result after re-upsert, got %d", count)
	}

	reloaded, err := repo.FindByExternalID(ctx, account.ID, 5001)
	if err != nil {
		t.Fatalf("FindByExternalID failed: %v", err)
	}
	if reloaded.Name != "Spring 10K (renamed)" {
		t.Errorf("Expected updated name, got %q", reloaded.Name)
	}
	if reloaded.UserLabel == nil || *reloaded.UserLabel != "Season opener" {
		t.Errorf("Expected label to survive the upsert, got %v", reloaded.UserLabel)
	}
	if reloaded.Enrichment == nil || *reloaded.Enrichment != `{"calories":512}` {
		t.Errorf("Expected enrichment payload to survive the upsert, got %v", reloaded.Enrichment)
	}
}

func TestLabelsByExternalID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRaceResultRepo(db)

	account := createTestAccount(t, db, 401, constants.AccountInProgress)

	for i, name := range []string{"A", "B", "C"} {
		if err := repo.Upsert(ctx, &gorm.RaceResult{
			AccountID:  account.ID,
			ExternalID: int64(6000 + i),
			Name:       name,
			StartedAt:  time.Now(),
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := repo.SetLabel(ctx, account.ID, 6000, "first"); err != nil {
		t.Fatalf("SetLabel failed: %v", err)
	}
	if err := repo.SetLabel(ctx, account.ID, 6002, "third"); err != nil {
		t.Fatalf("SetLabel failed: %v", err)
	}

	labels, err := repo.LabelsByExternalID(ctx, account.ID)
	if err != nil {
		t.Fatalf("LabelsByExternalID failed: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("Expected 2 labels, got %d", len(labels))
	}
	if labels[6000] != "first" || labels[6002] != "third" {
		t.Errorf("Unexpected label map: %v", labels)
	}
}

func TestListNeedingEnrichment_OrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRaceResultRepo(db)

	account := createTestAccount(t, db, 402, constants.AccountInProgress)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Insert newest-first so ordering must come from the query
	for i := 4; i >= 0; i-- {
		if err := repo.Upsert(ctx, &gorm.RaceResult{
			AccountID:       account.ID,
			ExternalID:      int64(7000 + i),
			Name:            "race",
			StartedAt:       base.AddDate(0, 0, i),
			NeedsEnrichment: true,
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	pending, err := repo.ListNeedingEnrichment(ctx, account.ID, 3)
	if err != nil {
		t.Fatalf("ListNeedingEnrichment failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(pending))
	}
	for i, result := range pending {
		if result.ExternalID != int64(7000+i) {
			t.Errorf("Expected oldest-first order, position %d holds %d", i, result.ExternalID)
		}
	}

	outstanding, err := repo.CountNeedingEnrichment(ctx, account.ID)
	if err != nil {
		t.Fatalf("CountNeedingEnrichment failed: %v", err)
	}
	if outstanding != 5 {
		t.Errorf("Expected 5 outstanding, got %d", outstanding)
	}
}

func TestSetEnrichment_ClearsFlag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRaceResultRepo(db)

	account := createTestAccount(t, db, 403, constants.AccountInProgress)

	result := &gorm.RaceResult{
		AccountID:       account.ID,
		ExternalID:      8000,
		Name:            "Hill Climb",
		StartedAt:       time.Now(),
		NeedsEnrichment: true,
	}
	if err := repo.Upsert(ctx, result); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := repo.SetEnrichment(ctx, result.ID, `{"average_heartrate":164}`); err != nil {
		t.Fatalf("SetEnrichment failed: %v", err)
	}

	reloaded, _ := repo.FindByExternalID(ctx, account.ID, 8000)
	if reloaded.NeedsEnrichment {
		t.Error("Expected needs_enrichment cleared")
	}
	if reloaded.Enrichment == nil {
		t.Fatal("Expected enrichment payload stored")
	}
}

func TestDeleteAllForAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRaceResultRepo(db)

	account := createTestAccount(t, db, 404, constants.AccountInProgress)
	other := createTestAccount(t, db, 405, constants.AccountIdle)

	for i := 0; i < 3; i++ {
		if err := repo.Upsert(ctx, &gorm.RaceResult{
			AccountID:  account.ID,
			ExternalID: int64(9000 + i),
			StartedAt:  time.Now(),
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := repo.Upsert(ctx, &gorm.RaceResult{
		AccountID:  other.ID,
		ExternalID: 9100,
		StartedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	removed, err := repo.DeleteAllForAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("DeleteAllForAccount failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 rows removed, got %d", removed)
	}

	remaining, _ := repo.CountForAccount(ctx, other.ID)
	if remaining != 1 {
		t.Errorf("Expected the other account's result untouched, got %d", remaining)
	}
}
