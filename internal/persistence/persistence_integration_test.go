package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"SynthLedger/internal/ledger"
	"SynthLedger/internal/persistence"
	"SynthLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// These tests need a running Postgres; they skip otherwise.
// Start one with: docker compose -f docker-compose.test.yml up -d

func setupMigratedDB(t *testing.T) *persistence.SnapshotManager {
	t.Helper()
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	m := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return persistence.NewSnapshotManager(db)
}

func setupMigratedWriter(t *testing.T) (*persistence.EventLogWriter, *persistence.SnapshotManager) {
	t.Helper()
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	m := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := m.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return persistence.NewEventLogWriter(db), persistence.NewSnapshotManager(db)
}

func testEventRow(seq int64) persistence.EventRow {
	userID := uuid.New().String()
	asset := "WETH"
	payload, _ := json.Marshal(map[string]string{"quantity": "1000000000000000000"})
	return persistence.EventRow{
		Sequence:    seq,
		EventType:   "CollateralDeposited",
		OperationID: uuid.New().String(),
		UserID:      &userID,
		Asset:       &asset,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

func TestWriteEventBatch_RoundTrip(t *testing.T) {
	writer, snapMgr := setupMigratedWriter(t)
	ctx := context.Background()

	batch := []persistence.EventRow{testEventRow(0), testEventRow(1), testEventRow(2)}
	if err := writer.WriteEventBatch(ctx, batch); err != nil {
		t.Fatalf("WriteEventBatch failed: %v", err)
	}

	rows, err := snapMgr.LoadEventsFrom(ctx, 0, 100)
	if err != nil {
		t.Fatalf("LoadEventsFrom failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Sequence != int64(i) {
			t.Errorf("row %d: expected sequence %d, got %d", i, i, row.Sequence)
		}
		if row.EventType != "CollateralDeposited" {
			t.Errorf("row %d: expected CollateralDeposited, got %s", i, row.EventType)
		}
	}

	latest, err := snapMgr.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("GetLatestSequence failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("expected latest sequence 2, got %d", latest)
	}
}

func TestWriteEventBatch_IdempotentOnSequence(t *testing.T) {
	writer, snapMgr := setupMigratedWriter(t)
	ctx := context.Background()

	original := testEventRow(0)
	if err := writer.WriteEventBatch(ctx, []persistence.EventRow{original}); err != nil {
		t.Fatalf("WriteEventBatch failed: %v", err)
	}

	// A crash-replayed batch at the same sequence must be a no-op.
	replay := testEventRow(0)
	replay.EventType = "SyntheticMinted"
	if err := writer.WriteEventBatch(ctx, []persistence.EventRow{replay}); err != nil {
		t.Fatalf("replayed WriteEventBatch failed: %v", err)
	}

	rows, err := snapMgr.LoadEventsFrom(ctx, 0, 10)
	if err != nil {
		t.Fatalf("LoadEventsFrom failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].EventType != "CollateralDeposited" {
		t.Errorf("expected original row preserved, got %s", rows[0].EventType)
	}
}

func TestWriteEventBatch_Empty(t *testing.T) {
	writer, _ := setupMigratedWriter(t)
	if err := writer.WriteEventBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}

func TestSnapshot_SaveAndLoadLatest(t *testing.T) {
	snapMgr := setupMigratedDB(t)
	ctx := context.Background()

	first := &persistence.SnapshotData{
		Sequence: 10,
		Accounts: []ledger.AccountRecord{{
			UserID:     uuid.New().String(),
			Debt:       "100000000000000000000",
			Collateral: map[string]string{"WETH": "10000000000000000000"},
			Version:    2,
		}},
		CreatedAt: time.Now().UTC(),
	}
	if err := snapMgr.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	second := &persistence.SnapshotData{
		Sequence:  25,
		Accounts:  first.Accounts,
		CreatedAt: time.Now().UTC(),
	}
	if err := snapMgr.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if loaded.Sequence != 25 {
		t.Errorf("expected latest snapshot sequence 25, got %d", loaded.Sequence)
	}
	if len(loaded.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(loaded.Accounts))
	}
	if loaded.Accounts[0].Debt != "100000000000000000000" {
		t.Errorf("expected debt preserved, got %s", loaded.Accounts[0].Debt)
	}
}

func TestSnapshot_LoadLatestOnColdStart(t *testing.T) {
	snapMgr := setupMigratedDB(t)

	loaded, err := snapMgr.LoadLatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadLatestSnapshot failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil snapshot on cold start, got sequence %d", loaded.Sequence)
	}
}

func TestSnapshot_OverwriteAtSameSequence(t *testing.T) {
	snapMgr := setupMigratedDB(t)
	ctx := context.Background()

	snap := &persistence.SnapshotData{Sequence: 5, CreatedAt: time.Now().UTC()}
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	snap.Accounts = []ledger.AccountRecord{{
		UserID:     uuid.New().String(),
		Debt:       "0",
		Collateral: map[string]string{},
	}}
	if err := snapMgr.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("re-save at same sequence failed: %v", err)
	}

	loaded, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadLatestSnapshot failed: %v", err)
	}
	if len(loaded.Accounts) != 1 {
		t.Errorf("expected overwritten snapshot with 1 account, got %d", len(loaded.Accounts))
	}
}
