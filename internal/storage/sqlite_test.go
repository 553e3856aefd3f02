package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/lotdocs/internal/models"
)

func TestSQLiteLedger(t *testing.T) {
	dir := t.TempDir()
	ledger, err := NewSQLiteLedger(filepath.Join(dir, "db", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	recs := []*models.StageRecord{
		{RunID: "run1", LotID: "L1", Stage: "download", Status: models.StatusDone, CreatedAt: base},
		{RunID: "run1", LotID: "L1", Stage: "convert", Status: models.StatusFailed, Detail: "boom", CreatedAt: base},
		{RunID: "run2", LotID: "L1", Stage: "convert", Status: models.StatusDone, CreatedAt: base.Add(time.Hour)},
		{RunID: "run2", LotID: "L2", Stage: "download", Status: models.StatusSkipped},
	}
	for _, r := range recs {
		if err := ledger.RecordStage(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if recs[3].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	latest, err := ledger.LatestStages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 3 {
		t.Fatalf("expected 3 latest records, got %d", len(latest))
	}
	// ordered by lot, stage: L1/convert, L1/download, L2/download
	if latest[0].LotID != "L1" || latest[0].Stage != "convert" || latest[0].Status != models.StatusDone {
		t.Errorf("latest[0] = %+v", latest[0])
	}
	if latest[2].LotID != "L2" || latest[2].Status != models.StatusSkipped {
		t.Errorf("latest[2] = %+v", latest[2])
	}

	run1, err := ledger.RunRecords(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if len(run1) != 2 || run1[1].Detail != "boom" {
		t.Errorf("run1 = %+v", run1)
	}
}

func TestSQLiteLedger_reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	l1, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l1.RecordStage(ctx, &models.StageRecord{RunID: "r", LotID: "L", Stage: "expand", Status: models.StatusDone}); err != nil {
		t.Fatal(err)
	}
	l1.Close()

	l2, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	latest, err := l2.LatestStages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 {
		t.Errorf("expected record to survive reopen, got %d", len(latest))
	}
}
