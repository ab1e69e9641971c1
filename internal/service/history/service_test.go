package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"audiofeedback/internal/config"
	"audiofeedback/internal/models"
	"audiofeedback/internal/storage"
)

func TestRecordAndGetAnalysis(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rec := &models.AnalysisRecord{
		FileName:          "loop.wav",
		Size:              44144,
		Digest:            "d1",
		Tempo:             117.45,
		SpectralCentroid:  452.2,
		SpectralBandwidth: 83.9,
		RMS:               0.35,
		SampleRate:        22050,
		Channels:          1,
		Duration:          1,
		ElapsedMS:         12,
	}
	if err := svc.RecordAnalysis(ctx, rec); err != nil {
		t.Fatalf("RecordAnalysis: %v", err)
	}
	if rec.ID == 0 || rec.CreatedAt.IsZero() {
		t.Fatalf("record not populated: %+v", rec)
	}
	if rec.Status != models.AnalysisOK {
		t.Fatalf("expected ok status, got %s", rec.Status)
	}

	got, err := svc.GetAnalysis(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.FileName != "loop.wav" || got.Tempo != 117.45 || got.SampleRate != 22050 || got.Status != models.AnalysisOK {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := svc.GetAnalysis(ctx, rec.ID+100); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRecordFailureStatus(t *testing.T) {
	svc := newTestService(t)
	rec := &models.AnalysisRecord{FileName: "empty.wav", Digest: "e3b0", Error: "decode audio: file is empty"}
	if err := svc.RecordAnalysis(context.Background(), rec); err != nil {
		t.Fatalf("RecordAnalysis: %v", err)
	}
	got, err := svc.GetAnalysis(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Status != models.AnalysisError || got.Error != rec.Error {
		t.Fatalf("unexpected failure record %+v", got)
	}
}

func TestListAnalysesNewestFirstAndLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"a.wav", "b.wav", "c.wav"} {
		if err := svc.RecordAnalysis(ctx, &models.AnalysisRecord{FileName: name, Digest: name}); err != nil {
			t.Fatalf("RecordAnalysis(%s): %v", name, err)
		}
	}

	all, err := svc.ListAnalyses(ctx, 0)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(all) != 3 || all[0].FileName != "c.wav" || all[2].FileName != "a.wav" {
		t.Fatalf("unexpected order: %+v", all)
	}

	two, err := svc.ListAnalyses(ctx, 2)
	if err != nil {
		t.Fatalf("ListAnalyses(2): %v", err)
	}
	if len(two) != 2 {
		t.Fatalf("expected 2 records, got %d", len(two))
	}
}

func TestDeleteAnalysis(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	rec := &models.AnalysisRecord{FileName: "gone.wav", Digest: "g"}
	if err := svc.RecordAnalysis(ctx, rec); err != nil {
		t.Fatalf("RecordAnalysis: %v", err)
	}

	deleted, err := svc.DeleteAnalysis(ctx, rec.ID)
	if err != nil {
		t.Fatalf("DeleteAnalysis: %v", err)
	}
	if deleted.Digest != "g" {
		t.Fatalf("unexpected deleted record %+v", deleted)
	}
	if _, err := svc.DeleteAnalysis(ctx, rec.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on second delete, got %v", err)
	}
	if _, err := svc.DeleteAnalysis(ctx, 0); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for id 0, got %v", err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, "sqlite3"); err == nil {
		t.Fatalf("expected error for nil db")
	}
	db := openTestDB(t)
	if _, err := NewService(db, "mssql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(openTestDB(t), "sqlite3")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
