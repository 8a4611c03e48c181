package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stocksense/internal/domain"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndHistory(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	prices := []float64{250.10, 252.35, 249.80}
	for i, p := range prices {
		rec := domain.PredictionRecord{
			Symbol:         "tsla",
			Date:           time.Date(2024, 6, 10+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			PredictedPrice: p,
		}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("Append() %d error: %v", i, err)
		}
	}

	got, err := l.History(ctx, "TSLA")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, rec := range got {
		if rec.Symbol != "TSLA" {
			t.Errorf("record %d symbol = %q, want TSLA", i, rec.Symbol)
		}
		if rec.PredictedPrice != prices[i] {
			t.Errorf("record %d price = %v, want %v (insertion order)", i, rec.PredictedPrice, prices[i])
		}
		if rec.CreatedAt.IsZero() {
			t.Errorf("record %d has zero CreatedAt", i)
		}
	}
}

func TestHistoryFiltersBySymbol(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	for _, sym := range []string{"AAPL", "MSFT", "AAPL"} {
		rec := domain.PredictionRecord{Symbol: sym, Date: "2024-06-10", PredictedPrice: 100}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%s) error: %v", sym, err)
		}
	}

	got, err := l.History(ctx, "AAPL")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d AAPL records, want 2", len(got))
	}

	got, err = l.History(ctx, "NFLX")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d NFLX records, want 0", len(got))
	}
}

func TestRetrainLog(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	entries := []domain.RetrainLogEntry{
		{ModelVersion: "AAPL_v20240601", Notes: "scheduled"},
		{ModelVersion: "MSFT_v20240601", Notes: "drift detected"},
		{ModelVersion: "AAPL_v20240608", Notes: "scheduled"},
	}
	for i, e := range entries {
		if err := l.AppendRetrain(ctx, e); err != nil {
			t.Fatalf("AppendRetrain() %d error: %v", i, err)
		}
	}

	got, err := l.RetrainLog(ctx, 2)
	if err != nil {
		t.Fatalf("RetrainLog() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 (limit)", len(got))
	}
	// Newest first.
	if got[0].ModelVersion != "AAPL_v20240608" {
		t.Errorf("first entry = %q, want AAPL_v20240608", got[0].ModelVersion)
	}
	if got[1].ModelVersion != "MSFT_v20240601" {
		t.Errorf("second entry = %q, want MSFT_v20240601", got[1].ModelVersion)
	}

	all, err := l.RetrainLog(ctx, 0)
	if err != nil {
		t.Fatalf("RetrainLog(0) error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d entries with no limit, want 3", len(all))
	}
}
