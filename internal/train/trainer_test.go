package train

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"stocksense/internal/config"
	"stocksense/internal/domain"
	"stocksense/internal/features"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
)

// fixedProvider serves canned series keyed by symbol.
type fixedProvider struct {
	series map[string]domain.PriceSeries
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) DailyHistory(_ context.Context, symbol string) (domain.PriceSeries, error) {
	if s, ok := p.series[symbol]; ok {
		return s, nil
	}
	return domain.PriceSeries{Symbol: symbol}, errors.New("unknown symbol")
}

func syntheticSeries(symbol string, n int) domain.PriceSeries {
	base := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		price := 150 + 25*math.Sin(float64(i)/11.0) + 0.02*float64(i)
		candles[i] = domain.Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + 2,
			Low:    price - 2,
			Close:  price,
			Volume: 1_000_000,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Candles: candles}
}

func testModelConfig() config.ModelConfig {
	return config.ModelConfig{
		WindowSize:   60,
		TestFraction: 0.2,
		HiddenUnits:  8,
		DenseUnits:   4,
		Dropout:      0.2,
		Epochs:       2,
		BatchSize:    32,
		Patience:     5,
		LearningRate: 0.01,
	}
}

func newTestTrainer(t *testing.T, series map[string]domain.PriceSeries) (*Trainer, *model.Store, *ledger.SQLiteLedger) {
	t.Helper()
	provider := &fixedProvider{series: series}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())

	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	return NewTrainer(gw, store, l, testModelConfig()), store, l
}

func TestTrainPersistsArtifacts(t *testing.T) {
	trainer, store, _ := newTestTrainer(t, map[string]domain.PriceSeries{
		"AAPL": syntheticSeries("AAPL", 500),
	})

	metrics, err := trainer.Train(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	if metrics.DataPoints != 500 {
		t.Errorf("DataPoints = %d, want 500", metrics.DataPoints)
	}
	if metrics.TrainedOn.IsZero() {
		t.Error("TrainedOn should be set")
	}
	for name, v := range map[string]float64{"RMSE": metrics.RMSE, "MAE": metrics.MAE, "MAPE": metrics.MAPE} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Errorf("%s = %v, want finite and non-negative", name, v)
		}
	}

	net, err := store.LoadModel("AAPL")
	if err != nil {
		t.Fatalf("LoadModel() error: %v", err)
	}
	if net == nil || !net.Trained {
		t.Error("trained model should be persisted")
	}
	scaler, err := store.LoadScaler("AAPL")
	if err != nil {
		t.Fatalf("LoadScaler() error: %v", err)
	}
	if scaler == nil || !scaler.Fitted {
		t.Error("fitted scaler should be persisted")
	}
}

func TestTrainAppendsRetrainLog(t *testing.T) {
	trainer, _, l := newTestTrainer(t, map[string]domain.PriceSeries{
		"NFLX": syntheticSeries("NFLX", 300),
	})

	metrics, err := trainer.Train(context.Background(), "nflx")
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	entries, err := l.RetrainLog(context.Background(), 0)
	if err != nil {
		t.Fatalf("RetrainLog() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d retrain entries, want 1", len(entries))
	}
	wantVersion := "NFLX_v" + metrics.TrainedOn.Format("20060102")
	if entries[0].ModelVersion != wantVersion {
		t.Errorf("ModelVersion = %q, want %q", entries[0].ModelVersion, wantVersion)
	}
}

func TestTrainInsufficientData(t *testing.T) {
	trainer, _, _ := newTestTrainer(t, map[string]domain.PriceSeries{
		"TSLA": syntheticSeries("TSLA", 55),
	})

	_, err := trainer.Train(context.Background(), "TSLA")
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Errorf("Train() error = %v, want ErrInsufficientData", err)
	}
}

func TestTrainBatchContinuesOnFailure(t *testing.T) {
	trainer, _, l := newTestTrainer(t, map[string]domain.PriceSeries{
		"AAPL": syntheticSeries("AAPL", 300),
		"MSFT": syntheticSeries("MSFT", 10), // too short, will fail
	})

	report, err := trainer.TrainBatch(context.Background(), []string{"AAPL", "MSFT"}, "test run")
	if err != nil {
		t.Fatalf("TrainBatch() error: %v", err)
	}

	if report.RunID == "" {
		t.Error("report should carry a run ID")
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	if report.Results[0].Symbol != "AAPL" || report.Results[0].Error != "" {
		t.Errorf("AAPL result = %+v, want success", report.Results[0])
	}
	if report.Results[1].Symbol != "MSFT" || report.Results[1].Error == "" {
		t.Errorf("MSFT result = %+v, want failure", report.Results[1])
	}

	// Only the successful symbol gets a retrain-log entry.
	entries, err := l.RetrainLog(context.Background(), 0)
	if err != nil {
		t.Fatalf("RetrainLog() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d retrain entries, want 1", len(entries))
	}
	wantVersion := "AAPL_v" + entries[0].RetrainTime.Format("20060102")
	if entries[0].ModelVersion != wantVersion {
		t.Errorf("ModelVersion = %q, want %q", entries[0].ModelVersion, wantVersion)
	}
}
