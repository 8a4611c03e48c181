package predict

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"stocksense/internal/config"
	"stocksense/internal/domain"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
	"stocksense/internal/train"
)

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
		price := 180 + 15*math.Sin(float64(i)/13.0)
		candles[i] = domain.Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + 2,
			Low:    price - 2,
			Close:  price,
			Volume: 500_000,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Candles: candles}
}

// trainSymbol fits and persists artifacts for a symbol so the predictor has
// something to load.
func trainSymbol(t *testing.T, gw *marketdata.Gateway, store *model.Store, symbol string) {
	t.Helper()
	cfg := config.ModelConfig{
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
	trainer := train.NewTrainer(gw, store, nil, cfg)
	if _, err := trainer.Train(context.Background(), symbol); err != nil {
		t.Fatalf("Train(%s) error: %v", symbol, err)
	}
}

func TestPredictTrainedSymbol(t *testing.T) {
	provider := &fixedProvider{series: map[string]domain.PriceSeries{
		"AAPL": syntheticSeries("AAPL", 300),
	}}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())
	trainSymbol(t, gw, store, "AAPL")

	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error: %v", err)
	}
	defer l.Close()

	p := NewPredictor(gw, store, l, 60)
	pred, err := p.Predict(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if pred == nil {
		t.Fatal("Predict() returned nil for trained symbol")
	}
	if pred.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", pred.Symbol)
	}
	if math.IsNaN(pred.PredictedPrice) || math.IsInf(pred.PredictedPrice, 0) {
		t.Errorf("PredictedPrice = %v, want finite", pred.PredictedPrice)
	}
	if pred.Metrics == nil {
		t.Error("prediction should carry the training metrics")
	}

	// Forecast date is the day after the last candle.
	last := provider.series["AAPL"].Candles[299].Date
	if want := last.AddDate(0, 0, 1).Format("2006-01-02"); pred.Date != want {
		t.Errorf("Date = %q, want %q", pred.Date, want)
	}

	// Prediction was appended to the ledger.
	history, err := l.History(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d ledger rows, want 1", len(history))
	}
	if history[0].PredictedPrice != pred.PredictedPrice {
		t.Errorf("ledger price = %v, want %v", history[0].PredictedPrice, pred.PredictedPrice)
	}
}

func TestPredictIdempotent(t *testing.T) {
	provider := &fixedProvider{series: map[string]domain.PriceSeries{
		"MSFT": syntheticSeries("MSFT", 300),
	}}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())
	trainSymbol(t, gw, store, "MSFT")

	p := NewPredictor(gw, store, nil, 60)

	first, err := p.Predict(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	second, err := p.Predict(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if first.PredictedPrice != second.PredictedPrice {
		t.Errorf("repeated predictions differ: %v vs %v", first.PredictedPrice, second.PredictedPrice)
	}
}

func TestPredictShortSeries(t *testing.T) {
	// Train against full history, then serve a truncated feed. A series
	// shorter than the inference window means no forecast, not an error.
	provider := &fixedProvider{series: map[string]domain.PriceSeries{
		"AAPL": syntheticSeries("AAPL", 300),
	}}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())
	trainSymbol(t, gw, store, "AAPL")

	provider.series["AAPL"] = syntheticSeries("AAPL", 10)

	p := NewPredictor(gw, store, nil, 60)
	pred, err := p.Predict(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if pred != nil {
		t.Errorf("Predict() = %+v, want nil for short series", pred)
	}
}

func TestPredictUntrainedSymbol(t *testing.T) {
	provider := &fixedProvider{series: map[string]domain.PriceSeries{}}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())

	p := NewPredictor(gw, store, nil, 60)
	pred, err := p.Predict(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if pred != nil {
		t.Errorf("Predict() = %+v, want nil for untrained symbol", pred)
	}
}
