package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"stocksense/internal/config"
	"stocksense/internal/domain"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
	"stocksense/internal/monitor"
	"stocksense/internal/predict"
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
		price := 120 + 18*math.Sin(float64(i)/10.0)
		candles[i] = domain.Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Candles: candles}
}

// newTestServer assembles the full pipeline over a canned data provider.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	provider := &fixedProvider{series: map[string]domain.PriceSeries{
		"AAPL": syntheticSeries("AAPL", 200),
	}}
	gw := marketdata.NewGateway(nil, provider, nil, 50)
	store := model.NewStore(t.TempDir())

	l, err := ledger.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	cfg := config.ModelConfig{
		WindowSize:   60,
		TestFraction: 0.2,
		HiddenUnits:  8,
		DenseUnits:   4,
		Dropout:      0.2,
		Epochs:       1,
		BatchSize:    32,
		Patience:     5,
		LearningRate: 0.01,
	}
	trainer := train.NewTrainer(gw, store, l, cfg)
	predictor := predict.NewPredictor(gw, store, l, cfg.WindowSize)
	mon := monitor.NewMonitor(gw, store, l)

	srv := NewServer(gw, store, l, trainer, predictor, mon, nil, []string{"AAPL"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
}

func postJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
}

func TestHealthAndSymbols(t *testing.T) {
	ts := newTestServer(t)

	var health HealthResponse
	getJSON(t, ts.URL+"/api/health", http.StatusOK, &health)
	if health.Status != "ok" || health.Tracked != 1 {
		t.Errorf("health = %+v, want status ok, tracked 1", health)
	}

	var symbols SymbolsResponse
	getJSON(t, ts.URL+"/api/symbols", http.StatusOK, &symbols)
	if len(symbols.Symbols) != 1 || symbols.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL]", symbols.Symbols)
	}
}

func TestPredictUntrainedReturns404(t *testing.T) {
	ts := newTestServer(t)
	getJSON(t, ts.URL+"/api/predict/AAPL", http.StatusNotFound, nil)
}

func TestTrainThenPredict(t *testing.T) {
	ts := newTestServer(t)

	var trained TrainResponse
	postJSON(t, ts.URL+"/api/train/AAPL", http.StatusOK, &trained)
	if trained.Symbol != "AAPL" {
		t.Errorf("trained symbol = %q, want AAPL", trained.Symbol)
	}
	if trained.Metrics == nil || trained.Metrics.DataPoints != 200 {
		t.Errorf("metrics = %+v, want DataPoints 200", trained.Metrics)
	}

	var pred PredictResponse
	getJSON(t, ts.URL+"/api/predict/AAPL", http.StatusOK, &pred)
	if pred.Prediction == nil {
		t.Fatal("prediction missing after training")
	}
	if pred.Prediction.Symbol != "AAPL" {
		t.Errorf("prediction symbol = %q, want AAPL", pred.Prediction.Symbol)
	}
	if pred.Health == nil || pred.Health.Freshness != monitor.FreshnessFresh {
		t.Errorf("health = %+v, want fresh", pred.Health)
	}

	// The prediction landed in the ledger.
	var history HistoryResponse
	getJSON(t, ts.URL+"/api/history/AAPL", http.StatusOK, &history)
	if len(history.Predictions) != 1 {
		t.Errorf("got %d history rows, want 1", len(history.Predictions))
	}

	// Single-symbol training is audited too.
	var logResp RetrainLogResponse
	getJSON(t, ts.URL+"/api/retrain/log", http.StatusOK, &logResp)
	if len(logResp.Entries) != 1 {
		t.Errorf("got %d retrain entries, want 1", len(logResp.Entries))
	}
}

func TestTrainInsufficientDataReturns409(t *testing.T) {
	ts := newTestServer(t)
	postJSON(t, ts.URL+"/api/train/TSLA", http.StatusConflict, nil)
}

func TestCandles(t *testing.T) {
	ts := newTestServer(t)

	var resp CandlesResponse
	getJSON(t, ts.URL+"/api/candles/AAPL", http.StatusOK, &resp)
	if len(resp.Candles) != 200 {
		t.Errorf("got %d candles, want 200", len(resp.Candles))
	}
	if resp.Indicators.RSI14 < 0 || resp.Indicators.RSI14 > 100 {
		t.Errorf("RSI14 = %v, want within [0, 100]", resp.Indicators.RSI14)
	}

	getJSON(t, ts.URL+"/api/candles/NOPE", http.StatusNotFound, nil)
}

func TestMetricsUntrainedReturns404(t *testing.T) {
	ts := newTestServer(t)
	getJSON(t, ts.URL+"/api/metrics/AAPL", http.StatusNotFound, nil)
}

func TestSentimentUnconfiguredReturns503(t *testing.T) {
	ts := newTestServer(t)
	getJSON(t, ts.URL+"/api/sentiment/AAPL", http.StatusServiceUnavailable, nil)
}

func TestRetrainBatch(t *testing.T) {
	ts := newTestServer(t)

	var resp RetrainResponse
	postJSON(t, ts.URL+"/api/retrain", http.StatusOK, &resp)
	if resp.Report == nil {
		t.Fatal("retrain report missing")
	}
	if resp.Report.Succeeded != 1 || resp.Report.Failed != 0 {
		t.Errorf("report = %d/%d succeeded/failed, want 1/0", resp.Report.Succeeded, resp.Report.Failed)
	}
	if resp.Report.RunID == "" {
		t.Error("report should carry a run ID")
	}

	var logResp RetrainLogResponse
	getJSON(t, ts.URL+"/api/retrain/log", http.StatusOK, &logResp)
	if len(logResp.Entries) != 1 {
		t.Errorf("got %d retrain entries, want 1", len(logResp.Entries))
	}
}
