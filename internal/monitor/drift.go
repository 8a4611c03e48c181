// Package monitor assesses model health: how recently a model was trained
// and whether its recorded predictions still track the market direction.
package monitor

import (
	"context"
	"strings"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
)

// Freshness buckets by training age.
const (
	FreshnessFresh     = "fresh" // trained within the last 7 days
	FreshnessAging     = "aging" // 7 to 30 days old
	FreshnessStale     = "stale" // more than 30 days old
	FreshnessUntrained = "untrained"
)

// DriftThreshold is the minimum directional accuracy before a model is
// flagged as drifting.
const DriftThreshold = 0.80

// Health is the monitor's verdict for one symbol.
type Health struct {
	Symbol      string  `json:"symbol"`
	Freshness   string  `json:"freshness"`
	TrainedOn   string  `json:"trained_on,omitempty"`
	Accuracy    float64 `json:"accuracy"`
	SampleCount int     `json:"sample_count"`
	Drift       bool    `json:"drift"`
}

// NeedsRetrain reports whether the model should be retrained: stale, never
// trained, or drifting.
func (h Health) NeedsRetrain() bool {
	return h.Freshness == FreshnessStale || h.Freshness == FreshnessUntrained || h.Drift
}

// Monitor evaluates model health from metrics, the ledger, and market data.
type Monitor struct {
	gateway *marketdata.Gateway
	store   *model.Store
	ledger  *ledger.SQLiteLedger
}

// NewMonitor creates a Monitor.
func NewMonitor(gateway *marketdata.Gateway, store *model.Store, l *ledger.SQLiteLedger) *Monitor {
	return &Monitor{gateway: gateway, store: store, ledger: l}
}

// Check assesses one symbol. Directional accuracy compares each recorded
// prediction against what the price actually did on the predicted day;
// predictions whose day has no candle yet are skipped.
func (m *Monitor) Check(ctx context.Context, symbol string) (*Health, error) {
	symbol = strings.ToUpper(symbol)
	health := &Health{Symbol: symbol, Freshness: FreshnessUntrained}

	metrics, err := m.store.LoadMetrics(symbol)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		return health, nil
	}
	health.Freshness = freshness(metrics.TrainedOn, time.Now().UTC())
	health.TrainedOn = metrics.TrainedOn.Format("2006-01-02")

	history, err := m.ledger.History(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return health, nil
	}

	series, err := m.gateway.DailyHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	health.Accuracy, health.SampleCount = directionalAccuracy(history, series)
	health.Drift = health.SampleCount > 0 && health.Accuracy < DriftThreshold
	return health, nil
}

// freshness buckets the training age.
func freshness(trainedOn, now time.Time) string {
	age := now.Sub(trainedOn)
	switch {
	case age <= 7*24*time.Hour:
		return FreshnessFresh
	case age <= 30*24*time.Hour:
		return FreshnessAging
	default:
		return FreshnessStale
	}
}

// directionalAccuracy scores each prediction by whether it called the move
// direction correctly relative to the close preceding the predicted day.
func directionalAccuracy(history []domain.PredictionRecord, series domain.PriceSeries) (float64, int) {
	closeByDate := make(map[string]float64, series.Len())
	prevClose := make(map[string]float64, series.Len())
	for i, c := range series.Candles {
		date := c.Date.Format("2006-01-02")
		closeByDate[date] = c.Close
		if i > 0 {
			prevClose[date] = series.Candles[i-1].Close
		}
	}

	var correct, total int
	for _, rec := range history {
		actual, ok := closeByDate[rec.Date]
		if !ok {
			continue
		}
		prev, ok := prevClose[rec.Date]
		if !ok {
			continue
		}
		predictedUp := rec.PredictedPrice >= prev
		actualUp := actual >= prev
		if predictedUp == actualUp {
			correct++
		}
		total++
	}

	if total == 0 {
		return 0, 0
	}
	return float64(correct) / float64(total), total
}
