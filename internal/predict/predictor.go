// Package predict produces next-day close forecasts from persisted model
// artifacts and records them in the prediction ledger.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stocksense/internal/domain"
	"stocksense/internal/features"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
)

// Prediction is a single next-day forecast.
type Prediction struct {
	Symbol         string          `json:"symbol"`
	Date           string          `json:"date"` // YYYY-MM-DD, the day being forecast
	PredictedPrice float64         `json:"predicted_price"`
	LastClose      float64         `json:"last_close"`
	Metrics        *domain.Metrics `json:"metrics,omitempty"`
}

// Predictor loads artifacts, fetches fresh history, and runs inference.
type Predictor struct {
	gateway    *marketdata.Gateway
	store      *model.Store
	ledger     *ledger.SQLiteLedger
	windowSize int
	log        *slog.Logger
}

// NewPredictor creates a Predictor. ledger may be nil to skip recording.
func NewPredictor(gateway *marketdata.Gateway, store *model.Store, l *ledger.SQLiteLedger, windowSize int) *Predictor {
	return &Predictor{
		gateway:    gateway,
		store:      store,
		ledger:     l,
		windowSize: windowSize,
		log:        slog.Default().With("component", "predictor"),
	}
}

// Predict forecasts the next-day close for a symbol. A symbol that has never
// been trained, or whose history is shorter than the inference window, yields
// (nil, nil). Prediction is pure inference: repeated calls against the same
// history return the same price.
func (p *Predictor) Predict(ctx context.Context, symbol string) (*Prediction, error) {
	symbol = strings.ToUpper(symbol)

	net, err := p.store.LoadModel(symbol)
	if err != nil {
		return nil, err
	}
	scaler, err := p.store.LoadScaler(symbol)
	if err != nil {
		return nil, err
	}
	if net == nil || scaler == nil {
		return nil, nil
	}

	series, err := p.gateway.DailyHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	window, err := features.LastWindow(series, p.windowSize, scaler)
	if errors.Is(err, features.ErrInsufficientData) {
		p.log.Warn("not enough history for inference", "symbol", symbol, "rows", series.Len())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("building inference window for %s: %w", symbol, err)
	}

	scaled, err := net.Predict(window)
	if err != nil {
		return nil, fmt.Errorf("inference for %s: %w", symbol, err)
	}
	prices, err := scaler.InverseTransform([]float64{scaled})
	if err != nil {
		return nil, err
	}

	metrics, err := p.store.LoadMetrics(symbol)
	if err != nil {
		return nil, err
	}

	lastDate := series.Candles[series.Len()-1].Date
	pred := &Prediction{
		Symbol:         symbol,
		Date:           lastDate.AddDate(0, 0, 1).Format("2006-01-02"),
		PredictedPrice: prices[0],
		LastClose:      series.LastClose(),
		Metrics:        metrics,
	}

	if p.ledger != nil {
		rec := domain.PredictionRecord{
			Symbol:         symbol,
			Date:           pred.Date,
			PredictedPrice: pred.PredictedPrice,
			CreatedAt:      time.Now().UTC(),
		}
		if err := p.ledger.Append(ctx, rec); err != nil {
			p.log.Warn("recording prediction failed", "symbol", symbol, "error", err)
		}
	}

	return pred, nil
}
