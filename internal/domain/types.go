// Package domain defines the core data types shared across the stocksense
// platform: price candles, model metrics, ledger records, and sentiment
// results.
package domain

import (
	"fmt"
	"time"
)

// Candle is a single daily OHLCV record.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is an ordered sequence of daily candles for one symbol.
// Invariants: strictly increasing dates, no duplicates, non-negative volume.
// A series is immutable once returned by the gateway.
type PriceSeries struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// Len returns the number of candles in the series.
func (s PriceSeries) Len() int { return len(s.Candles) }

// Empty reports whether the series contains no candles.
func (s PriceSeries) Empty() bool { return len(s.Candles) == 0 }

// Closes returns the close-price column in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		closes[i] = c.Close
	}
	return closes
}

// LastClose returns the most recent close price, or 0 for an empty series.
func (s PriceSeries) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}

// Validate checks the series invariants: strictly increasing dates with no
// duplicates, and non-negative volume.
func (s PriceSeries) Validate() error {
	for i, c := range s.Candles {
		if c.Volume < 0 {
			return fmt.Errorf("candle %d (%s): negative volume %d", i, c.Date.Format("2006-01-02"), c.Volume)
		}
		if i == 0 {
			continue
		}
		prev := s.Candles[i-1]
		if !c.Date.After(prev.Date) {
			return fmt.Errorf("candle %d: date %s not after %s", i,
				c.Date.Format("2006-01-02"), prev.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Metrics holds the evaluation results for one symbol's trained model.
type Metrics struct {
	RMSE       float64   `json:"rmse"`
	MAE        float64   `json:"mae"`
	MAPE       float64   `json:"mape"`
	TrainedOn  time.Time `json:"trained_on"`
	DataPoints int       `json:"data_points"`
}

// PredictionRecord is one row of the append-only prediction ledger.
type PredictionRecord struct {
	Symbol         string    `json:"symbol"`
	Date           string    `json:"date"` // YYYY-MM-DD
	PredictedPrice float64   `json:"predicted_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// RetrainLogEntry is one row of the append-only retrain audit trail.
type RetrainLogEntry struct {
	RetrainTime  time.Time `json:"retrain_time"`
	ModelVersion string    `json:"model_version"`
	Notes        string    `json:"notes"`
}

// Sentiment labels for classified headlines.
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentError    = "ERROR"
)

// SentimentRecord is one classified headline. Score is the signed polarity
// (+1 positive, -1 negative, 0 neutral); Confidence is the classifier's
// probability for the chosen label.
type SentimentRecord struct {
	Headline   string  `json:"headline"`
	Label      string  `json:"label"`
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
}
