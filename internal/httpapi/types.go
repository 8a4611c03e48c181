package httpapi

import (
	"stocksense/internal/domain"
	"stocksense/internal/indicators"
	"stocksense/internal/monitor"
	"stocksense/internal/predict"
	"stocksense/internal/sentiment"
	"stocksense/internal/train"
)

// SymbolsResponse lists the tracked symbols.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// PredictResponse carries a forecast plus the model's health verdict.
type PredictResponse struct {
	Prediction *predict.Prediction `json:"prediction"`
	Health     *monitor.Health     `json:"health,omitempty"`
}

// TrainResponse carries the metrics of a just-finished training run.
type TrainResponse struct {
	Symbol  string          `json:"symbol"`
	Metrics *domain.Metrics `json:"metrics"`
}

// RetrainResponse carries the batch report of a full retrain.
type RetrainResponse struct {
	Report *train.BatchReport `json:"report"`
}

// HistoryResponse lists recorded predictions for one symbol.
type HistoryResponse struct {
	Symbol      string                    `json:"symbol"`
	Predictions []domain.PredictionRecord `json:"predictions"`
}

// SentimentResponse carries the scored news coverage for one symbol.
type SentimentResponse struct {
	Summary *sentiment.Summary `json:"summary"`
}

// MetricsResponse carries the stored evaluation metrics for one symbol.
type MetricsResponse struct {
	Symbol  string          `json:"symbol"`
	Metrics *domain.Metrics `json:"metrics"`
	Health  *monitor.Health `json:"health,omitempty"`
}

// CandlesResponse carries price history plus technical indicators.
type CandlesResponse struct {
	Symbol     string              `json:"symbol"`
	Candles    []domain.Candle     `json:"candles"`
	Indicators indicators.Snapshot `json:"indicators"`
}

// RetrainLogResponse lists retrain audit entries, newest first.
type RetrainLogResponse struct {
	Entries []domain.RetrainLogEntry `json:"entries"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Tracked int    `json:"tracked"`
}
