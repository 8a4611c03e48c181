// Package httpapi exposes the analytics pipeline over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"stocksense/internal/domain"
	"stocksense/internal/features"
	"stocksense/internal/indicators"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
	"stocksense/internal/monitor"
	"stocksense/internal/predict"
	"stocksense/internal/sentiment"
	"stocksense/internal/train"
)

// Server serves the analytics HTTP API.
type Server struct {
	gateway   *marketdata.Gateway
	store     *model.Store
	ledger    *ledger.SQLiteLedger
	trainer   *train.Trainer
	predictor *predict.Predictor
	monitor   *monitor.Monitor
	scorer    *sentiment.Scorer
	symbols   []string
	log       *slog.Logger
}

// NewServer creates a Server over the pipeline components. scorer may be nil
// when no classifier endpoint is configured.
func NewServer(
	gateway *marketdata.Gateway,
	store *model.Store,
	l *ledger.SQLiteLedger,
	trainer *train.Trainer,
	predictor *predict.Predictor,
	m *monitor.Monitor,
	scorer *sentiment.Scorer,
	symbols []string,
) *Server {
	return &Server{
		gateway:   gateway,
		store:     store,
		ledger:    l,
		trainer:   trainer,
		predictor: predictor,
		monitor:   m,
		scorer:    scorer,
		symbols:   symbols,
		log:       slog.Default().With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/predict/{symbol}", s.handlePredict)
	mux.HandleFunc("POST /api/train/{symbol}", s.handleTrain)
	mux.HandleFunc("POST /api/retrain", s.handleRetrain)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/sentiment/{symbol}", s.handleSentiment)
	mux.HandleFunc("GET /api/metrics/{symbol}", s.handleMetrics)
	mux.HandleFunc("GET /api/candles/{symbol}", s.handleCandles)
	mux.HandleFunc("GET /api/retrain/log", s.handleRetrainLog)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// symbolParam extracts and normalizes the symbol path parameter.
func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, SymbolsResponse{Symbols: s.symbols})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	pred, err := s.predictor.Predict(r.Context(), symbol)
	if err != nil {
		s.log.Error("prediction failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	if pred == nil {
		writeError(w, http.StatusNotFound, "no prediction available for "+symbol)
		return
	}

	resp := PredictResponse{Prediction: pred}
	if health, err := s.monitor.Check(r.Context(), symbol); err == nil {
		resp.Health = health
	}
	writeJSON(w, resp)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	metrics, err := s.trainer.Train(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, features.ErrInsufficientData) {
			writeError(w, http.StatusConflict, "not enough price history for "+symbol)
			return
		}
		s.log.Error("training failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "training failed")
		return
	}
	writeJSON(w, TrainResponse{Symbol: symbol, Metrics: metrics})
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	// Retraining every tracked symbol outlives most request deadlines, so
	// the batch uses the server's own context.
	report, err := s.trainer.TrainBatch(context.WithoutCancel(r.Context()), s.symbols, "api retrain")
	if err != nil {
		s.log.Error("batch retrain failed", "error", err)
		writeError(w, http.StatusInternalServerError, "batch retrain failed")
		return
	}
	writeJSON(w, RetrainResponse{Report: report})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	records, err := s.ledger.History(r.Context(), symbol)
	if err != nil {
		s.log.Error("reading history failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	if records == nil {
		records = []domain.PredictionRecord{}
	}
	writeJSON(w, HistoryResponse{Symbol: symbol, Predictions: records})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	if s.scorer == nil {
		writeError(w, http.StatusServiceUnavailable, "sentiment scoring not configured")
		return
	}
	symbol := symbolParam(r)
	summary, err := s.scorer.Score(r.Context(), symbol)
	if err != nil {
		s.log.Error("sentiment scoring failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "sentiment scoring failed")
		return
	}
	writeJSON(w, SentimentResponse{Summary: summary})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	metrics, err := s.store.LoadMetrics(symbol)
	if err != nil {
		s.log.Error("loading metrics failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "loading metrics failed")
		return
	}
	if metrics == nil {
		writeError(w, http.StatusNotFound, "no trained model for "+symbol)
		return
	}

	resp := MetricsResponse{Symbol: symbol, Metrics: metrics}
	if health, err := s.monitor.Check(r.Context(), symbol); err == nil {
		resp.Health = health
	}
	writeJSON(w, resp)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	series, err := s.gateway.DailyHistory(r.Context(), symbol)
	if err != nil {
		s.log.Error("fetching candles failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "fetching candles failed")
		return
	}
	if series.Empty() {
		writeError(w, http.StatusNotFound, "no price data for "+symbol)
		return
	}

	writeJSON(w, CandlesResponse{
		Symbol:     symbol,
		Candles:    series.Candles,
		Indicators: indicators.Compute(series.Closes()),
	})
}

func (s *Server) handleRetrainLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.ledger.RetrainLog(r.Context(), limit)
	if err != nil {
		s.log.Error("reading retrain log failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reading retrain log failed")
		return
	}
	if entries == nil {
		entries = []domain.RetrainLogEntry{}
	}
	writeJSON(w, RetrainLogResponse{Entries: entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Tracked: len(s.symbols)})
}
