// Package train runs the per-symbol training pipeline: fetch history,
// prepare features, fit the network, evaluate in price space, and persist
// the artifacts.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"stocksense/internal/config"
	"stocksense/internal/domain"
	"stocksense/internal/features"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
)

// Trainer wires the market-data gateway, feature preparation, the network,
// and the artifact store into a single training pipeline.
type Trainer struct {
	gateway *marketdata.Gateway
	store   *model.Store
	ledger  *ledger.SQLiteLedger
	cfg     config.ModelConfig
	log     *slog.Logger
}

// NewTrainer creates a Trainer. ledger may be nil to skip retrain logging.
func NewTrainer(gateway *marketdata.Gateway, store *model.Store, l *ledger.SQLiteLedger, cfg config.ModelConfig) *Trainer {
	return &Trainer{
		gateway: gateway,
		store:   store,
		ledger:  l,
		cfg:     cfg,
		log:     slog.Default().With("component", "trainer"),
	}
}

// Train runs the full pipeline for one symbol and returns the evaluation
// metrics. Artifacts of a previous run are overwritten, and a retrain-log
// entry is appended on success.
func (t *Trainer) Train(ctx context.Context, symbol string) (*domain.Metrics, error) {
	metrics, err := t.train(ctx, symbol)
	if err != nil {
		return nil, err
	}
	t.logRetrain(ctx, symbol, metrics, "single-symbol train")
	return metrics, nil
}

func (t *Trainer) train(ctx context.Context, symbol string) (*domain.Metrics, error) {
	symbol = strings.ToUpper(symbol)
	started := time.Now()

	series, err := t.gateway.DailyHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	ds, scaler, err := features.Prepare(series, t.cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("preparing features for %s: %w", symbol, err)
	}
	trainSet, testSet := ds.SplitTemporal(t.cfg.TestFraction)

	net := model.NewNetwork(model.Arch{
		WindowSize:  t.cfg.WindowSize,
		HiddenUnits: t.cfg.HiddenUnits,
		DenseUnits:  t.cfg.DenseUnits,
		Dropout:     t.cfg.Dropout,
	}, time.Now().UnixNano())

	report, err := net.Fit(trainSet, testSet, model.FitOptions{
		Epochs:       t.cfg.Epochs,
		BatchSize:    t.cfg.BatchSize,
		Patience:     t.cfg.Patience,
		LearningRate: t.cfg.LearningRate,
		Seed:         time.Now().UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", symbol, err)
	}

	metrics, err := evaluate(net, testSet, scaler)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", symbol, err)
	}
	metrics.TrainedOn = time.Now().UTC()
	metrics.DataPoints = series.Len()

	if err := t.store.SaveModel(symbol, net); err != nil {
		return nil, fmt.Errorf("saving model for %s: %w", symbol, err)
	}
	if err := t.store.SaveScaler(symbol, scaler); err != nil {
		return nil, fmt.Errorf("saving scaler for %s: %w", symbol, err)
	}
	if err := t.store.SaveMetrics(symbol, metrics); err != nil {
		return nil, fmt.Errorf("saving metrics for %s: %w", symbol, err)
	}

	t.log.Info("training complete",
		"symbol", symbol,
		"dataPoints", metrics.DataPoints,
		"epochs", report.Epochs,
		"earlyStopped", report.EarlyStopped,
		"rmse", metrics.RMSE,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return metrics, nil
}

// logRetrain appends a versioned retrain-log entry. Ledger failures are
// logged, never fatal.
func (t *Trainer) logRetrain(ctx context.Context, symbol string, metrics *domain.Metrics, notes string) {
	if t.ledger == nil {
		return
	}
	symbol = strings.ToUpper(symbol)
	entry := domain.RetrainLogEntry{
		RetrainTime:  metrics.TrainedOn,
		ModelVersion: fmt.Sprintf("%s_v%s", symbol, metrics.TrainedOn.Format("20060102")),
		Notes:        notes,
	}
	if err := t.ledger.AppendRetrain(ctx, entry); err != nil {
		t.log.Warn("recording retrain log failed", "symbol", symbol, "error", err)
	}
}

// evaluate computes RMSE, MAE, and MAPE over the test partition in original
// price space. An empty test partition yields zero metrics.
func evaluate(net *model.Network, testSet features.Dataset, scaler *features.MinMaxScaler) (*domain.Metrics, error) {
	if testSet.Len() == 0 {
		return &domain.Metrics{}, nil
	}

	preds, err := scaler.InverseTransform(net.Evaluate(testSet))
	if err != nil {
		return nil, err
	}
	actuals, err := scaler.InverseTransform(testSet.Y)
	if err != nil {
		return nil, err
	}

	var sse, sae, sape float64
	var apeCount int
	for i := range preds {
		diff := preds[i] - actuals[i]
		sse += diff * diff
		sae += math.Abs(diff)
		if actuals[i] != 0 {
			sape += math.Abs(diff / actuals[i])
			apeCount++
		}
	}

	n := float64(len(preds))
	m := &domain.Metrics{
		RMSE: math.Sqrt(sse / n),
		MAE:  sae / n,
	}
	if apeCount > 0 {
		m.MAPE = sape / float64(apeCount) * 100
	}
	return m, nil
}

// SymbolResult is the outcome of one symbol within a batch run.
type SymbolResult struct {
	Symbol  string          `json:"symbol"`
	Metrics *domain.Metrics `json:"metrics,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BatchReport summarizes a batch training run.
type BatchReport struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Results   []SymbolResult `json:"results"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// TrainBatch trains every symbol in order, collecting per-symbol outcomes.
// A failed symbol never aborts the batch. Each successful symbol gets a
// retrain-log entry versioned by date.
func (t *Trainer) TrainBatch(ctx context.Context, symbols []string, notes string) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := t.log.With("runID", report.RunID)
	log.Info("batch training started", "symbols", len(symbols))

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		symbol = strings.ToUpper(symbol)

		metrics, err := t.train(ctx, symbol)
		if err != nil {
			log.Warn("symbol training failed", "symbol", symbol, "error", err)
			report.Results = append(report.Results, SymbolResult{Symbol: symbol, Error: err.Error()})
			report.Failed++
			continue
		}
		report.Results = append(report.Results, SymbolResult{Symbol: symbol, Metrics: metrics})
		report.Succeeded++

		t.logRetrain(ctx, symbol, metrics, fmt.Sprintf("run %s: %s", report.RunID, notes))
	}

	report.Duration = time.Since(report.StartedAt)
	log.Info("batch training finished", "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}
