// Package scheduler drives background retraining on a cron schedule. Each
// run only retrains the symbols the monitor flags as stale or drifting.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"stocksense/internal/monitor"
	"stocksense/internal/train"
)

// Scheduler manages the periodic retrain task.
type Scheduler struct {
	cron    *cron.Cron
	trainer *train.Trainer
	monitor *monitor.Monitor
	symbols []string
	running atomic.Bool
	log     *slog.Logger
}

// New creates a Scheduler over the tracked symbols.
func New(trainer *train.Trainer, m *monitor.Monitor, symbols []string) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		trainer: trainer,
		monitor: m,
		symbols: symbols,
		log:     slog.Default().With("component", "scheduler"),
	}
}

// Register adds the retrain task under the given cron expression (with a
// seconds field).
func (s *Scheduler) Register(ctx context.Context, spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.retrainTask(ctx) }); err != nil {
		return fmt.Errorf("register retrain task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "symbols", len(s.symbols))
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes the retrain task immediately.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.retrainTask(ctx)
}

// retrainTask checks every tracked symbol and retrains the ones that need
// it. Overlapping runs are skipped.
func (s *Scheduler) retrainTask(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("retrain task still running, skipping this tick")
		return
	}
	defer s.running.Store(false)

	var due []string
	for _, symbol := range s.symbols {
		health, err := s.monitor.Check(ctx, symbol)
		if err != nil {
			s.log.Warn("health check failed", "symbol", symbol, "error", err)
			continue
		}
		if health.NeedsRetrain() {
			s.log.Info("retrain due",
				"symbol", symbol,
				"freshness", health.Freshness,
				"drift", health.Drift,
				"accuracy", health.Accuracy)
			due = append(due, symbol)
		}
	}

	if len(due) == 0 {
		s.log.Info("all models healthy, nothing to retrain")
		return
	}

	report, err := s.trainer.TrainBatch(ctx, due, "scheduled retrain")
	if err != nil {
		s.log.Error("scheduled retrain aborted", "error", err)
		return
	}
	s.log.Info("scheduled retrain finished",
		"runID", report.RunID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", report.Duration.Round(time.Millisecond))
}
