// stocksense-server runs the analytics HTTP API and, when a schedule is
// configured, the background retrain loop. The -retrain-now flag triggers
// one drift-checked retrain pass at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stocksense/internal/app"
	"stocksense/internal/config"
	"stocksense/internal/httpapi"
	"stocksense/internal/scheduler"
	"stocksense/internal/util"
)

func main() {
	retrainNow := flag.Bool("retrain-now", false, "run a drift-checked retrain pass at startup")
	flag.Parse()

	_ = godotenv.Load()

	cfgPath := "config/stocksense.yaml"
	if p := os.Getenv("STOCKSENSE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level))

	a, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(
		a.Gateway, a.Store, a.Ledger, a.Trainer, a.Predictor, a.Monitor, a.Scorer,
		cfg.Retrain.Symbols)

	sched := scheduler.New(a.Trainer, a.Monitor, cfg.Retrain.Symbols)
	if cfg.Retrain.Schedule != "" {
		if err := sched.Register(ctx, cfg.Retrain.Schedule); err != nil {
			log.Fatalf("failed to register retrain schedule: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}
	if *retrainNow {
		go sched.RunNow(ctx)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("stocksense-server listening on %s\n", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}
}
