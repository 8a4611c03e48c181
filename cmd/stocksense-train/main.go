// stocksense-train trains models from the command line.
//
// Usage:
//
//	stocksense-train all          train every tracked symbol
//	stocksense-train AAPL MSFT    train specific symbols
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stocksense/internal/app"
	"stocksense/internal/config"
	"stocksense/internal/util"
)

func main() {
	_ = godotenv.Load()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: stocksense-train all | SYMBOL [SYMBOL...]")
		os.Exit(2)
	}

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

	symbols := args
	if len(args) == 1 && strings.EqualFold(args[0], "all") {
		symbols = cfg.Retrain.Symbols
	}

	report, err := a.Trainer.TrainBatch(ctx, symbols, "cli training")
	if err != nil {
		log.Fatalf("training aborted: %v", err)
	}

	for _, res := range report.Results {
		if res.Error != "" {
			fmt.Printf("%-6s FAILED  %s\n", res.Symbol, res.Error)
			continue
		}
		fmt.Printf("%-6s ok      rmse=%.4f mae=%.4f mape=%.2f%% points=%d\n",
			res.Symbol, res.Metrics.RMSE, res.Metrics.MAE, res.Metrics.MAPE, res.Metrics.DataPoints)
	}
	fmt.Printf("run %s: %d succeeded, %d failed in %s\n",
		report.RunID, report.Succeeded, report.Failed, report.Duration.Round(10*time.Millisecond))

	if report.Failed > 0 && report.Succeeded == 0 {
		os.Exit(1)
	}
}
