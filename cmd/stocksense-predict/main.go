// stocksense-predict prints next-day forecasts for one or more symbols.
//
// Usage:
//
//	stocksense-predict AAPL [MSFT...]
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stocksense/internal/app"
	"stocksense/internal/config"
	"stocksense/internal/util"
)

func main() {
	_ = godotenv.Load()

	symbols := os.Args[1:]
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "usage: stocksense-predict SYMBOL [SYMBOL...]")
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

	exitCode := 0
	for _, symbol := range symbols {
		pred, err := a.Predictor.Predict(ctx, symbol)
		if err != nil {
			fmt.Printf("%-6s FAILED  %v\n", symbol, err)
			exitCode = 1
			continue
		}
		if pred == nil {
			fmt.Printf("%-6s no prediction (train the model, or not enough history)\n", symbol)
			exitCode = 1
			continue
		}
		fmt.Printf("%-6s %s  predicted=%.2f last=%.2f\n",
			pred.Symbol, pred.Date, pred.PredictedPrice, pred.LastClose)
	}
	os.Exit(exitCode)
}
