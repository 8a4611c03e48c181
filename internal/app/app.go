// Package app wires the configured pipeline components together for the
// command-line binaries.
package app

import (
	"stocksense/internal/archive"
	"stocksense/internal/config"
	"stocksense/internal/ledger"
	"stocksense/internal/marketdata"
	"stocksense/internal/model"
	"stocksense/internal/monitor"
	"stocksense/internal/news"
	"stocksense/internal/predict"
	"stocksense/internal/sentiment"
	"stocksense/internal/train"
)

// App bundles every constructed component. Scorer is nil when no classifier
// endpoint is configured.
type App struct {
	Config    *config.Config
	Gateway   *marketdata.Gateway
	Archive   *archive.ParquetArchive
	Store     *model.Store
	Ledger    *ledger.SQLiteLedger
	Trainer   *train.Trainer
	Predictor *predict.Predictor
	Monitor   *monitor.Monitor
	Scorer    *sentiment.Scorer
}

// Build constructs the pipeline from configuration. The caller owns Close.
func Build(cfg *config.Config) (*App, error) {
	var primary marketdata.Provider
	if cfg.Alpaca.APIKey != "" {
		primary = marketdata.NewAlpacaProvider(
			cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
			cfg.Market.LookbackDays)
	}
	secondary := marketdata.NewYahooProvider(cfg.Market.FallbackYears)

	arc := archive.NewParquetArchive(cfg.Storage.DataDir)
	gateway := marketdata.NewGateway(primary, secondary, arc, cfg.Market.MinRows)

	store := model.NewStore(cfg.Storage.ModelsDir)

	l, err := ledger.NewSQLiteLedger(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Gateway:   gateway,
		Archive:   arc,
		Store:     store,
		Ledger:    l,
		Trainer:   train.NewTrainer(gateway, store, l, cfg.Model),
		Predictor: predict.NewPredictor(gateway, store, l, cfg.Model.WindowSize),
		Monitor:   monitor.NewMonitor(gateway, store, l),
	}

	if cfg.Sentiment.Endpoint != "" && cfg.Alpaca.APIKey != "" {
		source := news.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		classifier := sentiment.NewHTTPClassifier(cfg.Sentiment.Endpoint, cfg.Sentiment.APIToken)
		a.Scorer = sentiment.NewScorer(source, classifier,
			cfg.Sentiment.NewsDays, cfg.Sentiment.MaxArticles, cfg.Sentiment.MaxClassify)
	}

	return a, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Ledger.Close()
}
