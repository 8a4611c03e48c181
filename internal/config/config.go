package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the stocksense platform.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Server    Server          `yaml:"server"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Market    MarketConfig    `yaml:"market"`
	Model     ModelConfig     `yaml:"model"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Retrain   RetrainConfig   `yaml:"retrain"`
	Logging   Logging         `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`    // parquet candle archive root
	SQLitePath string `yaml:"sqlite_path"` // prediction/retrain ledger
	ModelsDir  string `yaml:"models_dir"`  // per-symbol model artifacts
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
// An empty APIKey disables the primary provider; the gateway then goes
// straight to the fallback.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// MarketConfig controls history fetching.
type MarketConfig struct {
	LookbackDays  int `yaml:"lookback_days"`  // primary provider window
	FallbackYears int `yaml:"fallback_years"` // secondary provider window
	MinRows       int `yaml:"min_rows"`       // below this, primary result is discarded
}

// ModelConfig holds the fixed network architecture and training parameters.
type ModelConfig struct {
	WindowSize   int     `yaml:"window_size"`
	TestFraction float64 `yaml:"test_fraction"`
	HiddenUnits  int     `yaml:"hidden_units"`
	DenseUnits   int     `yaml:"dense_units"`
	Dropout      float64 `yaml:"dropout"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Patience     int     `yaml:"patience"`
	LearningRate float64 `yaml:"learning_rate"`
}

// SentimentConfig configures the news window and the hosted classifier.
type SentimentConfig struct {
	Endpoint    string `yaml:"endpoint"`
	APIToken    string `yaml:"api_token"`
	NewsDays    int    `yaml:"news_days"`
	MaxArticles int    `yaml:"max_articles"` // fetched and filtered
	MaxClassify int    `yaml:"max_classify"` // actually sent to the classifier
}

// RetrainConfig holds the tracked symbol list and the optional schedule.
// An empty Schedule disables background retraining entirely.
type RetrainConfig struct {
	Symbols  []string `yaml:"symbols"`
	Schedule string   `yaml:"schedule"` // cron expression
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults
// for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("MODELS_DIR"); v != "" {
		cfg.Storage.ModelsDir = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("SENTIMENT_API_TOKEN"); v != "" {
		cfg.Sentiment.APIToken = v
	}
	if v := os.Getenv("SENTIMENT_ENDPOINT"); v != "" {
		cfg.Sentiment.Endpoint = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK env vars take precedence over everything else.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields with the platform defaults so a
// minimal YAML file still yields a runnable configuration.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/stocksense.db"
	}
	if cfg.Storage.ModelsDir == "" {
		cfg.Storage.ModelsDir = "models"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Market.LookbackDays == 0 {
		cfg.Market.LookbackDays = 365
	}
	if cfg.Market.FallbackYears == 0 {
		cfg.Market.FallbackYears = 2
	}
	if cfg.Market.MinRows == 0 {
		cfg.Market.MinRows = 50
	}

	if cfg.Model.WindowSize == 0 {
		cfg.Model.WindowSize = 60
	}
	if cfg.Model.TestFraction == 0 {
		cfg.Model.TestFraction = 0.2
	}
	if cfg.Model.HiddenUnits == 0 {
		cfg.Model.HiddenUnits = 50
	}
	if cfg.Model.DenseUnits == 0 {
		cfg.Model.DenseUnits = 25
	}
	if cfg.Model.Dropout == 0 {
		cfg.Model.Dropout = 0.2
	}
	if cfg.Model.Epochs == 0 {
		cfg.Model.Epochs = 20
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = 32
	}
	if cfg.Model.Patience == 0 {
		cfg.Model.Patience = 5
	}
	if cfg.Model.LearningRate == 0 {
		cfg.Model.LearningRate = 0.001
	}

	if cfg.Sentiment.NewsDays == 0 {
		cfg.Sentiment.NewsDays = 7
	}
	if cfg.Sentiment.MaxArticles == 0 {
		cfg.Sentiment.MaxArticles = 15
	}
	if cfg.Sentiment.MaxClassify == 0 {
		cfg.Sentiment.MaxClassify = 10
	}

	if len(cfg.Retrain.Symbols) == 0 {
		cfg.Retrain.Symbols = []string{"AAPL", "MSFT", "TSLA", "GOOGL", "AMZN", "META", "NFLX", "INFY"}
	}
	for i, s := range cfg.Retrain.Symbols {
		cfg.Retrain.Symbols[i] = strings.ToUpper(s)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
