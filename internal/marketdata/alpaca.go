package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stocksense/internal/domain"
)

var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches daily bars from the Alpaca market-data API. It is
// the primary provider: fast and clean when credentials are valid, but the
// free tier sometimes returns truncated history, which the Gateway detects
// via its minimum-row threshold.
type AlpacaProvider struct {
	client       *marketdata.Client
	lookbackDays int
}

// NewAlpacaProvider creates an AlpacaProvider with the given credentials and
// lookback window in calendar days.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, lookbackDays int) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaProvider{
		client:       marketdata.NewClient(opts),
		lookbackDays: lookbackDays,
	}
}

// Name returns the provider identifier.
func (p *AlpacaProvider) Name() string { return "alpaca" }

// DailyHistory fetches daily candles over the configured lookback window.
func (p *AlpacaProvider) DailyHistory(ctx context.Context, symbol string) (domain.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)

	if err := ctx.Err(); err != nil {
		return domain.PriceSeries{Symbol: symbol}, err
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -p.lookbackDays)

	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("alpaca GetBars %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Date:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}

	return domain.PriceSeries{Symbol: symbol, Candles: candles}, nil
}
