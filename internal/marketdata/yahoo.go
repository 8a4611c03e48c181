package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"stocksense/internal/domain"
)

var _ Provider = (*YahooProvider)(nil)

// YahooProvider fetches daily candles from the unauthenticated Yahoo Finance
// v8 chart API. It is the secondary provider: slower and scrape-grade, but it
// needs no credentials and reliably serves two years of daily history.
type YahooProvider struct {
	client  *http.Client
	baseURL string
	years   int
}

// NewYahooProvider creates a YahooProvider fetching the given number of
// years of daily history.
func NewYahooProvider(years int) *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://query1.finance.yahoo.com",
		years:   years,
	}
}

// yahooChart is the response structure from the Yahoo Finance chart API.
// OHLCV arrays use interface{} because Yahoo emits JSON null for bars on
// holidays and halts.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Name returns the provider identifier.
func (p *YahooProvider) Name() string { return "yahoo" }

// DailyHistory fetches daily candles over the configured range.
func (p *YahooProvider) DailyHistory(ctx context.Context, symbol string) (domain.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)

	rng := fmt.Sprintf("%dy", p.years)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		p.baseURL, url.PathEscape(symbol), rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PriceSeries{Symbol: symbol}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo %s: status %d", symbol, resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo api error %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo %s: no data returned", symbol)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return domain.PriceSeries{Symbol: symbol}, fmt.Errorf("yahoo %s: missing quote data", symbol)
	}
	quote := result.Indicators.Quote[0]

	candles := make([]domain.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo occasionally truncates the quote arrays relative to the
		// timestamp list.
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		candles = append(candles, domain.Candle{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: int64(toFloat(quote.Volume[i])),
		})
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })

	return domain.PriceSeries{Symbol: symbol, Candles: candles}, nil
}
