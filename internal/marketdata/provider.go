// Package marketdata fetches daily OHLCV history for equities. It wraps two
// providers (Alpaca primary, Yahoo Finance secondary) behind a Gateway that
// handles fallback and never fails hard: exhausting all providers yields an
// empty series, not an error.
package marketdata

import (
	"context"

	"stocksense/internal/domain"
)

// Provider fetches daily price history for a single symbol. Implementations
// return candles in ascending date order.
type Provider interface {
	// Name returns the provider identifier for logging.
	Name() string
	// DailyHistory fetches daily candles for the symbol over the provider's
	// configured window.
	DailyHistory(ctx context.Context, symbol string) (domain.PriceSeries, error)
}
