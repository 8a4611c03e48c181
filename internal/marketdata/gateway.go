package marketdata

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"stocksense/internal/domain"
)

// Archiver persists fetched candles for offline inspection. Archive writes
// are best-effort: a failed write is logged, never propagated.
type Archiver interface {
	WriteCandles(ctx context.Context, series domain.PriceSeries) error
}

// Gateway serves daily price history with automatic fallback. The primary
// provider is tried first; when it errors or returns fewer than minRows
// candles, the secondary takes over. When every provider fails the Gateway
// returns an empty series with a nil error, so callers only ever deal with
// "how much data", never "which provider broke".
type Gateway struct {
	primary   Provider
	secondary Provider
	archive   Archiver // optional
	minRows   int
	log       *slog.Logger
}

// NewGateway creates a Gateway over the given providers. primary may be nil
// (e.g. no Alpaca credentials configured), in which case every fetch goes
// straight to secondary. archive may be nil to disable archiving.
func NewGateway(primary, secondary Provider, archive Archiver, minRows int) *Gateway {
	return &Gateway{
		primary:   primary,
		secondary: secondary,
		archive:   archive,
		minRows:   minRows,
		log:       slog.Default().With("component", "marketdata"),
	}
}

// DailyHistory fetches daily candles for the symbol, falling back from the
// primary to the secondary provider. The returned series is sorted by date
// and may be empty; the error is non-nil only for context cancellation.
func (g *Gateway) DailyHistory(ctx context.Context, symbol string) (domain.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)

	if g.primary != nil {
		series, err := g.primary.DailyHistory(ctx, symbol)
		if err == nil && series.Len() >= g.minRows {
			series = g.sanitize(series)
			g.archiveSeries(ctx, series)
			return series, nil
		}
		if ctx.Err() != nil {
			return domain.PriceSeries{Symbol: symbol}, ctx.Err()
		}
		if err != nil {
			g.log.Warn("primary provider failed, falling back",
				"provider", g.primary.Name(), "symbol", symbol, "error", err)
		} else {
			g.log.Warn("primary provider returned too few rows, falling back",
				"provider", g.primary.Name(), "symbol", symbol,
				"rows", series.Len(), "minRows", g.minRows)
		}
	}

	series, err := g.secondary.DailyHistory(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PriceSeries{Symbol: symbol}, ctx.Err()
		}
		g.log.Warn("secondary provider failed, returning empty series",
			"provider", g.secondary.Name(), "symbol", symbol, "error", err)
		return domain.PriceSeries{Symbol: symbol}, nil
	}

	series = g.sanitize(series)
	g.archiveSeries(ctx, series)
	return series, nil
}

// sanitize enforces the series invariants on provider output: candles sorted
// by date, one candle per day with the later bar winning, and no negative
// volume. Yahoo in particular can emit duplicate day-truncated timestamps.
func (g *Gateway) sanitize(series domain.PriceSeries) domain.PriceSeries {
	if series.Validate() == nil {
		return series
	}

	candles := make([]domain.Candle, len(series.Candles))
	copy(candles, series.Candles)
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })

	out := candles[:0]
	var dropped int
	for _, c := range candles {
		if c.Volume < 0 {
			dropped++
			continue
		}
		if len(out) > 0 && !c.Date.After(out[len(out)-1].Date) {
			out[len(out)-1] = c
			dropped++
			continue
		}
		out = append(out, c)
	}
	g.log.Warn("sanitized provider series", "symbol", series.Symbol, "dropped", dropped)

	return domain.PriceSeries{Symbol: series.Symbol, Candles: out}
}

func (g *Gateway) archiveSeries(ctx context.Context, series domain.PriceSeries) {
	if g.archive == nil || series.Empty() {
		return
	}
	if err := g.archive.WriteCandles(ctx, series); err != nil {
		g.log.Warn("archiving candles failed", "symbol", series.Symbol, "error", err)
	}
}
