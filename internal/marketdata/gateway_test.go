package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"stocksense/internal/domain"
)

// mockProvider returns a fixed series or error for every call.
type mockProvider struct {
	name   string
	series domain.PriceSeries
	err    error
	calls  int
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) DailyHistory(_ context.Context, symbol string) (domain.PriceSeries, error) {
	m.calls++
	if m.err != nil {
		return domain.PriceSeries{Symbol: symbol}, m.err
	}
	return m.series, nil
}

func seriesOfLen(symbol string, n int) domain.PriceSeries {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = domain.Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1000,
		}
	}
	return domain.PriceSeries{Symbol: symbol, Candles: candles}
}

func TestGatewayPrimarySucceeds(t *testing.T) {
	primary := &mockProvider{name: "primary", series: seriesOfLen("AAPL", 100)}
	secondary := &mockProvider{name: "secondary", series: seriesOfLen("AAPL", 200)}
	gw := NewGateway(primary, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v", err)
	}
	if got.Len() != 100 {
		t.Errorf("got %d candles, want 100 (primary result)", got.Len())
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestGatewayFallbackOnTooFewRows(t *testing.T) {
	primary := &mockProvider{name: "primary", series: seriesOfLen("TSLA", 10)}
	secondary := &mockProvider{name: "secondary", series: seriesOfLen("TSLA", 500)}
	gw := NewGateway(primary, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v", err)
	}
	if got.Len() != 500 {
		t.Errorf("got %d candles, want 500 (secondary result)", got.Len())
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = primary %d secondary %d, want 1 and 1", primary.calls, secondary.calls)
	}
}

func TestGatewayFallbackOnPrimaryError(t *testing.T) {
	primary := &mockProvider{name: "primary", err: errors.New("403 forbidden")}
	secondary := &mockProvider{name: "secondary", series: seriesOfLen("MSFT", 120)}
	gw := NewGateway(primary, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v", err)
	}
	if got.Len() != 120 {
		t.Errorf("got %d candles, want 120 (secondary result)", got.Len())
	}
}

func TestGatewayAllProvidersFail(t *testing.T) {
	primary := &mockProvider{name: "primary", err: errors.New("down")}
	secondary := &mockProvider{name: "secondary", err: errors.New("also down")}
	gw := NewGateway(primary, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "NFLX")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v, want nil on total failure", err)
	}
	if !got.Empty() {
		t.Errorf("got %d candles, want empty series", got.Len())
	}
	if got.Symbol != "NFLX" {
		t.Errorf("Symbol = %q, want NFLX", got.Symbol)
	}
}

func TestGatewaySanitizesDuplicateDates(t *testing.T) {
	// Day-truncated timestamps can collide; the gateway keeps the later
	// bar per date and returns a strictly increasing series.
	dirty := seriesOfLen("GOOGL", 5)
	dup := dirty.Candles[2]
	dup.Close = 999
	dirty.Candles = append(dirty.Candles[:3], append([]domain.Candle{dup}, dirty.Candles[3:]...)...)

	secondary := &mockProvider{name: "secondary", series: dirty}
	gw := NewGateway(nil, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "GOOGL")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v", err)
	}
	if got.Len() != 5 {
		t.Fatalf("got %d candles, want 5 after dedupe", got.Len())
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() after sanitize: %v", err)
	}
	if got.Candles[2].Close != 999 {
		t.Errorf("duplicate date close = %v, want 999 (later bar wins)", got.Candles[2].Close)
	}
}

func TestGatewayNilPrimary(t *testing.T) {
	secondary := &mockProvider{name: "secondary", series: seriesOfLen("AMZN", 80)}
	gw := NewGateway(nil, secondary, nil, 50)

	got, err := gw.DailyHistory(context.Background(), "amzn")
	if err != nil {
		t.Fatalf("DailyHistory() error: %v", err)
	}
	if got.Len() != 80 {
		t.Errorf("got %d candles, want 80", got.Len())
	}
}
