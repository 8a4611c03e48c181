// Package indicators computes standard technical indicators over close-price
// series: simple moving averages, Wilder RSI, MACD, and Bollinger bands.
package indicators

import (
	"errors"
	"math"
)

// SMA computes the simple moving average of the last period prices.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// RSI computes the Wilder-smoothed relative strength index over the given
// period. Returns 50 when there are fewer than period+1 prices.
func RSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period+1 {
		return 50.0, nil // default when data insufficient
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// ema returns the exponential moving average series with the given period.
// The first value seeds the average.
func ema(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACDResult holds the MACD line, its signal line, and the histogram at the
// latest price.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes the moving average convergence divergence with the standard
// 12/26/9 periods.
func MACD(prices []float64) (MACDResult, error) {
	const (
		fast   = 12
		slow   = 26
		signal = 9
	)
	if len(prices) < slow+signal {
		return MACDResult{}, errors.New("not enough data for MACD calculation")
	}

	fastEMA := ema(prices, fast)
	slowEMA := ema(prices, slow)

	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(macdLine, signal)

	last := len(prices) - 1
	return MACDResult{
		MACD:      macdLine[last],
		Signal:    signalLine[last],
		Histogram: macdLine[last] - signalLine[last],
	}, nil
}

// BollingerBands holds the upper, middle, and lower bands at the latest
// price.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger computes Bollinger bands over a 20-period SMA with a two
// standard deviation width.
func Bollinger(prices []float64) (BollingerBands, error) {
	const (
		period = 20
		width  = 2.0
	)
	mid, err := SMA(prices, period)
	if err != nil {
		return BollingerBands{}, err
	}

	var variance float64
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  mid + width*sd,
		Middle: mid,
		Lower:  mid - width*sd,
	}, nil
}

// Snapshot bundles every indicator at the latest close. Indicators that lack
// enough history are left at their zero value and named in Missing.
type Snapshot struct {
	MA10      float64        `json:"ma10,omitempty"`
	MA50      float64        `json:"ma50,omitempty"`
	RSI14     float64        `json:"rsi14,omitempty"`
	MACD      MACDResult     `json:"macd"`
	Bollinger BollingerBands `json:"bollinger"`
	Missing   []string       `json:"missing,omitempty"`
}

// Compute evaluates all indicators over the close series.
func Compute(prices []float64) Snapshot {
	var snap Snapshot
	var err error

	if snap.MA10, err = SMA(prices, 10); err != nil {
		snap.Missing = append(snap.Missing, "ma10")
	}
	if snap.MA50, err = SMA(prices, 50); err != nil {
		snap.Missing = append(snap.Missing, "ma50")
	}
	if snap.RSI14, err = RSI(prices, 14); err != nil {
		snap.Missing = append(snap.Missing, "rsi14")
	}
	if snap.MACD, err = MACD(prices); err != nil {
		snap.Missing = append(snap.Missing, "macd")
	}
	if snap.Bollinger, err = Bollinger(prices); err != nil {
		snap.Missing = append(snap.Missing, "bollinger")
	}
	return snap
}
