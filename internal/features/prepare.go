// Package features turns raw close prices into model-ready training data:
// min-max scaling to [0, 1] and fixed-length sliding windows with a
// next-step target.
package features

import (
	"errors"
	"fmt"

	"stocksense/internal/domain"
)

// ErrInsufficientData is returned when a series is too short to produce at
// least one training window.
var ErrInsufficientData = errors.New("insufficient data for feature preparation")

// MinMaxScaler rescales values linearly to the [0, 1] range. It must be
// fitted before Transform or InverseTransform.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Fitted bool    `json:"fitted"`
}

// Fit learns the min and max of the given values.
func (s *MinMaxScaler) Fit(values []float64) error {
	if len(values) == 0 {
		return errors.New("cannot fit scaler on empty data")
	}
	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Fitted = true
	return nil
}

// Transform maps values into [0, 1] using the fitted range. A constant
// series (max == min) maps everything to 0.
func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, errors.New("scaler not fitted")
	}
	span := s.Max - s.Min
	out := make([]float64, len(values))
	for i, v := range values {
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - s.Min) / span
	}
	return out, nil
}

// InverseTransform maps scaled values back to the original price range.
func (s *MinMaxScaler) InverseTransform(values []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, errors.New("scaler not fitted")
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*(s.Max-s.Min) + s.Min
	}
	return out, nil
}

// Dataset is the windowed, scaled training data for one symbol. Each sample
// X[i] is a window of consecutive scaled closes; Y[i] is the scaled close
// immediately following that window. Samples remain in time order.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples.
func (d Dataset) Len() int { return len(d.X) }

// SplitTemporal splits the dataset into train and test partitions, the test
// partition being the last testFraction of samples. The split never shuffles:
// test samples are strictly later in time than train samples.
func (d Dataset) SplitTemporal(testFraction float64) (train, test Dataset) {
	n := d.Len()
	cut := n - int(float64(n)*testFraction)
	if cut < 0 {
		cut = 0
	}
	if cut > n {
		cut = n
	}
	train = Dataset{X: d.X[:cut], Y: d.Y[:cut]}
	test = Dataset{X: d.X[cut:], Y: d.Y[cut:]}
	return train, test
}

// Prepare fits a scaler on the full close column of the series, scales it,
// and cuts sliding windows of windowSize scaled closes each with the next
// scaled close as target. It returns ErrInsufficientData when the series
// cannot produce at least one window.
func Prepare(series domain.PriceSeries, windowSize int) (Dataset, *MinMaxScaler, error) {
	closes := series.Closes()
	if len(closes) < windowSize+1 {
		return Dataset{}, nil, fmt.Errorf("%w: %d rows, need at least %d",
			ErrInsufficientData, len(closes), windowSize+1)
	}

	scaler := &MinMaxScaler{}
	if err := scaler.Fit(closes); err != nil {
		return Dataset{}, nil, err
	}
	scaled, err := scaler.Transform(closes)
	if err != nil {
		return Dataset{}, nil, err
	}

	var ds Dataset
	for i := windowSize; i < len(scaled); i++ {
		window := make([]float64, windowSize)
		copy(window, scaled[i-windowSize:i])
		ds.X = append(ds.X, window)
		ds.Y = append(ds.Y, scaled[i])
	}
	return ds, scaler, nil
}

// LastWindow returns the most recent windowSize closes of the series scaled
// with the given fitted scaler, for single-step inference.
func LastWindow(series domain.PriceSeries, windowSize int, scaler *MinMaxScaler) ([]float64, error) {
	closes := series.Closes()
	if len(closes) < windowSize {
		return nil, fmt.Errorf("%w: %d rows, need at least %d",
			ErrInsufficientData, len(closes), windowSize)
	}
	return scaler.Transform(closes[len(closes)-windowSize:])
}
