// Package archive persists fetched market data to Parquet files on disk.
// The archive is write-mostly: the pipeline always fetches fresh history and
// only writes here, keeping an inspectable record of everything a model was
// trained or predicted on.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"stocksense/internal/domain"
)

// ParquetArchive stores daily candles as Parquet files, one file per symbol
// and year.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates a ParquetArchive rooted at the given data
// directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// CandleRecord is the Parquet schema for daily candle data.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// WriteCandles writes a price series to Parquet files organized by symbol
// and year. Writes merge with existing files, deduplicating by timestamp with
// incoming records winning. Layout:
//
//	<DataDir>/candles/<SYMBOL>/<YYYY>.parquet
func (a *ParquetArchive) WriteCandles(_ context.Context, series domain.PriceSeries) error {
	if series.Empty() {
		return nil
	}

	symbol := strings.ToUpper(series.Symbol)
	groups := make(map[int][]CandleRecord)
	for _, c := range series.Candles {
		groups[c.Date.Year()] = append(groups[c.Date.Year()], CandleRecord{
			Symbol:    symbol,
			Timestamp: c.Date.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	for year, records := range groups {
		path := a.candlePath(symbol, year)

		existing, _ := readParquetFile[CandleRecord](path)
		merged := mergeCandleRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing candles for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadCandles reads archived candles for the given symbol and time range.
// Missing year files are skipped.
func (a *ParquetArchive) ReadCandles(_ context.Context, symbol string, start, end time.Time) (domain.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)
	var candles []domain.Candle
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[CandleRecord](a.candlePath(symbol, year))
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				candles = append(candles, domain.Candle{
					Date:   ts,
					Open:   r.Open,
					High:   r.High,
					Low:    r.Low,
					Close:  r.Close,
					Volume: r.Volume,
				})
			}
		}
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	return domain.PriceSeries{Symbol: symbol, Candles: candles}, nil
}

// ListSymbols lists all symbols with archived candle data.
func (a *ParquetArchive) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.DataDir, "candles"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// candlePath returns the filesystem path for a candle Parquet file.
func (a *ParquetArchive) candlePath(symbol string, year int) string {
	return filepath.Join(a.DataDir, "candles", symbol, fmt.Sprintf("%d.parquet", year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeCandleRecords deduplicates candle records by timestamp, preferring
// incoming records over existing ones. Results are sorted by timestamp.
func mergeCandleRecords(existing, incoming []CandleRecord) []CandleRecord {
	seen := make(map[int64]CandleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]CandleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
