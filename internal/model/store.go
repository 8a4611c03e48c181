package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stocksense/internal/domain"
	"stocksense/internal/features"
)

// Store persists per-symbol model artifacts as JSON files on disk. Each
// symbol owns three files in the models directory:
//
//	<SYMBOL>_model.json    network weights
//	<SYMBOL>_scaler.json   fitted min-max scaler
//	<SYMBOL>_metrics.json  evaluation metrics of the last training run
//
// Saves are atomic (temp file + rename) so a crash mid-write never leaves a
// torn artifact; retraining simply overwrites, last write wins.
type Store struct {
	Dir string
}

// NewStore creates a Store rooted at the given models directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// SaveModel writes the network weights for a symbol.
func (s *Store) SaveModel(symbol string, n *Network) error {
	return s.writeJSON(s.path(symbol, "model"), n)
}

// LoadModel reads the network weights for a symbol. A symbol that has never
// been trained yields (nil, nil).
func (s *Store) LoadModel(symbol string) (*Network, error) {
	n := &Network{}
	ok, err := s.readJSON(s.path(symbol, "model"), n)
	if err != nil || !ok {
		return nil, err
	}
	return n, nil
}

// SaveScaler writes the fitted scaler for a symbol.
func (s *Store) SaveScaler(symbol string, sc *features.MinMaxScaler) error {
	return s.writeJSON(s.path(symbol, "scaler"), sc)
}

// LoadScaler reads the fitted scaler for a symbol, or (nil, nil) when absent.
func (s *Store) LoadScaler(symbol string) (*features.MinMaxScaler, error) {
	sc := &features.MinMaxScaler{}
	ok, err := s.readJSON(s.path(symbol, "scaler"), sc)
	if err != nil || !ok {
		return nil, err
	}
	return sc, nil
}

// SaveMetrics writes the evaluation metrics for a symbol.
func (s *Store) SaveMetrics(symbol string, m *domain.Metrics) error {
	return s.writeJSON(s.path(symbol, "metrics"), m)
}

// LoadMetrics reads the evaluation metrics for a symbol, or (nil, nil) when
// absent.
func (s *Store) LoadMetrics(symbol string) (*domain.Metrics, error) {
	m := &domain.Metrics{}
	ok, err := s.readJSON(s.path(symbol, "metrics"), m)
	if err != nil || !ok {
		return nil, err
	}
	return m, nil
}

// path returns the artifact file path for a symbol and artifact kind.
func (s *Store) path(symbol, kind string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.json", strings.ToUpper(symbol), kind))
}

// writeJSON marshals v and writes it atomically via a temp file rename.
func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// readJSON unmarshals the file at path into v. It reports (false, nil) when
// the file does not exist.
func (s *Store) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
