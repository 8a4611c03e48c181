// Package ledger is the append-only SQLite record of predictions and retrain
// runs. Rows are never updated or deleted; history queries return rows in
// insertion order.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"stocksense/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// SQLiteLedger persists prediction and retrain records to a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (or creates) the SQLite database at dbPath and runs
// migrations.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so API reads do not block pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol          TEXT NOT NULL,
			date            TEXT NOT NULL,
			predicted_price REAL NOT NULL,
			created_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_symbol ON predictions(symbol)`,

		`CREATE TABLE IF NOT EXISTS retrain_logs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			retrain_time  TEXT NOT NULL,
			model_version TEXT NOT NULL,
			notes         TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Append records one prediction. The record's CreatedAt defaults to now when
// zero.
func (l *SQLiteLedger) Append(ctx context.Context, rec domain.PredictionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO predictions (symbol, date, predicted_price, created_at) VALUES (?, ?, ?, ?)`,
		strings.ToUpper(rec.Symbol), rec.Date, rec.PredictedPrice, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// History returns all predictions for a symbol in insertion order.
func (l *SQLiteLedger) History(ctx context.Context, symbol string) ([]domain.PredictionRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT symbol, date, predicted_price, created_at FROM predictions WHERE symbol = ? ORDER BY id`,
		strings.ToUpper(symbol))
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var records []domain.PredictionRecord
	for rows.Next() {
		var rec domain.PredictionRecord
		var createdAt string
		if err := rows.Scan(&rec.Symbol, &rec.Date, &rec.PredictedPrice, &createdAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendRetrain records one retrain-log entry.
func (l *SQLiteLedger) AppendRetrain(ctx context.Context, entry domain.RetrainLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	retrainTime := entry.RetrainTime
	if retrainTime.IsZero() {
		retrainTime = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO retrain_logs (retrain_time, model_version, notes) VALUES (?, ?, ?)`,
		retrainTime.Format(time.RFC3339), entry.ModelVersion, entry.Notes)
	if err != nil {
		return fmt.Errorf("insert retrain log: %w", err)
	}
	return nil
}

// RetrainLog returns the most recent retrain entries, newest first, up to
// limit. A non-positive limit returns everything.
func (l *SQLiteLedger) RetrainLog(ctx context.Context, limit int) ([]domain.RetrainLogEntry, error) {
	query := `SELECT retrain_time, model_version, notes FROM retrain_logs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query retrain logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.RetrainLogEntry
	for rows.Next() {
		var entry domain.RetrainLogEntry
		var retrainTime string
		var notes sql.NullString
		if err := rows.Scan(&retrainTime, &entry.ModelVersion, &notes); err != nil {
			return nil, fmt.Errorf("scan retrain log: %w", err)
		}
		entry.RetrainTime, err = time.Parse(time.RFC3339, retrainTime)
		if err != nil {
			return nil, fmt.Errorf("parse retrain_time %q: %w", retrainTime, err)
		}
		entry.Notes = notes.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
