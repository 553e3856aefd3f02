package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/lotdocs/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_stage_records_run ON stage_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_stage_records_lot_stage ON stage_records(lot_id, stage);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordStage inserts a stage outcome. CreatedAt is set when zero.
func (s *SQLiteLedger) RecordStage(ctx context.Context, rec *models.StageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_records (run_id, lot_id, stage, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.LotID, rec.Stage, rec.Status, rec.Detail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record stage %s for %s: %w", rec.Stage, rec.LotID, err)
	}
	return nil
}

// LatestStages returns the newest record of each (lot, stage) pair.
func (s *SQLiteLedger) LatestStages(ctx context.Context) ([]*models.StageRecord, error) {
	return s.query(ctx,
		`SELECT run_id, lot_id, stage, status, detail, created_at
		 FROM stage_records
		 WHERE id IN (SELECT MAX(id) FROM stage_records GROUP BY lot_id, stage)
		 ORDER BY lot_id, stage`)
}

// RunRecords returns the records of one run in insertion order.
func (s *SQLiteLedger) RunRecords(ctx context.Context, runID string) ([]*models.StageRecord, error) {
	return s.query(ctx,
		`SELECT run_id, lot_id, stage, status, detail, created_at
		 FROM stage_records WHERE run_id = ? ORDER BY id`, runID)
}

func (s *SQLiteLedger) query(ctx context.Context, q string, args ...any) ([]*models.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.StageRecord
	for rows.Next() {
		var rec models.StageRecord
		var detail sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.LotID, &rec.Stage, &rec.Status, &detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Detail = detail.String
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
