// Package db persists a registry of training runs in SQLite so past runs
// and their epoch metrics can be compared after the fact.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"motiontrain/ml"
)

// RunStore is the SQLite-backed run registry.
type RunStore struct {
	db *sql.DB
}

// Run is one recorded training run.
type Run struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	DataDir      string
	Files        int
	Windows      int
	Classes      int
	TestAccuracy float64
	ArtifactPath string
	Status       string
}

// Open opens (creating if needed) the registry database.
func Open(path string) (*RunStore, error) {
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	store := &RunStore{db: database}
	if err := store.createTables(); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return store, nil
}

func (s *RunStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS training_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at DATETIME NOT NULL,
            finished_at DATETIME,
            data_dir TEXT NOT NULL,
            file_count INTEGER DEFAULT 0,
            window_count INTEGER DEFAULT 0,
            class_count INTEGER DEFAULT 0,
            test_accuracy REAL DEFAULT 0,
            artifact_path TEXT DEFAULT '',
            status TEXT DEFAULT 'running'
        )`,
		`CREATE TABLE IF NOT EXISTS epoch_metrics (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id INTEGER NOT NULL,
            epoch INTEGER NOT NULL,
            loss REAL NOT NULL,
            accuracy REAL NOT NULL,
            val_loss REAL DEFAULT 0,
            val_accuracy REAL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(run_id) REFERENCES training_runs(id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_epoch_run ON epoch_metrics(run_id, epoch)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// CreateRun inserts a new run in the running state.
func (s *RunStore) CreateRun(ctx context.Context, dataDir string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (started_at, data_dir) VALUES (?, ?)`,
		time.Now().UTC(), dataDir,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// RecordEpochs writes the full metric history of a run in one transaction.
func (s *RunStore) RecordEpochs(ctx context.Context, runID int64, history ml.History) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO epoch_metrics (run_id, epoch, loss, accuracy, val_loss, val_accuracy)
         VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range history.Epochs {
		if _, err := stmt.ExecContext(ctx, runID, m.Epoch, m.Loss, m.Accuracy, m.ValLoss, m.ValAccuracy); err != nil {
			return fmt.Errorf("insert epoch %d: %w", m.Epoch, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run complete with its final figures.
func (s *RunStore) FinishRun(ctx context.Context, runID int64, files, windows, classes int, accuracy float64, artifactPath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE training_runs
         SET finished_at = ?, file_count = ?, window_count = ?, class_count = ?,
             test_accuracy = ?, artifact_path = ?, status = 'done'
         WHERE id = ?`,
		time.Now().UTC(), files, windows, classes, accuracy, artifactPath, runID,
	)
	return err
}

// FailRun marks a run failed.
func (s *RunStore) FailRun(ctx context.Context, runID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE training_runs SET finished_at = ?, status = 'failed' WHERE id = ?`,
		time.Now().UTC(), runID,
	)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, started_at), data_dir,
                file_count, window_count, class_count, test_accuracy, artifact_path, status
         FROM training_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.DataDir,
			&run.Files, &run.Windows, &run.Classes, &run.TestAccuracy,
			&run.ArtifactPath, &run.Status); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// EpochMetrics returns the metric trail of one run in epoch order.
func (s *RunStore) EpochMetrics(ctx context.Context, runID int64) ([]ml.EpochMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, loss, accuracy, val_loss, val_accuracy
         FROM epoch_metrics WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []ml.EpochMetrics
	for rows.Next() {
		var m ml.EpochMetrics
		if err := rows.Scan(&m.Epoch, &m.Loss, &m.Accuracy, &m.ValLoss, &m.ValAccuracy); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
