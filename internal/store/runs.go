package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunRecord is one row of the run ledger.
type RunRecord struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time // zero while running
	Status           string
	FilesLoaded      int
	FilesQuarantined int
	FilesFailed      int
	FilesSkipped     int
	ProductsUpserted int
	SalesInserted    int
	SalesDropped     int
	Error            string
}

// FileLoadRecord is one row of the file ledger.
type FileLoadRecord struct {
	RunID       string
	FileName    string
	Kind        string
	Fingerprint string
	Status      string
	RowsRead    int
	RowsLoaded  int
	RowsDropped int
	Error       string
}

// CreateRun inserts a run in the given status.
func (s *Store) CreateRun(ctx context.Context, runID, status string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO pipeline_runs (run_id, started_at, status) VALUES (?, ?, ?)`),
		runID, startedAt.UnixMilli(), status,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and totals of a run.
func (s *Store) FinishRun(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE pipeline_runs SET
			finished_at = ?, status = ?,
			files_loaded = ?, files_quarantined = ?, files_failed = ?, files_skipped = ?,
			products_upserted = ?, sales_inserted = ?, sales_dropped = ?,
			error_message = ?
		 WHERE run_id = ?`),
		r.FinishedAt.UnixMilli(), r.Status,
		r.FilesLoaded, r.FilesQuarantined, r.FilesFailed, r.FilesSkipped,
		r.ProductsUpserted, r.SalesInserted, r.SalesDropped,
		nilIfEmpty(r.Error), r.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT run_id, started_at, finished_at, status,
			files_loaded, files_quarantined, files_failed, files_skipped,
			products_upserted, sales_inserted, sales_dropped, error_message
		 FROM pipeline_runs ORDER BY started_at DESC, run_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started int64
		var finished sql.NullInt64
		var errMsg sql.NullString
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Status,
			&r.FilesLoaded, &r.FilesQuarantined, &r.FilesFailed, &r.FilesSkipped,
			&r.ProductsUpserted, &r.SalesInserted, &r.SalesDropped, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
		}
		r.Error = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordFileLoad appends a row to the file ledger.
func (s *Store) RecordFileLoad(ctx context.Context, f FileLoadRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO file_loads
			(run_id, file_name, kind, fingerprint, status, rows_read, rows_loaded, rows_dropped, error_message, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.RunID, f.FileName, f.Kind, nilIfEmpty(f.Fingerprint), f.Status,
		f.RowsRead, f.RowsLoaded, f.RowsDropped, nilIfEmpty(f.Error), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record file load %s: %w", f.FileName, err)
	}
	return nil
}

// FileLoaded reports whether a file with this fingerprint has been fully
// loaded by an earlier run.
func (s *Store) FileLoaded(ctx context.Context, fingerprint, status string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM file_loads WHERE fingerprint = ? AND status = ?`),
		fingerprint, status,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check file ledger: %w", err)
	}
	return n > 0, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
