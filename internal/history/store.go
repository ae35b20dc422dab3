package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"harrisrecords/internal/common"
	"harrisrecords/internal/entity"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline execution's summary row.
type Run struct {
	RunID           string     `json:"run_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          string     `json:"status"`
	TotalRecords    int        `json:"total_records"`
	AddressesFound  int        `json:"addresses_found"`
	SuccessRate     float64    `json:"success_rate"`
	InstrumentTypes []string   `json:"instrument_types"`
	DateRange       string     `json:"date_range"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// Store persists run history and resolved results in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT UNIQUE NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP,
	status TEXT NOT NULL,
	total_records INTEGER NOT NULL DEFAULT 0,
	addresses_found INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0,
	instrument_types TEXT,
	date_range TEXT,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs (run_id),
	file_no TEXT,
	grantor TEXT,
	grantee TEXT,
	instrument_type TEXT,
	recording_date TEXT,
	film_code TEXT,
	legal_description TEXT,
	property_address TEXT,
	source TEXT
);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results (run_id);
`

// Open opens (creating if needed) the history database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.NewAppError("HISTORY_OPEN_FAILED", "failed to open history database", err)
	}
	// modernc sqlite serializes writes itself but a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, common.NewAppError("HISTORY_OPEN_FAILED", "failed to create history schema", err)
	}
	logger.Info("history.open", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context, runID string, instrumentTypes []string, dateRange string) error {
	types, _ := json.Marshal(instrumentTypes)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, start_time, status, instrument_types, date_range) VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), StatusRunning, string(types), dateRange,
	)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to start run", err)
	}
	return nil
}

// UpdateProgress refreshes a running run's counters.
func (s *Store) UpdateProgress(ctx context.Context, runID string, totalRecords, addressesFound int) error {
	rate := 0.0
	if totalRecords > 0 {
		rate = float64(addressesFound) / float64(totalRecords) * 100
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET total_records = ?, addresses_found = ?, success_rate = ? WHERE run_id = ?`,
		totalRecords, addressesFound, rate, runID,
	)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to update run progress", err)
	}
	return nil
}

// CompleteRun finalizes a run. errMsg is stored only for failed runs.
func (s *Store) CompleteRun(ctx context.Context, runID, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET end_time = ?, status = ?, error_message = ? WHERE run_id = ?`,
		time.Now().UTC(), status, errMsg, runID,
	)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to complete run", err)
	}
	return nil
}

// SaveResults replaces a run's stored results with the given set.
func (s *Store) SaveResults(ctx context.Context, runID string, results []entity.ResolvedAddress) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to clear previous results", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, file_no, grantor, grantee, instrument_type,
			recording_date, film_code, legal_description, property_address, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to prepare result insert", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx,
			runID, r.FileNumber, r.Grantor, r.Grantee, r.InstrumentTypeLabel,
			r.RecordingDate, r.FilmCode, r.LegalDescription, r.PropertyAddress, string(r.Source),
		); err != nil {
			return common.NewAppError("HISTORY_WRITE_FAILED",
				fmt.Sprintf("failed to insert result for file %s", r.FileNumber), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to commit results", err)
	}
	s.logger.Info("history.results.saved", "run_id", runID, "results", len(results))
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, start_time, end_time, status, total_records,
			addresses_found, success_rate, instrument_types, date_range, error_message
		FROM runs ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.NewAppError("HISTORY_READ_FAILED", "failed to list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by its identifier.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, start_time, end_time, status, total_records,
			addresses_found, success_rate, instrument_types, date_range, error_message
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, common.NewAppError("RUN_NOT_FOUND",
			fmt.Sprintf("run %s not found", runID), common.ErrNotFound)
	}
	return run, err
}

// GetResults returns a run's stored results in insertion order.
func (s *Store) GetResults(ctx context.Context, runID string) ([]entity.ResolvedAddress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_no, grantor, grantee, instrument_type, recording_date,
			film_code, legal_description, property_address, source
		FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, common.NewAppError("HISTORY_READ_FAILED", "failed to read results", err)
	}
	defer rows.Close()

	var out []entity.ResolvedAddress
	for rows.Next() {
		var r entity.ResolvedAddress
		var source string
		if err := rows.Scan(&r.FileNumber, &r.Grantor, &r.Grantee, &r.InstrumentTypeLabel,
			&r.RecordingDate, &r.FilmCode, &r.LegalDescription, &r.PropertyAddress, &source); err != nil {
			return nil, common.NewAppError("HISTORY_READ_FAILED", "failed to scan result row", err)
		}
		r.Source = entity.Source(source)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its results.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to begin transaction", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to delete results", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return common.NewAppError("HISTORY_WRITE_FAILED", "failed to delete run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("RUN_NOT_FOUND",
			fmt.Sprintf("run %s not found", runID), common.ErrNotFound)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var endTime sql.NullTime
	var types, dateRange, errMsg sql.NullString
	err := row.Scan(&run.RunID, &run.StartTime, &endTime, &run.Status, &run.TotalRecords,
		&run.AddressesFound, &run.SuccessRate, &types, &dateRange, &errMsg)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, common.NewAppError("HISTORY_READ_FAILED", "failed to scan run row", err)
	}
	if endTime.Valid {
		t := endTime.Time
		run.EndTime = &t
	}
	if types.Valid && strings.TrimSpace(types.String) != "" {
		if err := json.Unmarshal([]byte(types.String), &run.InstrumentTypes); err != nil {
			run.InstrumentTypes = []string{types.String}
		}
	}
	run.DateRange = dateRange.String
	run.ErrorMessage = errMsg.String
	return run, nil
}
