package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quench-lab/sweep-core/internal/sweep"
)

// Repository defines the interface for run persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Run CRUD
	GetByID(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Run, error)
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Delete(ctx context.Context, id string) error

	// Captures
	CreateCapture(ctx context.Context, capture *Capture) error
	ListCaptures(ctx context.Context, runID string) ([]Capture, error)
	GetCapture(ctx context.Context, runID string, stepIndex int) (*Capture, error)

	// Recovery. Marks runs left in the running state (e.g. after a crash)
	// as failed and returns how many were updated.
	FailInterrupted(ctx context.Context, message string) (int, error)
}

// runColumns is the SELECT column list for run queries.
const runColumns = `id, name, status, series_json, base_json, total_steps,
			completed_steps, error, created_at, started_at, finished_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a run by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	run, err := scanRunRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying run by id: %w", err)
	}
	return run, nil
}

// List retrieves recent runs, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC LIMIT ?`
	return r.queryRuns(ctx, query, clampLimit(limit))
}

// ListByStatus retrieves recent runs in a given state, newest first.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE status = ? ORDER BY created_at DESC LIMIT ?`
	return r.queryRuns(ctx, query, string(status), clampLimit(limit))
}

// Create inserts a new run.
func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	seriesJSON, baseJSON, err := marshalSchedule(run)
	if err != nil {
		return err
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (
			id, name, status, series_json, base_json, total_steps,
			completed_steps, error, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Name,
		string(run.Status),
		seriesJSON,
		baseJSON,
		run.TotalSteps,
		run.CompletedSteps,
		nullableString(run.Error),
		run.CreatedAt.Format(time.RFC3339),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Update modifies an existing run.
func (r *SQLiteRepository) Update(ctx context.Context, run *Run) error {
	seriesJSON, baseJSON, err := marshalSchedule(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			name = ?, status = ?, series_json = ?, base_json = ?,
			total_steps = ?, completed_steps = ?, error = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		run.Name,
		string(run.Status),
		seriesJSON,
		baseJSON,
		run.TotalSteps,
		run.CompletedSteps,
		nullableString(run.Error),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a run and (via cascade) its captures.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCapture inserts a capture record.
func (r *SQLiteRepository) CreateCapture(ctx context.Context, capture *Capture) error {
	stepJSON, err := json.Marshal(capture.Step)
	if err != nil {
		return fmt.Errorf("marshalling step: %w", err)
	}

	query := `
		INSERT INTO captures (id, run_id, step_index, step_json, file_path, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		capture.ID,
		capture.RunID,
		capture.StepIndex,
		string(stepJSON),
		capture.FilePath,
		capture.CapturedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting capture: %w", err)
	}
	return nil
}

// ListCaptures retrieves all captures for a run ordered by step index.
func (r *SQLiteRepository) ListCaptures(ctx context.Context, runID string) ([]Capture, error) {
	query := `
		SELECT id, run_id, step_index, step_json, file_path, captured_at
		FROM captures
		WHERE run_id = ?
		ORDER BY step_index`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		capture, scanErr := scanCaptureRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning capture: %w", scanErr)
		}
		captures = append(captures, *capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating captures: %w", err)
	}
	return captures, nil
}

// GetCapture retrieves one capture by run and step index.
func (r *SQLiteRepository) GetCapture(ctx context.Context, runID string, stepIndex int) (*Capture, error) {
	query := `
		SELECT id, run_id, step_index, step_json, file_path, captured_at
		FROM captures
		WHERE run_id = ? AND step_index = ?`

	row := r.db.QueryRowContext(ctx, query, runID, stepIndex)
	capture, err := scanCaptureRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaptureNotFound
		}
		return nil, fmt.Errorf("querying capture: %w", err)
	}
	return capture, nil
}

// FailInterrupted marks runs stuck in the running state as failed.
// Called once at startup before the engine accepts new runs.
func (r *SQLiteRepository) FailInterrupted(ctx context.Context, message string) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(StatusFailed), message, now, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("failing interrupted runs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// queryRuns executes a query and returns a slice of runs.
func (r *SQLiteRepository) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, scanErr := scanRunRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(scanner rowScanner) (*Run, error) {
	var r Run
	var status, seriesJSON, baseJSON, createdAt string
	var errMsg, startedAt, finishedAt sql.NullString

	err := scanner.Scan(
		&r.ID,
		&r.Name,
		&status,
		&seriesJSON,
		&baseJSON,
		&r.TotalSteps,
		&r.CompletedSteps,
		&errMsg,
		&createdAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = Status(status)

	if seriesJSON != "" && seriesJSON != "null" {
		var series sweep.Series
		if jsonErr := json.Unmarshal([]byte(seriesJSON), &series); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling series: %w", jsonErr)
		}
		r.Series = &series
	}
	if baseJSON != "" && baseJSON != "null" {
		if jsonErr := json.Unmarshal([]byte(baseJSON), &r.Base); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling base: %w", jsonErr)
		}
	}
	if r.Base == nil {
		r.Base = sweep.Step{}
	}

	if errMsg.Valid {
		r.Error = &errMsg.String
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		r.CreatedAt = t
	}
	if startedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, startedAt.String); parseErr == nil {
			r.StartedAt = &t
		}
	}
	if finishedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, finishedAt.String); parseErr == nil {
			r.FinishedAt = &t
		}
	}

	return &r, nil
}

func scanCaptureRow(scanner rowScanner) (*Capture, error) {
	var c Capture
	var stepJSON, capturedAt string

	err := scanner.Scan(
		&c.ID,
		&c.RunID,
		&c.StepIndex,
		&stepJSON,
		&c.FilePath,
		&capturedAt,
	)
	if err != nil {
		return nil, err
	}

	if stepJSON != "" && stepJSON != "null" {
		if jsonErr := json.Unmarshal([]byte(stepJSON), &c.Step); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling step: %w", jsonErr)
		}
	}
	if c.Step == nil {
		c.Step = sweep.Step{}
	}

	if t, parseErr := time.Parse(time.RFC3339, capturedAt); parseErr == nil {
		c.CapturedAt = t
	}

	return &c, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalSchedule(run *Run) (string, string, error) {
	seriesJSON, err := json.Marshal(run.Series)
	if err != nil {
		return "", "", fmt.Errorf("marshalling series: %w", err)
	}
	base := run.Base
	if base == nil {
		base = sweep.Step{}
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return "", "", fmt.Errorf("marshalling base: %w", err)
	}
	return string(seriesJSON), string(baseJSON), nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
