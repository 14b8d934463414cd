package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dev/bravebird/wallet-verify/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

const schema = `
	CREATE TABLE IF NOT EXISTS verification_runs (
		id                   VARCHAR(36)  NOT NULL PRIMARY KEY,
		target_url           TEXT         NOT NULL,
		role                 VARCHAR(64)  NOT NULL,
		name                 VARCHAR(255) NOT NULL,
		driver               VARCHAR(32)  NOT NULL,
		status               VARCHAR(16)  NOT NULL,
		temporal_run_id      VARCHAR(64)  NOT NULL DEFAULT '',
		temporal_workflow_id VARCHAR(128) NOT NULL DEFAULT '',
		screenshot_path      TEXT,
		error_message        TEXT,
		duration_ms          BIGINT       NOT NULL DEFAULT 0,
		created_at           DATETIME     NOT NULL,
		started_at           DATETIME     NULL,
		completed_at         DATETIME     NULL,
		INDEX idx_verification_runs_created_at (created_at)
	)
`

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the verification_runs table if it does not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ==================== Verification Runs ====================

// CreateVerificationRun inserts a new run
func (db *DB) CreateVerificationRun(ctx context.Context, run *models.VerificationRun) error {
	query := `
		INSERT INTO verification_runs (id, target_url, role, name, driver, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	run.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.TargetURL,
		run.Role,
		run.Name,
		run.Driver,
		run.Status,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// AttachTemporalIDs marks a run as started by a Temporal workflow
func (db *DB) AttachTemporalIDs(ctx context.Context, id, workflowID, runID string) error {
	query := `
		UPDATE verification_runs
		SET temporal_workflow_id = ?, temporal_run_id = ?, status = ?, started_at = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, workflowID, runID, models.StatusRunning, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to attach temporal ids: %w", err)
	}
	return nil
}

// GetVerificationRun retrieves a run by ID. It returns nil, nil when
// the run does not exist.
func (db *DB) GetVerificationRun(ctx context.Context, id string) (*models.VerificationRun, error) {
	query := `
		SELECT id, target_url, role, name, driver, status, temporal_run_id, temporal_workflow_id,
		       screenshot_path, error_message, duration_ms, created_at, started_at, completed_at
		FROM verification_runs
		WHERE id = ?
	`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListVerificationRuns retrieves the most recent runs
func (db *DB) ListVerificationRuns(ctx context.Context, limit int) ([]models.VerificationRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, target_url, role, name, driver, status, temporal_run_id, temporal_workflow_id,
		       screenshot_path, error_message, duration_ms, created_at, started_at, completed_at
		FROM verification_runs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.VerificationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// UpdateVerificationRunStatus updates the status of a run
func (db *DB) UpdateVerificationRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE verification_runs
		SET status = ?, error_message = ?, completed_at = IF(? IN ('success', 'failed', 'canceled'), ?, completed_at)
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// CompleteVerificationRun stores the final outcome of a run
func (db *DB) CompleteVerificationRun(ctx context.Context, result models.VerificationResult) error {
	query := `
		UPDATE verification_runs
		SET status = ?, error_message = ?, screenshot_path = ?, duration_ms = ?, completed_at = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query,
		result.Status,
		result.ErrorMessage,
		result.ScreenshotPath,
		result.Duration,
		time.Now(),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.VerificationRun, error) {
	var run models.VerificationRun
	var screenshotPath, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.TargetURL,
		&run.Role,
		&run.Name,
		&run.Driver,
		&run.Status,
		&run.TemporalRunID,
		&run.TemporalWorkflowID,
		&screenshotPath,
		&errorMessage,
		&run.Duration,
		&run.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ScreenshotPath = screenshotPath.String
	run.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}
