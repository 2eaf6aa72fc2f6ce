package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// LoggedError is one row from the append-only pipeline error log.
type LoggedError struct {
	ID       int64
	Stage    string
	Context  string
	Message  string
	LoggedAt time.Time
}

// ErrorRepository records pipeline failures that should not abort a run,
// so partial progress survives and failures stay auditable.
type ErrorRepository struct {
	db *sql.DB
}

// NewErrorRepository creates a new ErrorRepository with the given database connection
func NewErrorRepository(db *sql.DB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

// Record appends one failure. stage names the pipeline step, context
// identifies the item being processed.
func (r *ErrorRepository) Record(stage, context, message string) error {
	_, err := r.db.Exec(
		`INSERT INTO error_log (stage, context, message, logged_at) VALUES (?, ?, ?, ?)`,
		stage, context, message, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}
	return nil
}

// Recent returns the newest logged failures, newest first.
func (r *ErrorRepository) Recent(limit int) ([]LoggedError, error) {
	rows, err := r.db.Query(`
		SELECT id, stage, context, message, logged_at
		FROM error_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query error log: %w", err)
	}
	defer rows.Close()

	var entries []LoggedError
	for rows.Next() {
		var e LoggedError
		if err := rows.Scan(&e.ID, &e.Stage, &e.Context, &e.Message, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}
