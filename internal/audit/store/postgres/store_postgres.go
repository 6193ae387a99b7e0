// Package postgres persists the audit trail durably. The event insert and its
// review task insert run inside one SQL transaction: either both land or
// neither does.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"aegis/internal/audit"
	"aegis/pkg/sentinel"
)

// PostgresStore implements the audit store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed audit store.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to PostgreSQL via lib/pq.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Append inserts the event and, when present, its review task in one
// transaction.
func (s *PostgresStore) Append(ctx context.Context, event *audit.SecurityEvent, task *audit.ReviewTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO security_events (id, event_type, subject_user_id, details, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Type, event.SubjectUserID, details, event.Severity, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if task != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO review_tasks (id, event_id, subject_user_id, reason, priority, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, task.ID, task.EventID, task.SubjectUserID, task.Reason, task.Priority, task.Status, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert review task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListBySubject returns events for one subject user, oldest first.
func (s *PostgresStore) ListBySubject(ctx context.Context, userID string) ([]*audit.SecurityEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, subject_user_id, details, severity, created_at
		FROM security_events
		WHERE subject_user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*audit.SecurityEvent
	for rows.Next() {
		var e audit.SecurityEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.SubjectUserID, &details, &e.Severity, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ListOpenTasks returns review tasks that are not yet resolved, high priority
// first.
func (s *PostgresStore) ListOpenTasks(ctx context.Context) ([]*audit.ReviewTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, subject_user_id, reason, priority, status,
		       COALESCE(assigned_reviewer, ''), COALESCE(resolution, ''), created_at, updated_at
		FROM review_tasks
		WHERE status <> 'resolved'
		ORDER BY priority = 'high' DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*audit.ReviewTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTask returns a review task by ID.
func (s *PostgresStore) GetTask(ctx context.Context, id string) (*audit.ReviewTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, subject_user_id, reason, priority, status,
		       COALESCE(assigned_reviewer, ''), COALESCE(resolution, ''), created_at, updated_at
		FROM review_tasks
		WHERE id = $1
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	return t, err
}

// UpdateTask saves reviewer changes to a task.
func (s *PostgresStore) UpdateTask(ctx context.Context, task *audit.ReviewTask) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_tasks
		SET status = $2, assigned_reviewer = NULLIF($3, ''), resolution = NULLIF($4, ''), updated_at = $5
		WHERE id = $1
	`, task.ID, task.Status, task.AssignedReviewer, task.Resolution, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*audit.ReviewTask, error) {
	var t audit.ReviewTask
	err := row.Scan(&t.ID, &t.EventID, &t.SubjectUserID, &t.Reason, &t.Priority, &t.Status,
		&t.AssignedReviewer, &t.Resolution, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
