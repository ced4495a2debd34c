// Package localstore is the durable on-device task table. Every query is
// scoped by user id; merge logic lives above this layer.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"tasksync/internal/models"
)

const taskColumns = `id, user_id, title, description, completed, is_synced, timestamp_ms`

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path and makes sure
// the schema exists. The caller must Close the store.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(wal)")
	q.Add("_pragma", "busy_timeout(5000)")
	conn, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	conn.SetMaxOpenConns(4)

	s := &Store{conn: conn, path: path}
	if err := s.InitSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		is_synced INTEGER NOT NULL DEFAULT 0,
		timestamp_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user_synced ON tasks(user_id, is_synced);

	-- remote deletes that have not been confirmed yet
	CREATE TABLE IF NOT EXISTS pending_deletes (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetAll returns all tasks for the user in insertion order.
func (s *Store) GetAll(ctx context.Context, userID string) ([]models.Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY rowid`, userID)
}

// GetUnsynced returns the user's tasks whose last write has not been pushed.
func (s *Store) GetUnsynced(ctx context.Context, userID string) ([]models.Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND is_synced = 0 ORDER BY rowid`, userID)
}

// GetByID looks up one task. A missing task is reported as found=false, not an error.
func (s *Store) GetByID(ctx context.Context, userID, id string) (models.Task, bool, error) {
	tasks, err := s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return models.Task{}, false, err
	}
	if len(tasks) == 0 {
		return models.Task{}, false, nil
	}
	return tasks[0], true, nil
}

// Count returns the number of tasks and unsynced tasks for the user.
func (s *Store) Count(ctx context.Context, userID string) (total, unsynced int, err error) {
	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_synced = 0 THEN 1 ELSE 0 END), 0) FROM tasks WHERE user_id = ?`,
		userID).Scan(&total, &unsynced)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, unsynced, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertSQL = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		completed = excluded.completed,
		is_synced = excluded.is_synced,
		timestamp_ms = excluded.timestamp_ms
	WHERE tasks.user_id = excluded.user_id`

func upsert(ctx context.Context, e execer, t models.Task) error {
	if t.ID == "" || t.UserID == "" {
		return models.ErrInvalidTask
	}
	_, err := e.ExecContext(ctx, upsertSQL,
		t.ID, t.UserID, t.Title, t.Description, t.Completed, t.IsSynced, t.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", t.ID, err)
	}
	return nil
}

// Upsert inserts or replaces a task keyed by id. A row owned by another user
// is left untouched.
func (s *Store) Upsert(ctx context.Context, t models.Task) error {
	return upsert(ctx, s.conn, t)
}

// UpsertMany writes all tasks in one transaction: either all become visible or none.
func (s *Store) UpsertMany(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, t := range tasks {
		if err := upsert(ctx, tx, t); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

// Delete removes the user's task. Deleting a missing task is a no-op.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// MarkSynced flags the task as pushed, but only if it still carries the
// timestamp that was pushed. It reports whether a row was updated.
func (s *Store) MarkSynced(ctx context.Context, userID, id string, timestamp int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE tasks SET is_synced = 1 WHERE user_id = ? AND id = ? AND timestamp_ms = ?`,
		userID, id, timestamp)
	if err != nil {
		return false, fmt.Errorf("failed to mark task %s synced: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark task %s synced: %w", id, err)
	}
	return n > 0, nil
}

// AddPendingDelete records a remote delete that still has to be sent.
func (s *Store) AddPendingDelete(ctx context.Context, userID, id string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO pending_deletes (user_id, id) VALUES (?, ?) ON CONFLICT DO NOTHING`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to record pending delete %s: %w", id, err)
	}
	return nil
}

// PendingDeletes lists task ids whose remote delete is outstanding.
func (s *Store) PendingDeletes(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM pending_deletes WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deletes: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearPendingDelete forgets an outstanding remote delete.
func (s *Store) ClearPendingDelete(ctx context.Context, userID, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM pending_deletes WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return fmt.Errorf("failed to clear pending delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Task, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.IsSynced, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}
