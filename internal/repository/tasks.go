package repository

import (
	"context"
	"database/sql"
	"errors"

	"tasksync/internal/models"
	"tasksync/pkg/logger"
)

// ErrNoDB is returned when the repository has no connection pool.
var ErrNoDB = errors.New("repository: database not available")

// Repository is the remote task collection stored in Postgres.
type Repository struct {
	db *sql.DB
}

// New wraps an open pool (see database.Open).
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the pool is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return ErrNoDB
	}
	return r.db.PingContext(ctx)
}

// FetchAll returns every task of userID, oldest first.
func (r *Repository) FetchAll(ctx context.Context, userID string) ([]models.Task, error) {
	if r.db == nil {
		return nil, ErrNoDB
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, completed, timestamp_ms FROM tasks
		 WHERE user_id = $1 ORDER BY timestamp_ms, id`, userID)
	if err != nil {
		logger.Error(ctx, "Repository FetchAll failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	tasks := []models.Task{}
	for rows.Next() {
		t := models.Task{IsSynced: true}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.Timestamp); err != nil {
			logger.Error(ctx, "Repository scan task failed", "error", err)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Add stores t for userID. It is an upsert, same as Update.
func (r *Repository) Add(ctx context.Context, userID string, t models.Task) error {
	return r.upsert(ctx, userID, t)
}

// Update stores t for userID, replacing any existing record with the same id.
func (r *Repository) Update(ctx context.Context, userID string, t models.Task) error {
	return r.upsert(ctx, userID, t)
}

func (r *Repository) upsert(ctx context.Context, userID string, t models.Task) error {
	if r.db == nil {
		return ErrNoDB
	}
	if t.ID == "" || userID == "" {
		return models.ErrInvalidTask
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, id, title, description, completed, timestamp_ms, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id, id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   completed = EXCLUDED.completed,
		   timestamp_ms = EXCLUDED.timestamp_ms,
		   updated_at = now()`,
		userID, t.ID, t.Title, t.Description, t.Completed, t.Timestamp)
	if err != nil {
		logger.Error(ctx, "Repository upsert failed", "error", err, "id", t.ID)
		return err
	}
	return nil
}

// Delete removes a task. A missing task is not an error.
func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	if r.db == nil {
		return ErrNoDB
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return err
	}
	return nil
}
