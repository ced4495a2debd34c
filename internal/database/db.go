package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"tasksync/internal/config"
	"tasksync/pkg/logger"
)

// ErrNoDatabaseURL is returned by Open when DATABASE_URL is unset.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

// Open creates the Postgres connection pool and checks it is reachable.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBPoolSize)
	db.SetMaxIdleConns(max(cfg.DBPoolSize/2, 1))
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info(ctx, "Database pool initialized", "max_open", cfg.DBPoolSize)
	return db, nil
}

// MigrateOrCreateSchema creates the tasks table when missing. Tasks are keyed
// by (user_id, id) so two users can never collide on an id.
func MigrateOrCreateSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			user_id      TEXT    NOT NULL,
			id           TEXT    NOT NULL,
			title        TEXT    NOT NULL DEFAULT '',
			description  TEXT    NOT NULL DEFAULT '',
			completed    BOOLEAN NOT NULL DEFAULT FALSE,
			timestamp_ms BIGINT  NOT NULL DEFAULT 0,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_ts ON tasks (user_id, timestamp_ms)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	logger.Info(ctx, "Schema ready")
	return nil
}
