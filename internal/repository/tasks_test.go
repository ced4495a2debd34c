package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"tasksync/internal/config"
	"tasksync/internal/database"
	"tasksync/internal/models"
)

// newTestRepo connects to TEST_DATABASE_URL; the tests skip without it.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, config.Config{DatabaseURL: dsn, DBPoolSize: 4})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id IN ('repo-alice', 'repo-bob')`); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	return New(db)
}

func TestRepositoryUpsertAndFetch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	task := models.Task{ID: "t1", Title: "A", Timestamp: 10}
	if err := r.Add(ctx, "repo-alice", task); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	task.Title, task.Timestamp = "A2", 20
	if err := r.Update(ctx, "repo-alice", task); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := r.Add(ctx, "repo-bob", models.Task{ID: "t1", Title: "B", Timestamp: 5}); err != nil {
		t.Fatalf("Add for bob failed: %v", err)
	}

	got, err := r.FetchAll(ctx, "repo-alice")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "A2" || got[0].Timestamp != 20 || !got[0].IsSynced {
		t.Errorf("unexpected tasks: %+v", got)
	}

	if err := r.Delete(ctx, "repo-alice", "t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.Delete(ctx, "repo-alice", "t1"); err != nil {
		t.Errorf("second delete should be a no-op: %v", err)
	}
	bob, _ := r.FetchAll(ctx, "repo-bob")
	if len(bob) != 1 {
		t.Errorf("bob's task must survive alice's delete, got %+v", bob)
	}
}

func TestRepositoryWithoutDB(t *testing.T) {
	r := New((*sql.DB)(nil))
	if _, err := r.FetchAll(context.Background(), "u"); !errors.Is(err, ErrNoDB) {
		t.Errorf("expected ErrNoDB, got %v", err)
	}
	if err := r.Ping(context.Background()); !errors.Is(err, ErrNoDB) {
		t.Errorf("expected ErrNoDB, got %v", err)
	}
}
