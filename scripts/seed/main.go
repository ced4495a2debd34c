// Seed fills one user's remote task collection. Run from project root:
//
//	go run ./scripts/seed -user alice -n 1000
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/database"

	"github.com/google/uuid"
)

func main() {
	userID := flag.String("user", "seed-user", "owner of the seeded tasks")
	total := flag.Int("n", 10_000, "number of tasks")
	flag.Parse()

	config.LoadEnvFile(".env")
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Database unavailable:", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
		fmt.Fprintln(os.Stderr, "Schema failed:", err)
		os.Exit(1)
	}

	const batchSize = 500
	start := time.Now()
	base := start.UnixMilli()

	for done := 0; done < *total; {
		n := min(batchSize, *total-done)
		args := make([]interface{}, 0, n*5)
		placeholders := make([]string, 0, n)
		for i := 0; i < n; i++ {
			k := done + i + 1
			placeholders = append(placeholders, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,NOW())",
				5*i+1, 5*i+2, 5*i+3, 5*i+4, 5*i+5))
			args = append(args,
				*userID,
				uuid.New().String(),
				fmt.Sprintf("Task %d", k),
				fmt.Sprintf("Description for task %d", k),
				base+int64(k),
			)
		}
		q := `INSERT INTO tasks (user_id, id, title, description, timestamp_ms, updated_at) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := db.ExecContext(ctx, q, args...); err != nil {
			fmt.Fprintln(os.Stderr, "Insert failed:", err)
			os.Exit(1)
		}
		done += n
		fmt.Printf("\rInserted %d / %d", done, *total)
	}

	fmt.Printf("\nDone: %d tasks for %s in %v\n", *total, *userID, time.Since(start))
}
