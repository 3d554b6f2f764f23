package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shopcore/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (fallback: SHOP_POSTGRES_DSN)")
	flag.Parse()

	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(os.Getenv("SHOP_POSTGRES_DSN"))
	}
	if target == "" {
		fail("SHOP_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, target)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	action := strings.ToLower(strings.TrimSpace(*direction))
	switch action {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			fail("migrate up failed: %v", err)
		}
	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		if err := store.MigrateDown(ctx, n); err != nil {
			fail("migrate down failed: %v", err)
		}
	case "status":
		// Только отчёт, без изменений.
	default:
		fail("unsupported direction: %s (use up|down|status)", *direction)
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	fmt.Printf("migrate %s ok: version=%d applied=%d\n", action, version, count)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
