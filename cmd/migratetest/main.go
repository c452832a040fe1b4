// Command migratetest opens the configured database and verifies the schema
// got applied. Deployments run it before swapping in a new release.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/sqlite"
	"github.com/araina/gumshoe/internal/testhelpers"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("GUMSHOE_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "GUMSHOE_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// The sessions table is the whole schema; its absence means the
	// migration did not run.
	row := db.ReadOnly.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sessions'`)
	var count int
	if err = row.Scan(&count); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error checking schema", errors.SlogError(err))
		os.Exit(1)
	}
	if count != 1 {
		logger.LogAttrs(ctx, slog.LevelError, "sessions table missing, schema not applied")
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
