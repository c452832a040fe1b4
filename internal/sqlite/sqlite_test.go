package sqlite_test

import (
	"context"
	"io"
	"testing"

	"github.com/araina/gumshoe/internal/sqlite"
	"github.com/araina/gumshoe/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)

	_, err = db.ReadWrite.ExecContext(ctx,
		"INSERT INTO sessions (token, data, expiry) VALUES ('token', x'00', 1.0)")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.ReadOnly.GetContext(ctx, &count, "SELECT count(*) FROM sessions"))
	require.Equal(t, 1, count)

	// The read-only connection must reject writes.
	_, err = db.ReadOnly.ExecContext(ctx, "DELETE FROM sessions")
	require.Error(t, err)
}
