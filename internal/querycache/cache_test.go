package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestCached_StalenessWindow(t *testing.T) {
	t.Parallel()
	var fetches int
	cached := NewCached(time.Minute, func(_ context.Context) (int, error) {
		fetches++
		return fetches, nil
	})
	current := time.Date(2025, time.March, 15, 22, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return current }

	ctx := context.Background()

	// Fresh reads are served from cache.
	v, err := cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	v, err = cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Equal(t, 1, fetches)

	// Crossing the staleness window refetches.
	current = current.Add(time.Minute + time.Second)
	v, err = cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, 2, fetches)
}

func TestCached_Invalidate(t *testing.T) {
	t.Parallel()
	var fetches int
	cached := NewCached(time.Hour, func(_ context.Context) (string, error) {
		fetches++
		return "value", nil
	})

	ctx := context.Background()
	_, err := cached.Get(ctx)
	require.NoError(t, err)
	_, err = cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fetches)

	cached.Invalidate()
	_, err = cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fetches)
}

func TestCached_FetchError(t *testing.T) {
	t.Parallel()
	sentinel := errors.NewSentinel("service unavailable")
	fail := true
	cached := NewCached(time.Hour, func(_ context.Context) (string, error) {
		if fail {
			return "", sentinel
		}
		return "recovered", nil
	})

	ctx := context.Background()
	_, err := cached.Get(ctx)
	require.ErrorIs(t, err, sentinel)

	// A later Get retries the fetch instead of caching the failure.
	fail = false
	v, err := cached.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
}
