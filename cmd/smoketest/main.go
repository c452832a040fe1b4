// Command smoketest pokes a deployed instance to confirm it serves traffic.
// It checks the health endpoint and that the front page renders.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/logging"
)

func checkEndpoint(ctx context.Context, client *http.Client, url string, wantInBody string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return errors.New("unexpected status", slog.Int("status", resp.StatusCode))
	}
	if wantInBody == "" {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if !strings.Contains(string(body), wantInBody) {
		return errors.New("body missing expected content", slog.String("want", wantInBody))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	url := "https://" + os.Args[1]
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	client := &http.Client{}
	if err := checkEndpoint(ctx, client, url+"/api/healthy", ""); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "health check failed", errors.SlogError(err))
		os.Exit(1)
	}
	if err := checkEndpoint(ctx, client, url, "Gumshoe"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "front page check failed", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
