package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/araina/gumshoe/internal/authservice"
	"github.com/araina/gumshoe/internal/dataservice"
	"github.com/araina/gumshoe/internal/envstruct"
	"github.com/araina/gumshoe/internal/errors"
	"github.com/araina/gumshoe/internal/gamebackend"
	"github.com/araina/gumshoe/internal/logging"
	"github.com/araina/gumshoe/internal/pprofserver"
	"github.com/araina/gumshoe/internal/sqlite"
	"github.com/donseba/go-htmx"
	"github.com/joho/godotenv"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	htmx           *htmx.HTMX
	auth           *authservice.Client
	data           *dataservice.Client
	backend        *gamebackend.Client
	realtimeURL    string
	serviceKey     string
	staleness      time.Duration
	typewriterTick time.Duration
	states         *stateRegistry
}

type configuration struct {
	Addr           string        `env:"GUMSHOE_ADDR" envDefault:"localhost:4000"`
	PprofPort      string        `env:"GUMSHOE_PPROF_PORT" envDefault:""`
	SQLiteURL      string        `env:"GUMSHOE_SQLITE_URL" envDefault:"./gumshoe.sqlite"`
	ServiceURL     string        `env:"GUMSHOE_SERVICE_URL"`
	ServiceKey     string        `env:"GUMSHOE_SERVICE_KEY"`
	BackendURL     string        `env:"GUMSHOE_BACKEND_URL"`
	Staleness      time.Duration `env:"GUMSHOE_CACHE_STALENESS" envDefault:"1m"`
	TypewriterTick time.Duration `env:"GUMSHOE_TYPEWRITER_TICK" envDefault:"30ms"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg configuration
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "parse configuration")
	}

	if cfg.PprofPort != "" {
		pprofserver.Launch(cfg.PprofPort, logger)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 24*time.Hour)
	sessionManager.Lifetime = 12 * time.Hour
	sessionManager.Cookie.Secure = true

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		htmx:           htmx.New(),
		auth:           authservice.NewClient(cfg.ServiceURL, cfg.ServiceKey, logger),
		data:           dataservice.NewClient(cfg.ServiceURL, cfg.ServiceKey, logger),
		backend:        gamebackend.NewClient(cfg.BackendURL, logger),
		realtimeURL:    websocketURL(cfg.ServiceURL),
		serviceKey:     cfg.ServiceKey,
		staleness:      cfg.Staleness,
		typewriterTick: cfg.TypewriterTick,
		states:         newStateRegistry(),
	}

	go app.states.startSweeper(ctx, sessionManager.Lifetime)

	return app.configureAndStartServer(ctx, cfg.Addr)
}

// websocketURL turns the service's HTTP base URL into its websocket
// counterpart for the realtime subscription.
func websocketURL(serviceURL string) string {
	if after, found := strings.CutPrefix(serviceURL, "https://"); found {
		return "wss://" + after
	}
	if after, found := strings.CutPrefix(serviceURL, "http://"); found {
		return "ws://" + after
	}
	return serviceURL
}

func main() {
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})))

	// The .env file is optional. Real deployments configure the process
	// environment directly.
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", slog.String("reason", err.Error()))
	}

	if err := run(context.Background(), logger, os.LookupEnv); err != nil {
		logger.LogAttrs(context.Background(), slog.LevelError, "server exited", errors.SlogError(err))
		os.Exit(1)
	}
}
