// Package manifest is the public API for embedding the Manifest command
// runtime server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := manifest.New(
//	    manifest.WithVersion(version),
//	    manifest.WithLogger(logger),
//	    manifest.WithSink(myEventBus),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: manifest (root) imports
// internal/*, but internal/* never imports manifest (root).
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/angriff36/manifest/api"
	"github.com/angriff36/manifest/internal/auth"
	"github.com/angriff36/manifest/internal/config"
	"github.com/angriff36/manifest/internal/kitchen"
	"github.com/angriff36/manifest/internal/publisher"
	"github.com/angriff36/manifest/internal/ratelimit"
	"github.com/angriff36/manifest/internal/runtime"
	"github.com/angriff36/manifest/internal/server"
	"github.com/angriff36/manifest/internal/storage"
	"github.com/angriff36/manifest/internal/telemetry"
	"github.com/angriff36/manifest/migrations"
)

// App is the Manifest server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	worker       *publisher.Worker
	limiter      ratelimit.Limiter
	registry     *runtime.Registry
	executor     *runtime.Executor
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Manifest server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("manifest starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}
	db.RegisterPoolMetrics()

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Command registry: built-in kitchen commands plus embedder definitions.
	thresholds := kitchen.Thresholds{
		HighDifficulty:        cfg.WarnHighDifficulty,
		LongRecipeMinutes:     cfg.WarnLongRecipeMinutes,
		QuantityIncreaseRatio: cfg.WarnQuantityIncrease,
		ShortNoticeDays:       cfg.WarnShortNoticeDays,
	}
	if o.thresholds != nil {
		thresholds = *o.thresholds
	}
	registry := runtime.NewRegistry()
	if err := kitchen.Register(registry, thresholds); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("commands: %w", err)
	}
	for _, def := range o.definitions {
		if err := registry.Register(def); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("commands: %w", err)
		}
	}

	executor := runtime.NewExecutor(db, registry, logger, cfg.IdempotencyTTL)

	// Outbox publisher.
	sink := o.sink
	if sink == nil {
		sink = &publisher.LogSink{Logger: logger}
	}
	worker := publisher.NewWorker(db, sink, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	// Rate limiter. A non-positive per-minute allowance disables limiting.
	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewMemoryLimiter(float64(cfg.RateLimitPerMinute)/60.0, cfg.RateLimitPerMinute)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.Config{
		DB:                  db,
		Executor:            executor,
		Registry:            registry,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         o.routeRegistrars,
		Middlewares:         o.middlewares,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		worker:       worker,
		limiter:      limiter,
		registry:     registry,
		executor:     executor,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Handler returns the root HTTP handler, for embedding into an existing
// server or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the outbox publisher and the HTTP server, then blocks until ctx
// is cancelled or a fatal server error occurs. On return, Shutdown has been
// called — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	a.worker.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a two-phase graceful shutdown: stop accepting HTTP
// requests and drain in-flight commands, then flush the remaining outbox
// events. It closes the database pool and the OTEL provider last.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("manifest shutting down")

	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	// In-flight commands have committed by now; drain what they enqueued.
	drainCtx, drainCancel := context.WithTimeout(ctx, 10*time.Second)
	a.worker.Drain(drainCtx)
	drainCancel()

	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close(context.Background())

	a.logger.Info("manifest stopped")
	return nil
}
