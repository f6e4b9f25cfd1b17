package manifest

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/angriff36/manifest/internal/kitchen"
	"github.com/angriff36/manifest/internal/publisher"
	"github.com/angriff36/manifest/internal/runtime"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	notifyURL       string
	logger          *slog.Logger
	version         string
	thresholds      *kitchen.Thresholds
	sink            publisher.Sink
	definitions     []*runtime.Definition
	routeRegistrars []func(mux *http.ServeMux)
	middlewares     []func(http.Handler) http.Handler
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (MANIFEST_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY (NOTIFY_URL env var).
// Set this when using a connection pooler (e.g. PgBouncer) for queries — LISTEN/NOTIFY
// requires a direct (non-pooled) connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithThresholds overrides the advisory guard thresholds loaded from config.
func WithThresholds(t kitchen.Thresholds) Option {
	return func(o *resolvedOptions) { o.thresholds = &t }
}

// WithSink replaces the default log sink for outbox event delivery. The sink
// must tolerate redelivery: events are published at least once.
func WithSink(s publisher.Sink) Option {
	return func(o *resolvedOptions) { o.sink = s }
}

// WithDefinition registers an additional command definition alongside the
// built-in kitchen commands. Registering a duplicate (entity, command) pair
// fails New.
func WithDefinition(def *runtime.Definition) Option {
	return func(o *resolvedOptions) { o.definitions = append(o.definitions, def) }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn func(mux *http.ServeMux)) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run after
// the embedded migrations. Multiple filesystems may be registered; they are
// applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
