package orm

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	// This identifies the library in traces and metrics.
	scope = "github.com/kroma-labs/sentinel-orm/orm"
)

// config holds the configuration for instrumentation.
type config struct {
	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	// When no global provider is configured, a no-op tracer is used (safe, but no traces).
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Tracer is the tracer instance created from TracerProvider.
	Tracer trace.Tracer

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// Logger receives connection lifecycle events. Defaults to zerolog.Nop().
	Logger zerolog.Logger

	// DBSystem identifies the database management system (DBMS) product.
	// It is filled in from the Backend and is not user configurable.
	DBSystem string

	// DBName is the name of the database being accessed.
	// When empty, the name reported by the server (if inspected) is used.
	DBName string

	// InstanceName identifies a specific database connection instance,
	// e.g. "primary" or "replica". Recorded as "db.instance".
	InstanceName string

	// RecordStatement controls whether "db.statement" is attached to spans.
	// Its default is fixed at build time by the sentinel_statement tag.
	RecordStatement bool

	// QuerySanitizer sanitizes SQL queries before adding to spans.
	// If nil, recorded statements are included as-is.
	QuerySanitizer func(query string) string

	// SkipServerInfo disables the server inspection query run on establish.
	SkipServerInfo bool
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		TracerProvider:  otel.GetTracerProvider(),
		MeterProvider:   otel.GetMeterProvider(),
		Logger:          zerolog.Nop(),
		RecordStatement: statementFields,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// Option configures the instrumentation.
type Option func(*config)

// WithTracerProvider sets a custom tracer provider.
// If not called, the global provider from otel.GetTracerProvider() is used.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(...)
//	conn, _ := postgres.Establish(ctx, dsn,
//	    orm.WithTracerProvider(tp),
//	)
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithDBName sets the database name being accessed.
// This is added as the "db.name" attribute on all spans and takes
// precedence over the name reported by the server.
func WithDBName(name string) Option {
	return func(cfg *config) {
		cfg.DBName = name
	}
}

// WithInstanceName sets an identifier for this specific database connection.
// This is added as the "db.instance" attribute on all spans.
//
// Use this to distinguish between multiple connections to the SAME database,
// such as primary/replica setups or read/write splits:
//
//	writer, _ := postgres.Establish(ctx, primaryDSN, orm.WithInstanceName("primary"))
//	reader, _ := postgres.Establish(ctx, replicaDSN, orm.WithInstanceName("replica"))
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.InstanceName = name
	}
}

// WithQuerySanitizer sets a custom query sanitizer function applied to
// recorded statements. Use DefaultQuerySanitizer for a basic implementation
// that replaces literals with "?" placeholders.
//
// The sanitizer only runs when statements are recorded, i.e. when the
// module is built with the sentinel_statement tag.
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithDisableQuery disables recording of SQL queries in spans, even when
// the module is built with the sentinel_statement tag.
//
// "db.operation" (SELECT, INSERT, etc.) is still recorded.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.RecordStatement = false
	}
}

// WithLogger sets the logger used for connection lifecycle events.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	conn, _ := sqlite.Establish(ctx, "app.db", orm.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger
	}
}

// WithoutServerInfo skips the server inspection query normally issued right
// after a connection is established. Server address, port and version
// attributes are then omitted from spans.
func WithoutServerInfo() Option {
	return func(cfg *config) {
		cfg.SkipServerInfo = true
	}
}
