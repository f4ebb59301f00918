// Package database is the example's user store: a pool of instrumented
// SQLite connections.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kroma-labs/sentinel-orm/orm"
	"github.com/kroma-labs/sentinel-orm/pool"
	"github.com/kroma-labs/sentinel-orm/sqlite"
)

const meterName = "github.com/kroma-labs/sentinel-orm/example"

// SQLite extended result codes.
const (
	codeUniqueViolation     = "2067"
	codePrimaryKeyViolation = "1555"
)

var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrConflict is returned when a user with the same email exists.
	ErrConflict = errors.New("user already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS users_created_at ON users (created_at);`

// Options configures Open.
type Options struct {
	DSN               string
	MaxConns          int32
	InstanceName      string
	DisableStatements bool
	Logger            zerolog.Logger

	// Registerer receives the pool collector. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Store reads and writes users.
type Store struct {
	pool   *pool.Pool[*sqlite.Conn]
	logger zerolog.Logger
}

// Open creates the connection pool, warms one connection and registers
// pool metrics with OpenTelemetry and Prometheus.
func Open(ctx context.Context, opts Options) (*Store, error) {
	ormOpts := []orm.Option{
		orm.WithInstanceName(opts.InstanceName),
		orm.WithLogger(opts.Logger),
		orm.WithQuerySanitizer(orm.DefaultQuerySanitizer),
	}
	if opts.DisableStatements {
		ormOpts = append(ormOpts, orm.WithDisableQuery())
	}

	p, err := pool.New(
		sqlite.Connect(opts.DSN, ormOpts...),
		pool.WithMaxSize(opts.MaxConns),
		pool.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := p.Prewarm(ctx, 1); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	err = pool.RecordMetrics(p, otel.GetMeterProvider().Meter(meterName),
		attribute.String("db.system", sqlite.System),
		attribute.String("db.instance", opts.InstanceName),
	)
	if err != nil {
		opts.Logger.Warn().Err(err).Msg("failed to register pool metrics")
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(pool.NewCollector(p, opts.InstanceName)); err != nil {
		opts.Logger.Warn().Err(err).Msg("failed to register pool collector")
	}

	return &Store{pool: p, logger: opts.Logger}, nil
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.pool.BatchExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Ping checks that a pooled connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// classify maps driver errors onto the store's sentinel errors.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	switch sqlite.ErrorCode(err) {
	case codeUniqueViolation, codePrimaryKeyViolation:
		return ErrConflict
	}
	return err
}
