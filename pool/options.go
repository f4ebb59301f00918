package pool

import (
	"github.com/rs/zerolog"
)

const defaultMaxSize = 10

// config holds the pool configuration.
type config struct {
	// MaxSize is the maximum number of connections the pool holds.
	MaxSize int32

	// Logger receives pool lifecycle events. Defaults to zerolog.Nop().
	Logger zerolog.Logger
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		MaxSize: defaultMaxSize,
		Logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}

	return cfg
}

// Option configures a Pool.
type Option func(*config)

// WithMaxSize sets the maximum number of connections. Defaults to 10.
func WithMaxSize(n int32) Option {
	return func(cfg *config) {
		cfg.MaxSize = n
	}
}

// WithLogger sets the logger used for pool lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger
	}
}
