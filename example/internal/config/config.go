// Package config loads the example server configuration from flags and
// SENTINEL_* environment variables.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SENTINEL"

// Config is the example server configuration.
type Config struct {
	Addr              string `mapstructure:"addr"`
	DSN               string `mapstructure:"dsn"`
	MaxConns          int32  `mapstructure:"max-conns"`
	InstanceName      string `mapstructure:"instance"`
	OTLPEndpoint      string `mapstructure:"otlp-endpoint"`
	ServiceName       string `mapstructure:"service-name"`
	LogLevel          string `mapstructure:"log-level"`
	DisableStatements bool   `mapstructure:"disable-statements"`
}

// Bind registers the server flags on cmd and binds them, together with
// their environment variables, to v. "max-conns" is read from
// SENTINEL_MAX_CONNS.
func Bind(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("dsn", "file:sentinel-example.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		"SQLite data source name")
	flags.Int32("max-conns", 4, "maximum pooled database connections")
	flags.String("instance", "primary", "db.instance attribute value")
	flags.String("otlp-endpoint", "", "OTLP gRPC endpoint; traces go to stdout when empty")
	flags.String("service-name", "sentinel-orm-example", "service.name resource attribute")
	flags.String("log-level", "info", "zerolog level")
	flags.Bool("disable-statements", false, "never record db.statement on spans")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v.BindPFlags(flags)
}

// Load reads the bound configuration and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DSN == "" {
		return Config{}, errors.New("config: dsn is required")
	}
	if cfg.MaxConns <= 0 {
		return Config{}, errors.New("config: max-conns must be positive")
	}

	return cfg, nil
}
