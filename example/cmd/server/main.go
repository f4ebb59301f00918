// Command server runs a small users API on top of a pool of instrumented
// SQLite connections.
//
//	go run -tags sentinel_statement ./example/cmd/server --addr :8080
//
// Flags can also be given as SENTINEL_* environment variables, e.g.
// SENTINEL_OTLP_ENDPOINT=localhost:4317.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sentinel-orm/example/internal/api"
	"github.com/kroma-labs/sentinel-orm/example/internal/config"
	"github.com/kroma-labs/sentinel-orm/example/internal/database"
	"github.com/kroma-labs/sentinel-orm/example/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve a users API backed by instrumented SQLite connections",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	if err := config.Bind(cmd, v); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	store, err := database.Open(ctx, database.Options{
		DSN:               cfg.DSN,
		MaxConns:          cfg.MaxConns,
		InstanceName:      cfg.InstanceName,
		DisableStatements: cfg.DisableStatements,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewRouter(store, api.Options{
			Logger:  logger,
			Metrics: promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stderr).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "sentinel-orm-example").
		Logger()
}
