package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/rawkode-academy/telemetry-sink/internal/buffer"
	"github.com/rawkode-academy/telemetry-sink/internal/config"
	"github.com/rawkode-academy/telemetry-sink/internal/consumer"
	"github.com/rawkode-academy/telemetry-sink/internal/flush"
	"github.com/rawkode-academy/telemetry-sink/internal/handlers"
	"github.com/rawkode-academy/telemetry-sink/internal/logging"
	natsclient "github.com/rawkode-academy/telemetry-sink/internal/messaging/nats"
	"github.com/rawkode-academy/telemetry-sink/internal/middleware"
	"github.com/rawkode-academy/telemetry-sink/internal/server"
	"github.com/rawkode-academy/telemetry-sink/internal/sink"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("collector"))
	logging.SetDefault(logger)

	slog.Info("Starting collector",
		slog.Int("port", cfg.Server.Port),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Duration("flush_interval", cfg.Buffer.FlushInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sinks := buildSinks(cfg, logger)

	buffers := buffer.NewManager(store, cfg.Buffer.FlushInterval, nil, logger)
	defer buffers.Close()

	controller := flush.NewController(buffers, sinks, cfg.Buffer.SinkTimeout, logger)
	if err := buffers.SetWake(controller.Wake); err != nil {
		return fmt.Errorf("wire flush controller: %w", err)
	}

	flushCtx, stopFlush := context.WithCancel(context.Background())
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		controller.Run(flushCtx)
	}()

	if cfg.NATS.Enabled() {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		client, err := natsclient.NewClient(natsCfg)
		if err != nil {
			stopFlush()
			<-flushDone
			return fmt.Errorf("connect nats: %w", err)
		}
		defer client.Close()

		cons := consumer.New(client, buffers, cfg.NATS.SubjectPrefix, cfg.NATS.Queue, logger)
		if err := cons.Start(); err != nil {
			stopFlush()
			<-flushDone
			return fmt.Errorf("start nats consumer: %w", err)
		}
		defer cons.Stop()
		slog.Info("NATS ingestion enabled", slog.String("url", cfg.NATS.URL))
	}

	handler := handlers.NewIngestHandler(buffers, logger)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.NewRouter(handler, middleware.AuthConfig{
			TokenHash: cfg.Auth.TokenHash,
			JWTSecret: cfg.Auth.JWTSecret,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stopFlush()
		<-flushDone
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	// Stop the flush worker last; Run drains remaining records on the way out.
	stopFlush()
	<-flushDone
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (buffer.Store, error) {
	switch cfg.Storage.Backend {
	case "", "redis":
		store, err := buffer.NewRedisStore(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	case "postgres":
		if err := migrateUp(cfg.Storage.MigrationsPath, cfg.Storage.PostgresURL); err != nil {
			return nil, err
		}
		store, err := buffer.NewPostgresStore(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func migrateUp(migrationsPath, connString string) error {
	m, err := migrate.New("file://"+migrationsPath, connString)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func buildSinks(cfg *config.Config, logger *logging.Logger) []sink.Sink {
	timeout := cfg.Buffer.SinkTimeout
	var sinks []sink.Sink

	// Primary backend: raw log passthrough and worker traces go to its OTLP
	// endpoint; events, metrics and exceptions go through the capture API.
	if cfg.Capture.OTLPEnabled() {
		auth := sink.Auth{BearerToken: cfg.Capture.OTLPToken}
		sinks = append(sinks,
			sink.NewLogPassthrough("capture-logs", cfg.Capture.OTLPEndpoint, auth, timeout),
			sink.NewOTLPLogs("capture-traces", cfg.Capture.OTLPEndpoint, auth, false, timeout),
		)
	}
	if cfg.Capture.Enabled() {
		sinks = append(sinks, sink.NewCapture(cfg.Capture.Host, cfg.Capture.APIKey, timeout))
	}

	// Secondary backend: same three paths, with events/metrics/exceptions
	// converted to OTLP log records since it has no capture API.
	if cfg.OTLP.Enabled() {
		auth := sink.Auth{InstanceID: cfg.OTLP.InstanceID, Token: cfg.OTLP.Token}
		sinks = append(sinks,
			sink.NewLogPassthrough("otlp-logs", cfg.OTLP.Endpoint, auth, timeout),
			sink.NewOTLPLogs("otlp", cfg.OTLP.Endpoint, auth, true, timeout),
		)
	}

	if cfg.Archive.Enabled() {
		archive, err := sink.NewArchive(sink.ArchiveConfig{
			URL:         cfg.Archive.URL,
			Username:    cfg.Archive.Username,
			Password:    cfg.Archive.Password,
			Insecure:    cfg.Archive.Insecure,
			IndexPrefix: cfg.Archive.IndexPrefix,
		})
		if err != nil {
			logger.Warn("archive sink unavailable, continuing without it", logging.Error(err))
		} else {
			sinks = append(sinks, archive)
		}
	}

	if len(sinks) == 0 {
		logger.Warn("no sinks configured; flushed telemetry will be discarded")
	}
	return sinks
}
