package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/thermostatter/thermostatter-api/app"
	"github.com/thermostatter/thermostatter-api/config"
	"github.com/thermostatter/thermostatter-api/internal/observability"
	"github.com/thermostatter/thermostatter-api/routes"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("thermostatter-api: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.Observability)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	telemetry, err := observability.InitTelemetry(ctx, telemetryConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger = telemetry.WrapLogger(logger)

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = telemetry.Shutdown(context.Background())
		return err
	}

	srv := newServer(cfg.Server, routes.SetupRoutes(deps))
	serveErr := serve(ctx, srv, cfg.Server, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Warn("dependency shutdown failed", zap.Error(err))
	}

	return serveErr
}

// initLogger builds the process logger from the observability settings
func initLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName), zap.String("version", version)), nil
}

func telemetryConfig(cfg *config.Config) observability.TelemetryConfig {
	return observability.TelemetryConfig{
		ServiceName:     cfg.Observability.ServiceName,
		ServiceVersion:  version,
		Environment:     cfg.Environment,
		Endpoint:        cfg.Observability.OTLPEndpoint,
		Insecure:        cfg.Observability.OTLPInsecure,
		TracingEnabled:  cfg.Observability.TracingEnabled,
		SampleRate:      cfg.Observability.TracingSampleRate,
		MetricsEnabled:  cfg.Observability.MetricsEnabled,
		MetricsInterval: cfg.Observability.MetricsInterval,
		LogsEnabled:     cfg.Observability.LogsExportEnabled,
	}
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// serve runs srv until ctx is cancelled, then drains in-flight requests
func serve(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLS.Enabled))

		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
