// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/api"
	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/token"
	"github.com/holomush/accountd/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account HTTP API",
		Long: `Start the account HTTP API. Storage is connected (and migrated when
database.auto_migrate is set) before the listener opens. Metrics and
health probes are served separately on metrics.addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps runs the service until a signal arrives, ctx is cancelled,
// or a server fails. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

	logger.Info("starting accountd",
		"addr", cfg.HTTP.Addr,
		"database_driver", cfg.Database.Driver,
		"status_policy", cfg.HTTP.StatusPolicy,
	)

	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, logger, deps); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Storage is assigned before the observability server starts, so the
	// readiness probe never sees it nil.
	var storage Storage
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr,
			observability.WithLogger(logger),
			observability.WithReadinessProbe(func(ctx context.Context) error {
				return storage.Ping(ctx)
			}),
		)
		metrics = obsServer.Metrics()
	}

	storage, err := deps.StorageFactory(ctx, cfg, logger, metrics)
	if err != nil {
		return oops.Code("STORAGE_OPEN_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing storage", closeErr)
		}
	}()

	issuer, err := token.NewIssuer(token.Config{
		SigningKey: []byte(cfg.Token.SigningKey),
		TTL:        cfg.Token.TTL,
		Issuer:     cfg.Token.Issuer,
		ClockSkew:  cfg.Token.ClockSkew,
	})
	if err != nil {
		return err
	}

	svc, err := auth.NewService(storage, issuer,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithOperationTimeout(cfg.Auth.OperationTimeout),
	)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(svc,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithStatusPolicy(api.StatusPolicy(cfg.HTTP.StatusPolicy)),
		api.WithTokenTTL(issuer.TTL()),
		api.WithRequestTimeout(cfg.HTTP.RequestTimeout),
	)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	if obsServer != nil {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			_ = httpServer.Shutdown(shutdownCtx) //nolint:errcheck // start error takes precedence
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	apiAddr := listener.Addr().String()
	logger.Info("accountd ready", "addr", apiAddr)
	if deps.Ready != nil {
		deps.Ready(apiAddr)
	}

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		logger.Error("http server failed", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping http server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	if serveErr != nil {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// autoMigrate applies pending migrations before storage is opened.
func autoMigrate(databaseURL string, logger *slog.Logger, deps *ServeDeps) error {
	migrator, err := deps.MigratorFactory(databaseURL, logger)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database schema is up to date")
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
