// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/holomush/accountd/internal/account"
	pgaccount "github.com/holomush/accountd/internal/account/postgres"
	"github.com/holomush/accountd/internal/account/sqlite"
	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/xdg"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StorageFactory opens account storage for the configured driver.
	// Default: openStorage
	StorageFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (Storage, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string, logger *slog.Logger) (AutoMigrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, opts ...observability.Option) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// Ready, if set, is called with the API address once requests are served.
	Ready func(apiAddr string)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.StorageFactory == nil {
		out.StorageFactory = openStorage
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string, logger *slog.Logger) (AutoMigrator, error) {
			return store.NewMigrator(databaseURL, logger)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, opts ...observability.Option) ObservabilityServer {
			return observability.NewServer(addr, opts...)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	return &out
}

// Storage is account storage as the service and readiness probe use it.
type Storage interface {
	auth.AccountStore
	Ping(ctx context.Context) error
	Close() error
}

// AutoMigrator wraps the methods serve uses from store.Migrator.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// accountStorage pairs an account.Store with whatever closes its backend.
type accountStorage struct {
	*account.Store
	close func() error
}

func (s accountStorage) Close() error {
	return s.close()
}

// openStorage builds the account store over PostgreSQL or SQLite.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (Storage, error) {
	var (
		repo    account.Repository
		closeFn func() error
	)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		path := cfg.Database.SQLitePath
		if path == "" {
			p, err := xdg.DatabaseFile()
			if err != nil {
				return nil, err
			}
			path = p
		}
		r, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite account storage", "path", path)
		repo, closeFn = r, r.Close
	default:
		pool, err := store.Connect(ctx, store.ConnectConfig{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			Retries:  cfg.Database.ConnectRetries,
			Backoff:  cfg.Database.ConnectBackoff,
		}, logger)
		if err != nil {
			return nil, err
		}
		repo = pgaccount.NewAccountRepository(pool)
		closeFn = func() error {
			pool.Close()
			return nil
		}
	}

	accounts, err := account.NewStore(repo, account.NewArgon2idHasher(),
		account.WithStoreLogger(logger),
		account.WithLegacyHashHook(metrics.RecordLegacyHash),
	)
	if err != nil {
		_ = closeFn() //nolint:errcheck // construction error takes precedence
		return nil, err
	}
	return accountStorage{Store: accounts, close: closeFn}, nil
}
