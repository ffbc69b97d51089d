// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store manages the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectConfig controls how Connect opens the pool.
type ConnectConfig struct {
	URL      string
	MaxConns int32
	// Retries is how many extra pings are attempted after the first fails.
	Retries uint64
	// Backoff is the initial delay between pings; it doubles each attempt.
	Backoff time.Duration
}

// maxBackoff caps the delay between connection attempts.
const maxBackoff = 30 * time.Second

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool and waits for the database to answer a ping,
// retrying with exponential backoff. Retries only happen here at startup.
func Connect(ctx context.Context, cfg ConnectConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		// the URL may carry a password, so only the parse error is kept
		return nil, oops.Code("DB_CONFIG_INVALID").Wrapf(err, "parse database url")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", poolCfg.ConnConfig.Host).
			Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, cfg.Retries, cfg.Backoff, logger); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", poolCfg.ConnConfig.Host).
			With("database", poolCfg.ConnConfig.Database).
			Wrap(err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns)
	return pool, nil
}

func waitForDatabase(ctx context.Context, db pinger, retries uint64, backoff time.Duration, logger *slog.Logger) error {
	if backoff <= 0 {
		backoff = time.Second
	}
	b := retry.NewExponential(backoff)
	b = retry.WithCappedDuration(maxBackoff, b)
	b = retry.WithMaxRetries(retries, b)

	attempt := 0
	//nolint:wrapcheck // caller wraps with connection context
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
