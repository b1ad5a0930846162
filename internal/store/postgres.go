// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package store provides PostgreSQL connectivity and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection defaults.
const (
	DefaultConnectTimeout = 30 * time.Second
	defaultRetryBase      = 250 * time.Millisecond
	defaultRetryCap       = 5 * time.Second
)

// ConnectOptions tune Connect.
type ConnectOptions struct {
	// Timeout bounds the total time spent waiting for the first successful ping.
	Timeout time.Duration
	// RetryBase is the first backoff interval. It doubles up to a 5s cap.
	RetryBase time.Duration
	Logger    *slog.Logger
}

// Connect opens a pool for databaseURL and pings it with exponential backoff
// until it answers or opts.Timeout elapses. Databases started alongside the
// service are often not ready on the first attempt.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := pingWithRetry(ctx, pool.Ping, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, opts ConnectOptions) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	backoff := retry.WithMaxDuration(opts.Timeout,
		retry.WithCappedDuration(defaultRetryCap,
			retry.NewExponential(opts.RetryBase)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	if attempt > 1 {
		opts.Logger.InfoContext(ctx, "database ready", "attempts", attempt)
	}
	return nil
}
