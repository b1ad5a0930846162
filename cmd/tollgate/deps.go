// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"net/http"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/observability"
	"github.com/tollgate/tollgate/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the account store selected by the configuration.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config) (*AccountStore, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// HTTPServerFactory creates the REST server.
	// Default: httpapi.NewServer
	HTTPServerFactory func(addr string, handler http.Handler) HTTPServer

	// OnReady is called with the REST listen address once serving.
	OnReady func(addr string)
}

// AccountStore is an opened account repository.
type AccountStore struct {
	Accounts auth.AccountRepository
	// Ready reports store health; nil means always ready.
	Ready observability.ReadinessChecker
	Close func()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// HTTPServer interface wraps the methods used from httpapi.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d *MigrateDeps) factory() func(string) (Migrator, error) {
	if d != nil && d.MigratorFactory != nil {
		return d.MigratorFactory
	}
	return func(url string) (Migrator, error) {
		return store.NewMigrator(url)
	}
}
