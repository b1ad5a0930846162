// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/memory"
	"github.com/tollgate/tollgate/internal/auth/postgres"
	"github.com/tollgate/tollgate/internal/auth/token"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/httpapi"
	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/observability"
	"github.com/tollgate/tollgate/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API",
		Long: `Start the REST API and the metrics/health server. Secrets are read from
DATABASE_URL, TOLLGATE_TOKEN_SECRET and TOLLGATE_API_KEY.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(ctx, cfg, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the server until ctx is done or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openStore
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if deps.HTTPServerFactory == nil {
		deps.HTTPServerFactory = func(addr string, handler http.Handler) HTTPServer {
			return httpapi.NewServer(addr, handler)
		}
	}

	if err := cfg.Validate(); err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "tollgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return oops.Wrapf(err, "set up logging")
	}

	logger.Info("starting tollgate",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"store", cfg.Store.Driver,
		"secrets", cfg.Secrets,
	)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	accountStore, err := deps.StoreOpener(ctx, cfg)
	if err != nil {
		return err
	}
	defer accountStore.Close()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, accountStore.Ready)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
	}

	handler, err := buildHandler(cfg, accountStore.Accounts, logger, metrics)
	if err != nil {
		stopServer(obsServer, "observability")
		return err
	}

	httpServer := deps.HTTPServerFactory(cfg.HTTP.Addr, handler)
	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopServer(obsServer, "observability")
		return oops.Wrapf(err, "start http server")
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http")

	logger.Info("tollgate ready", "http_addr", httpServer.Addr())
	if deps.OnReady != nil {
		deps.OnReady(httpServer.Addr())
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopServer(httpServer, "http")
	stopServer(obsServer, "observability")

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	logger.Info("shutdown complete")
	return nil
}

// buildHandler wires the auth engine and REST router.
func buildHandler(cfg *config.Config, accounts auth.AccountRepository, logger *slog.Logger, metrics *observability.Metrics) (http.Handler, error) {
	codec, err := token.NewCodec([]byte(cfg.Secrets.TokenSecret))
	if err != nil {
		return nil, err
	}
	hasher := observability.InstrumentHasher(auth.NewArgon2idHasher(), metrics)

	svc, err := auth.NewService(accounts, hasher, codec,
		auth.WithLogger(logger),
		auth.WithTokenTTLs(cfg.TokenTTLs()),
	)
	if err != nil {
		return nil, oops.Wrapf(err, "create auth service")
	}
	accountSvc, err := auth.NewAccountService(accounts, logger)
	if err != nil {
		return nil, oops.Wrapf(err, "create account service")
	}

	h, err := httpapi.NewHandler(svc, accountSvc, logger, httpapi.WithMetrics(metrics))
	if err != nil {
		return nil, oops.Wrapf(err, "create http handler")
	}

	gin.SetMode(gin.ReleaseMode)
	return httpapi.NewRouter(h, httpapi.RouterConfig{
		APIKey:  cfg.Secrets.APIKey,
		Logger:  logger,
		Metrics: metrics,
	}), nil
}

// openStore opens the configured account store, running migrations first
// when auto-migrate is set.
func openStore(ctx context.Context, cfg *config.Config) (*AccountStore, error) {
	if cfg.Store.Driver == config.DriverMemory {
		slog.Warn("using in-memory account store; accounts are lost on restart")
		return &AccountStore{Accounts: memory.NewAccountRepository(), Close: func() {}}, nil
	}

	url := cfg.Secrets.DatabaseURL
	pool, err := store.Connect(ctx, url, store.ConnectOptions{
		Timeout: cfg.Database.ConnectTimeout,
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(url); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &AccountStore{
		Accounts: postgres.NewAccountRepository(pool),
		Ready:    pool.Ping,
		Close:    pool.Close,
	}, nil
}

func migrateUp(url string) error {
	migrator, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return err
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	slog.Info("database schema up to date", "version", version)
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(s stopper, name string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx with the server's error as the cause. It
// exits when an error is received, the channel is closed, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}
