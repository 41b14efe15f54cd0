// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sayedAmaan-6104/tpo-react/internal/config"
	"github.com/sayedAmaan-6104/tpo-react/internal/httpapi"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/postgres"
	"github.com/sayedAmaan-6104/tpo-react/internal/logging"
	"github.com/sayedAmaan-6104/tpo-react/internal/notify"
	"github.com/sayedAmaan-6104/tpo-react/internal/observability"
	"github.com/sayedAmaan-6104/tpo-react/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identity API server",
		Long: `Run the HTTP API under /api/auth together with the metrics and
health endpoints, the notification dispatcher and the expired token purge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "tpo",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   level,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := autoMigrate(defaultMigratorFactory, cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("database schema is up to date")
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, store.ConnectOptions{MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	obs := observability.NewServer(cfg.MetricsAddr, observability.PingChecker(pool, 2*time.Second))
	identity.RegisterMetrics(obs.Registry())
	notify.RegisterMetrics(obs.Registry())

	sender, closeSender, err := newSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSender(); err != nil {
			logger.Warn("error closing notification sender", "error", err)
		}
	}()
	dispatcher, err := notify.NewDispatcher(sender, notify.WithDispatcherLogger(logger))
	if err != nil {
		return err
	}

	handler, tokens, err := buildAPI(pool, cfg, logger, dispatcher, obs.Metrics())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
	}
	apiServer := newAPIServer(ctx, handler.Routes())
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")
	logger.Info("api server listening", "addr", listener.Addr().String())

	if cfg.MetricsAddr != "" {
		obsErrCh, err := obs.Start()
		if err != nil {
			shutdownAPI(apiServer, logger)
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	purgeDone := make(chan struct{})
	go func() {
		defer close(purgeDone)
		runPurgeLoop(ctx, tokens, cfg.TokenPurgeInterval, cfg.TokenRetention, obs.Metrics().TokensPurgedTotal, logger)
	}()

	logger.Info("tpo server ready", "version", version)
	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownAPI(apiServer, logger)
	<-purgeDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notifications left undelivered at shutdown", "error", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildAPI wires repositories, services and the HTTP handler over pool.
func buildAPI(
	pool postgres.Pool,
	cfg *config.Config,
	logger *slog.Logger,
	notifier identity.Notifier,
	metrics *observability.Metrics,
) (*httpapi.Handler, *identity.TokenService, error) {
	identities := postgres.NewIdentityRepository(pool)
	profiles := postgres.NewProfileRepository(pool)
	tx := postgres.NewTransactor(pool)
	hasher := identity.NewArgon2idHasher()

	opts := []identity.Option{
		identity.WithLogger(logger),
		identity.WithSecretPolicy(identity.SecretPolicy{MinLength: cfg.SecretMinLength}),
		identity.WithResetTokenTTL(cfg.ResetTokenTTL),
		identity.WithVerificationTokenTTL(cfg.VerificationTokenTTL),
		identity.WithNotifier(notifier),
	}

	reg, err := identity.NewRegistrationService(identities, profiles, tx, hasher, opts...)
	if err != nil {
		return nil, nil, err
	}
	auth, err := identity.NewAuthService(identities, profiles, postgres.NewSessionRepository(pool), tx, hasher, opts...)
	if err != nil {
		return nil, nil, err
	}
	tokens, err := identity.NewTokenService(identities, postgres.NewTokenRepository(pool), tx, hasher, opts...)
	if err != nil {
		return nil, nil, err
	}

	handler, err := httpapi.NewHandler(reg, auth, tokens, httpapi.Config{
		AllowedOrigins: cfg.CORSOrigins,
		CookieSecure:   cfg.CookieSecure,
		CookieMaxAge:   cfg.CookieMaxAge,
		ExposeTokens:   cfg.ExposeTokens,
	}, httpapi.WithLogger(logger), httpapi.WithRequestObserver(metrics.ObserveHTTP))
	if err != nil {
		return nil, nil, err
	}
	return handler, tokens, nil
}

// newSender builds the configured notification transport and its closer.
func newSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Sender, func() error, error) {
	switch cfg.NotifyTransport {
	case config.TransportAMQP:
		s, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("notifications go to amqp", "queue", cfg.AMQPQueue)
		return s, s.Close, nil
	case config.TransportRedis:
		s, err := notify.DialRedis(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("notifications go to redis", "channel", cfg.RedisChannel)
		return s, s.Close, nil
	case config.TransportLog, "":
		return &notify.LogSender{Logger: logger, IncludeToken: cfg.ExposeTokens}, func() error { return nil }, nil
	}
	return nil, nil, oops.Code("CONFIG_INVALID").With("notify_transport", cfg.NotifyTransport).Errorf("unknown notification transport")
}

// AutoMigrator is the subset of Migrator used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

func autoMigrate(factory MigratorFactory, databaseURL string) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	return applyMigrations(m)
}

func applyMigrations(m AutoMigrator) error {
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(upErr)
	}
	if closeErr != nil {
		slog.Warn("error closing migrator", "error", closeErr)
	}
	return nil
}

// TokenPurger deletes expired tokens.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, retain time.Duration) (int64, error)
}

// runPurgeLoop deletes expired tokens every interval until ctx is done.
// A zero interval disables purging.
func runPurgeLoop(
	ctx context.Context,
	purger TokenPurger,
	interval, retain time.Duration,
	purged prometheus.Counter,
	logger *slog.Logger,
) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx, retain)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnContext(ctx, "best-effort token purge failed",
					"operation", "purge_expired_tokens",
					"error", err.Error())
				continue
			}
			purged.Add(float64(n))
		}
	}
}

// newAPIServer serves h with request contexts derived from base. Cancelling
// base starts shutdown but does not cancel requests still draining.
func newAPIServer(base context.Context, h http.Handler) *http.Server {
	requestBase := context.WithoutCancel(base)
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestBase },
	}
}

func shutdownAPI(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
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
