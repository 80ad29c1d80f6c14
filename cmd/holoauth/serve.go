// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	authpg "github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/internal/auth/redisstore"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/notify"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/internal/web"
	"github.com/holomush/holoauth/internal/xdg"
	"github.com/holomush/holoauth/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API",
		Long: `Start the HTTP authentication API and, when metrics.addr is set,
the observability server exposing Prometheus metrics and health probes.

Without --config, $XDG_CONFIG_HOME/holoauth/config.yaml is read if present.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (*pgxpool.Pool, error) {
			return store.OpenPool(ctx, url, store.DefaultConnectOptions)
		}
	}
	if out.RedisFactory == nil {
		out.RedisFactory = redisstore.Dial
	}
	if out.APIServerFactory == nil {
		out.APIServerFactory = func(addr string, handler http.Handler) Server {
			return web.NewServer(addr, handler, web.Timeouts{})
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	return &out
}

// runServeWithDeps runs the service until a signal arrives, ctx is
// cancelled or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	path := configFile
	if path == "" {
		found, err := xdg.FindConfigFile()
		if err != nil {
			return err
		}
		path = found
	}

	cfg, err := config.Load(path, cmd.Flags(), deps.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: "holoauth",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  deps.LogWriter,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hasher := auth.NewArgon2idHasher()
	backends, err := openBackends(ctx, cfg, hasher, deps)
	if err != nil {
		return err
	}
	defer backends.close()

	var tokenOpts []auth.TokenOption
	if cfg.Token.Issuer != "" {
		tokenOpts = append(tokenOpts, auth.WithIssuer(cfg.Token.Issuer))
	}
	tokens, err := auth.NewTokenService([]byte(cfg.Secrets.JWTSecret), cfg.Token.TTL, backends.banned, tokenOpts...)
	if err != nil {
		return err
	}

	// Readiness flips once the API listener is bound.
	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load)
		metrics = obsServer.Metrics()
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	if metrics != nil {
		notifier = notify.NewInstrumented(notifier, metrics.NotificationsTotal)
	}

	svc, err := auth.NewService(auth.ServiceConfig{
		Users:    backends.users,
		Codes:    backends.codes,
		Banned:   backends.banned,
		Hasher:   hasher,
		Tokens:   tokens,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	apiCfg := web.Config{
		Service:        svc,
		Cookie:         web.CookieConfig{Name: cfg.Token.CookieName, MaxAge: tokens.TTL()},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	}
	if metrics != nil {
		apiCfg.Metrics = metrics
	}
	api, err := web.NewAPI(apiCfg)
	if err != nil {
		return err
	}

	apiServer := deps.APIServerFactory(cfg.HTTP.Addr, api.Handler())
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVE_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")
	slog.Info("api server started", "addr", apiServer.Addr())

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				slog.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return oops.Code("SERVE_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	if backends.purger != nil && cfg.Store.PurgeInterval > 0 {
		go runBanPurge(ctx, backends.purger, cfg.Store.PurgeInterval)
	}

	ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("holoauth started")
	slog.Info("holoauth ready",
		"api_addr", apiServer.Addr(),
		"users", cfg.Store.Users,
		"codes", cfg.Store.Codes,
		"banned", cfg.Store.Banned,
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		slog.Warn("pending 2FA notifications abandoned", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// banPurger deletes bans whose token has expired.
type banPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// backends holds the stores selected by configuration and the connections
// backing them.
type backends struct {
	users   auth.UserStore
	codes   auth.TwoFACodeStore
	banned  auth.BannedTokenStore
	purger  banPurger
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, hasher auth.PasswordHasher, deps *ServeDeps) (*backends, error) {
	b := &backends{}

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := deps.PoolFactory(ctx, cfg.Secrets.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pool = p
		b.closers = append(b.closers, pool.Close)
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		c, err := deps.RedisFactory(ctx, redisstore.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Secrets.RedisPassword,
			DB:         cfg.Redis.DB,
			MaxRetries: store.DefaultConnectOptions.MaxRetries,
			BaseDelay:  store.DefaultConnectOptions.BaseDelay,
		})
		if err != nil {
			b.close()
			return nil, err
		}
		rdb = c
		b.closers = append(b.closers, func() { _ = rdb.Close() })
	}

	switch cfg.Store.Users {
	case config.BackendPostgres:
		b.users = authpg.NewUserRepository(pool, hasher)
	default:
		b.users = memory.NewUserStore(hasher)
	}

	switch cfg.Store.Codes {
	case config.BackendRedis:
		b.codes = redisstore.NewTwoFACodeStore(rdb, cfg.Redis.ChallengeTTL)
	default:
		b.codes = memory.NewTwoFACodeStore()
	}

	switch cfg.Store.Banned {
	case config.BackendRedis:
		b.banned = redisstore.NewBannedTokenStore(rdb, cfg.Token.TTL)
	case config.BackendPostgres:
		repo := authpg.NewBannedTokenRepository(pool, cfg.Token.TTL)
		b.banned = repo
		b.purger = repo
	default:
		b.banned = memory.NewBannedTokenStore()
	}

	return b, nil
}

// buildNotifier returns the email gateway client when email delivery is
// enabled, and a debug-log notifier otherwise.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
	if !cfg.Email.Enabled {
		logger.Warn("email delivery disabled, 2FA codes go to the debug log")
		return notify.NewLogNotifier(logger), nil
	}
	client, err := notify.NewEmailClient(notify.EmailConfig{
		BaseURL: cfg.Email.BaseURL,
		Sender:  cfg.Email.Sender,
		Subject: cfg.Email.Subject,
		Token:   cfg.Secrets.EmailToken,
		Timeout: cfg.Email.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runBanPurge deletes expired bans every interval until ctx is done.
func runBanPurge(ctx context.Context, purger banPurger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogErrorContext(ctx, slog.Default(), "ban purge failed", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired bans", "count", n)
			}
		}
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It
// returns when the channel closes or ctx is done.
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
