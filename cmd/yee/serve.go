// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/config"
	"github.com/paeltech/yee-sub000/internal/observability"
	"github.com/paeltech/yee-sub000/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long: `Start the HTTP API together with the metrics and health server.
Expired sessions are swept on session.sweep_interval.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, opts.deps)
		},
	}

	cmd.Flags().String("http.addr", ":8080", "API listen address")
	cmd.Flags().String("metrics.addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("session.backend", config.BackendPostgres, "session store (postgres or redis)")
	cmd.Flags().String("redis.addr", "localhost:6379", "redis address for the redis session backend")

	return cmd
}

// runServe blocks until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *cliDeps) error {
	logger.Info("starting yee",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"session_backend", cfg.Session.Backend)

	var ready func(context.Context) error
	obs := observability.NewServer(cfg.Metrics.Addr, func(ctx context.Context) error { return ready(ctx) }, logger)
	metrics := obs.Metrics()

	b, err := deps.OpenBackend(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer b.Close()
	ready = b.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}

	api, err := web.NewServer(cfg.HTTP.Addr, web.Deps{
		Users:    b.Users,
		Sessions: b.Sessions,
		Hasher:   b.Hasher,
		Groups:   b.Groups,
	},
		web.WithLogger(logger),
		web.WithRecorder(metrics),
		web.WithCookie(web.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
			TTL:    cfg.Session.TTL,
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		obsErrs, err := obs.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
	}

	apiErrs, err := api.Start()
	if err != nil {
		stopServers(logger, obs)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrs, "web", logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSweeper(ctx, b.Sessions, cfg.Session.SweepInterval, metrics.SessionsDeleted, logger)
	}()

	logger.Info("yee ready", "http_addr", api.Addr())
	<-ctx.Done()
	logger.Info("shutting down")

	stopServers(logger, api, obs)
	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServers(logger *slog.Logger, servers ...stopper) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		logger.Error("server error, triggering shutdown", "server", name, "error", err)
		cancel()
	case <-ctx.Done():
	}
}

// runSweeper deletes expired session records every interval until ctx ends.
// A non-positive interval disables it.
func runSweeper(ctx context.Context, sessions auth.SessionRepository, every time.Duration, swept func(int64), logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logger.WarnContext(ctx, "expired session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				swept(n)
				logger.InfoContext(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}
