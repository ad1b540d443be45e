// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	authpg "github.com/paeltech/yee-sub000/internal/auth/postgres"
	authredis "github.com/paeltech/yee-sub000/internal/auth/redis"
	"github.com/paeltech/yee-sub000/internal/config"
	"github.com/paeltech/yee-sub000/internal/group"
	grouppg "github.com/paeltech/yee-sub000/internal/group/postgres"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/internal/session"
	"github.com/paeltech/yee-sub000/internal/session/sqlite"
	"github.com/paeltech/yee-sub000/internal/store"
	"github.com/paeltech/yee-sub000/internal/xdg"
)

// cliDeps contains injectable dependencies for the commands.
// Nil fields fall back to the production implementations in defaultDeps.
type cliDeps struct {
	// Getenv reads the environment. Default: os.Getenv
	Getenv func(string) string

	// LogOutput receives log records. Default: stderr
	LogOutput io.Writer

	// OpenBackend connects the repositories every database-backed command needs.
	// observer may be nil.
	OpenBackend func(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer idalloc.Observer) (*backend, error)

	// OpenMigrator creates a schema migrator for a database URL.
	OpenMigrator func(databaseURL string) (migrator, error)

	// OpenTokens opens the client-local session token store.
	OpenTokens func(ctx context.Context, cfg *config.Config) (tokenStore, error)
}

// tokenStore is a session.TokenStore that holds a resource.
type tokenStore interface {
	session.TokenStore
	Close() error
}

// migrator is the subset of store.Migrator the migrate command drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// groupService is the group flow the CLI drives.
type groupService interface {
	Create(ctx context.Context, name string) (*group.Group, error)
	RegenerateCode(ctx context.Context, id int64) (*group.Group, error)
}

// backend bundles the stores behind one database connection.
type backend struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Groups   groupService
	Hasher   auth.PasswordHasher
	Ready    func(ctx context.Context) error
	close    []func()
}

// Close releases connections in reverse order of opening.
func (b *backend) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

func defaultDeps() *cliDeps {
	return &cliDeps{}
}

func (d *cliDeps) withDefaults() *cliDeps {
	out := *d
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openBackend
	}
	if out.OpenMigrator == nil {
		out.OpenMigrator = func(url string) (migrator, error) { return store.NewMigrator(url) }
	}
	if out.OpenTokens == nil {
		out.OpenTokens = openTokens
	}
	return &out
}

// openBackend connects PostgreSQL and, when configured, Redis.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer idalloc.Observer) (*backend, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	b := &backend{
		Users:  authpg.NewUserRepository(pool),
		Hasher: auth.NewArgon2idHasher(),
		Ready:  pool.Ping,
		close:  []func(){pool.Close},
	}

	sessions, closeSessions, err := openSessions(ctx, cfg, pool)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Sessions = sessions
	if closeSessions != nil {
		b.close = append(b.close, closeSessions)
	}

	groups := grouppg.NewRepository(pool)
	b.Groups = newGroupService(cfg, groups, logger, observer)
	return b, nil
}

func newGroupService(cfg *config.Config, repo group.Repository, logger *slog.Logger, observer idalloc.Observer) *group.Service {
	alloc := idalloc.NewAllocator(repo,
		idalloc.WithRetryDelay(cfg.Allocator.RetryDelay),
		idalloc.WithLogger(logger),
		idalloc.WithObserver(observer),
	)
	return group.NewService(repo, alloc,
		group.WithMaxAttempts(cfg.Allocator.MaxAttempts),
		group.WithLogger(logger),
	)
}

func openSessions(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (auth.SessionRepository, func(), error) {
	if cfg.Session.Backend != config.BackendRedis {
		return authpg.NewSessionRepository(pool), nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
	}
	return authredis.NewSessionRepository(rdb, ""), func() { _ = rdb.Close() }, nil
}

func openTokens(ctx context.Context, cfg *config.Config) (tokenStore, error) {
	path := cfg.TokenStore.Path
	if path == "" {
		var err error
		if path, err = xdg.TokenStorePath(); err != nil {
			return nil, err
		}
	}
	return sqlite.Open(ctx, path)
}
