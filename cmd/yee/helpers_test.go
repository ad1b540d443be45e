// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/auth/memory"
	"github.com/paeltech/yee-sub000/internal/config"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/internal/session"
)

// memGroups is an in-memory group.Repository.
type memGroups struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]group.Group
}

func (r *memGroups) Create(_ context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.rows {
		if other.Code == g.Code {
			return oops.Code(group.CodeCodeTaken).Errorf("code taken")
		}
	}
	r.nextID++
	g.ID = r.nextID
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	r.rows[g.ID] = *g
	return nil
}

func (r *memGroups) GetByID(_ context.Context, id int64) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return nil, oops.Code(group.CodeNotFound).With("id", id).Wrap(group.ErrNotFound)
	}
	return &g, nil
}

func (r *memGroups) UpdateCode(_ context.Context, id int64, code string) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rows[id]
	if !ok {
		return nil, oops.Code(group.CodeNotFound).With("id", id).Wrap(group.ErrNotFound)
	}
	g.Code = code
	r.rows[id] = g
	return &g, nil
}

func (r *memGroups) CodeExists(_ context.Context, code string, excludeID *int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, g := range r.rows {
		if g.Code == code && (excludeID == nil || id != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

// closableTokens survives across command invocations like the sqlite file does.
type closableTokens struct {
	*session.MemoryTokenStore
}

func (closableTokens) Close() error { return nil }

type fakeMigrator struct {
	version uint
	dirty   bool
	pending []uint
	calls   []string
	err     error
}

func (f *fakeMigrator) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeMigrator) Up() error                          { return f.record("up") }
func (f *fakeMigrator) Down() error                        { return f.record("down") }
func (f *fakeMigrator) Steps(n int) error                  { return f.record("steps " + strconv.Itoa(n)) }
func (f *fakeMigrator) Force(v int) error                  { return f.record("force " + strconv.Itoa(v)) }
func (f *fakeMigrator) Close() error                       { return nil }
func (f *fakeMigrator) Version() (uint, bool, error)       { return f.version, f.dirty, nil }
func (f *fakeMigrator) PendingMigrations() ([]uint, error) { return f.pending, nil }

type testEnv struct {
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	groups   *memGroups
	tokens   closableTokens
	hasher   *auth.Argon2idHasher
	migrator *fakeMigrator
	env      map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &testEnv{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(nil),
		groups:   &memGroups{rows: map[int64]group.Group{}},
		tokens:   closableTokens{session.NewMemoryTokenStore("")},
		hasher: auth.NewArgon2idHasher(auth.WithParams(auth.Argon2Params{
			Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32,
		})),
		migrator: &fakeMigrator{},
		env:      map[string]string{"DATABASE_URL": "postgres://test@localhost/yee"},
	}
}

func (e *testEnv) deps() *cliDeps {
	return &cliDeps{
		Getenv:    func(k string) string { return e.env[k] },
		LogOutput: io.Discard,
		OpenBackend: func(_ context.Context, cfg *config.Config, logger *slog.Logger, observer idalloc.Observer) (*backend, error) {
			return &backend{
				Users:    e.users,
				Sessions: e.sessions,
				Hasher:   e.hasher,
				Groups:   newGroupService(cfg, e.groups, logger, observer),
			}, nil
		},
		OpenMigrator: func(string) (migrator, error) { return e.migrator, nil },
		OpenTokens: func(context.Context, *config.Config) (tokenStore, error) {
			return e.tokens, nil
		},
	}
}

// run executes the CLI with args, feeding stdin, and returns what it printed.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(e.deps())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) seedUser(t *testing.T, email, password string, role auth.Role, groupID *int64) *auth.User {
	t.Helper()
	digest, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser(auth.NewUserInput{
		Email: email, Password: password, FirstName: "Test", LastName: "User", Role: role, GroupID: groupID,
	}, digest)
	require.NoError(t, err)
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}
