// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
)

// dummyDigest is verified against when the account is unknown or inactive so
// that a lookup miss costs as much as a password mismatch. It matches nothing.
//
//nolint:gosec // G101: not a credential
const dummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Deps are the collaborators a Manager cannot work without.
type Deps struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Hasher   auth.PasswordHasher
	Tokens   TokenStore
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL sets the lifetime of issued sessions. Defaults to auth.SessionTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.rec = r
		}
	}
}

// State is a consistent snapshot of a Manager.
type State struct {
	User    *auth.User // nil when nobody is signed in
	Loading bool       // true until the first Bootstrap or Login settles identity
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool { return s.User != nil }

// Manager owns the signed-in identity of one client.
type Manager struct {
	users    auth.UserRepository
	sessions auth.SessionRepository
	hasher   auth.PasswordHasher
	tokens   TokenStore
	logger   *slog.Logger
	now      func() time.Time
	ttl      time.Duration
	rec      Recorder

	// resolve serializes every operation that decides or changes identity.
	resolve sync.Mutex

	mu         sync.RWMutex
	user       *auth.User
	loading    bool
	settled    bool
	cancelBoot context.CancelFunc
}

// NewManager creates a Manager in the loading state.
func NewManager(deps Deps, opts ...Option) (*Manager, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("users repository is required")
	case deps.Sessions == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("sessions repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("token store is required")
	}

	m := &Manager{
		users:    deps.Users,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		logger:   slog.Default(),
		now:      time.Now,
		ttl:      auth.SessionTTL,
		rec:      nopRecorder{},
		loading:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns a snapshot safe to keep.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{User: m.user.Clone(), Loading: m.loading}
}

// Current returns a copy of the signed-in user, or nil.
func (m *Manager) Current() *auth.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Clone()
}

// Loading reports whether identity has not been settled yet.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// HasRole reports whether the signed-in user holds role.
func (m *Manager) HasRole(role auth.Role) bool { return auth.HasRole(m.current(), role) }

// HasAnyRole reports whether the signed-in user holds one of roles.
func (m *Manager) HasAnyRole(roles ...auth.Role) bool { return auth.HasAnyRole(m.current(), roles...) }

// CanManageGroup reports whether the signed-in user may manage groupID.
func (m *Manager) CanManageGroup(groupID int64) bool {
	return auth.CanManageGroup(m.current(), groupID)
}

// CanManageMember reports whether the signed-in user may manage a member of memberGroupID.
func (m *Manager) CanManageMember(memberGroupID *int64) bool {
	return auth.CanManageMember(m.current(), memberGroupID)
}

// current returns the shared pointer. The user value is never mutated in place.
func (m *Manager) current() *auth.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) settle(u *auth.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
	m.loading = false
	m.settled = true
}

func (m *Manager) cancelBootstrap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelBoot != nil {
		m.cancelBoot()
	}
}

// Bootstrap restores identity from the token store. It runs at most once
// successfully; after any Bootstrap, Login or Logout has settled identity it
// is a no-op. A stale, expired or orphaned token is purged and the client ends
// up signed out without an error. If ctx is cancelled while a store call is in
// flight, or a Login or Logout supersedes it, the result is discarded; a
// superseding Login that fails resolves the stored token itself.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.resolve.Lock()
	defer m.resolve.Unlock()

	m.mu.Lock()
	if m.settled {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancelBoot = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cancelBoot = nil
		m.mu.Unlock()
		cancel()
	}()

	user, outcome, err := m.restore(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return oops.Code(CodeBootstrapCancelled).Wrap(ctxErr)
	}

	m.rec.BootstrapOutcome(outcome)
	m.settle(user)

	if err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "session bootstrap complete", "outcome", outcome)
	return nil
}

func (m *Manager) restore(ctx context.Context) (*auth.User, string, error) {
	token, err := m.tokens.Load(ctx)
	if err != nil {
		return nil, OutcomeError, storeFailure("load local token", err)
	}
	if token == "" {
		return nil, OutcomeAbsent, nil
	}

	hash := auth.HashSessionToken(token)
	sess, err := m.sessions.GetByTokenHash(ctx, hash)
	if errors.Is(err, auth.ErrNotFound) {
		m.purgeLocal(ctx)
		return nil, OutcomeInvalid, nil
	}
	if err != nil {
		return nil, OutcomeError, storeFailure("fetch session", err)
	}

	if !sess.ValidAt(m.now()) {
		m.dropRemote(ctx, hash)
		m.purgeLocal(ctx)
		return nil, OutcomeExpired, nil
	}

	user, err := m.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, auth.ErrNotFound) {
		m.purgeLocal(ctx)
		return nil, OutcomeInactive, nil
	}
	if err != nil {
		return nil, OutcomeError, storeFailure("fetch session user", err)
	}
	if !user.IsActive {
		m.purgeLocal(ctx)
		return nil, OutcomeInactive, nil
	}
	return user, OutcomeValid, nil
}

// Login verifies credentials, issues a 24h session, stores its token locally
// and makes the user current. Unknown, inactive and wrong-password attempts all
// fail with AUTH_INVALID_CREDENTIALS and the same public message.
//
// Login supersedes an in-flight Bootstrap. If the login then fails and
// identity was never settled, the stored token is resolved in its place so
// the Manager does not stay loading.
func (m *Manager) Login(ctx context.Context, email, password string) (*auth.User, error) {
	m.cancelBootstrap()
	m.resolve.Lock()
	defer m.resolve.Unlock()

	u, err := m.login(ctx, email, password)
	if err != nil {
		m.resolveAfterFailedLogin(ctx)
	}
	return u, err
}

// resolveAfterFailedLogin settles identity from the token store unless a
// previous resolution already did. Called with resolve held.
func (m *Manager) resolveAfterFailedLogin(ctx context.Context) {
	m.mu.RLock()
	settled := m.settled
	m.mu.RUnlock()
	if settled {
		return
	}

	user, outcome, err := m.restore(ctx)
	if ctx.Err() != nil {
		return
	}
	m.rec.BootstrapOutcome(outcome)
	m.settle(user)
	if err != nil {
		m.logger.WarnContext(ctx, "session restore after failed login failed", "error", err)
	}
}

func (m *Manager) login(ctx context.Context, email, password string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		m.rec.LoginResult(ResultError)
		return nil, storeFailure("look up user", err)
	}

	if user == nil || !user.IsActive {
		reason := "unknown_account"
		if user != nil {
			reason = "inactive_account"
		}
		_, _ = m.hasher.Verify(password, dummyDigest) //nolint:errcheck // timing only
		m.rec.LoginResult(ResultInvalidCredentials)
		return nil, invalidCredentials(email, reason)
	}

	ok, err := m.hasher.Verify(password, user.PasswordDigest)
	if err != nil {
		m.logger.WarnContext(ctx, "stored password digest is unreadable",
			"user_id", user.ID.String(), "error", err)
	}
	if !ok {
		m.rec.LoginResult(ResultInvalidCredentials)
		return nil, invalidCredentials(email, "password_mismatch")
	}

	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		m.rec.LoginResult(ResultError)
		return nil, err
	}
	now := m.now()
	sess, err := auth.NewSession(user.ID, hash, now, m.ttl)
	if err != nil {
		m.rec.LoginResult(ResultError)
		return nil, err
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		m.rec.LoginResult(ResultError)
		return nil, storeFailure("create session", err)
	}
	if err := m.tokens.Save(ctx, token); err != nil {
		// Nobody can present this session without the local token.
		m.dropRemote(ctx, hash)
		m.rec.LoginResult(ResultError)
		return nil, storeFailure("save local token", err)
	}

	m.afterLogin(ctx, user, password, now)

	signedIn := user.Clone()
	signedIn.LastLogin = &now
	m.settle(signedIn)
	m.rec.LoginResult(ResultSuccess)
	m.logger.InfoContext(ctx, "user signed in",
		"user_id", user.ID.String(),
		"role", string(user.Role),
		"expires_at", sess.ExpiresAt)

	return signedIn.Clone(), nil
}

// afterLogin does the bookkeeping a successful login should not wait on.
func (m *Manager) afterLogin(ctx context.Context, user *auth.User, password string, at time.Time) {
	if err := m.users.TouchLastLogin(ctx, user.ID, at); err != nil {
		m.logger.WarnContext(ctx, "failed to record last login",
			"user_id", user.ID.String(), "error", err)
	}

	if !m.hasher.NeedsUpgrade(user.PasswordDigest) {
		return
	}
	digest, err := m.hasher.Hash(password)
	if err == nil {
		err = m.users.UpdatePassword(ctx, user.ID, digest)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "failed to upgrade password digest",
			"user_id", user.ID.String(), "error", err)
	}
}

// Logout revokes the local session. The remote record is deleted best-effort:
// if that fails the record is left to expire on its own and the client is
// signed out anyway. Calling Logout while signed out is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.cancelBootstrap()
	m.resolve.Lock()
	defer m.resolve.Unlock()

	token, loadErr := m.tokens.Load(ctx)
	if loadErr != nil {
		m.logger.WarnContext(ctx, "failed to read local token during logout", "error", loadErr)
	}

	if token == "" {
		m.rec.LogoutRemote(RemoteSkipped)
	} else {
		m.rec.LogoutRemote(m.dropRemote(ctx, auth.HashSessionToken(token)))
	}

	var purgeErr error
	if token != "" || loadErr != nil {
		purgeErr = m.tokens.Purge(ctx)
	}

	prev := m.current()
	m.settle(nil)
	if prev != nil {
		m.logger.InfoContext(ctx, "user signed out", "user_id", prev.ID.String())
	}

	if purgeErr != nil {
		return storeFailure("purge local token", purgeErr)
	}
	return nil
}

// Register creates a user. Only an admin may register users.
func (m *Manager) Register(ctx context.Context, in auth.NewUserInput) (*auth.User, error) {
	m.resolve.Lock()
	defer m.resolve.Unlock()

	actor := m.current()
	if !auth.HasRole(actor, auth.RoleAdmin) {
		return nil, forbidden("register user", actor)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	digest, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := auth.NewUser(in, digest)
	if err != nil {
		return nil, err
	}
	if err := m.users.Create(ctx, user); err != nil {
		return nil, storeFailure("create user", err)
	}

	m.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"role", string(user.Role),
		"registered_by", actor.ID.String())
	return user.Clone(), nil
}

// UpdateProfile persists p for the signed-in user and mirrors the stored row.
func (m *Manager) UpdateProfile(ctx context.Context, p auth.ProfileUpdate) (*auth.User, error) {
	m.resolve.Lock()
	defer m.resolve.Unlock()

	cur := m.current()
	if cur == nil {
		return nil, notAuthenticated("update profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	updated, err := m.users.UpdateProfile(ctx, cur.ID, p)
	if err != nil {
		return nil, storeFailure("update profile", err)
	}

	m.mu.Lock()
	if m.user != nil && m.user.ID == cur.ID {
		m.user = updated.Clone()
	}
	m.mu.Unlock()

	return updated.Clone(), nil
}

// ChangePassword replaces the signed-in user's password after checking the
// current one, then revokes every other session of that user.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	m.resolve.Lock()
	defer m.resolve.Unlock()

	cur := m.current()
	if cur == nil {
		return notAuthenticated("change password")
	}

	stored, err := m.users.GetByID(ctx, cur.ID)
	if err != nil {
		return storeFailure("fetch user", err)
	}
	ok, err := m.hasher.Verify(current, stored.PasswordDigest)
	if err != nil || !ok {
		return invalidCredentials(stored.Email, "password_mismatch")
	}

	digest, err := m.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := m.users.UpdatePassword(ctx, cur.ID, digest); err != nil {
		return storeFailure("update password", err)
	}

	keep := ""
	if token, err := m.tokens.Load(ctx); err == nil && token != "" {
		keep = auth.HashSessionToken(token)
	}
	n, err := m.sessions.DeleteByUser(ctx, cur.ID, keep)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to revoke other sessions after password change",
			"user_id", cur.ID.String(), "error", err)
	}
	m.logger.InfoContext(ctx, "password changed", "user_id", cur.ID.String(), "revoked_sessions", n)
	return nil
}

func (m *Manager) purgeLocal(ctx context.Context) {
	if err := m.tokens.Purge(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to purge local token", "error", err)
	}
}

// dropRemote deletes a session record best-effort and reports what happened.
func (m *Manager) dropRemote(ctx context.Context, tokenHash string) string {
	err := m.sessions.DeleteByTokenHash(ctx, tokenHash)
	switch {
	case err == nil:
		return RemoteDeleted
	case errors.Is(err, auth.ErrNotFound):
		return RemoteMissing
	default:
		m.logger.WarnContext(ctx, "failed to delete remote session; it will expire on its own", "error", err)
		return RemoteFailed
	}
}
