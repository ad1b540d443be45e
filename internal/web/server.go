// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/internal/guard"
	"github.com/paeltech/yee-sub000/internal/session"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

// Recorder receives request, guard and session metrics.
type Recorder interface {
	session.Recorder
	GuardDecision(outcome string)
	RequestServed(route string, status int)
}

// GroupService is the group flow the handlers drive.
type GroupService interface {
	Create(ctx context.Context, name string) (*group.Group, error)
	RegenerateCode(ctx context.Context, id int64) (*group.Group, error)
}

// Deps are the collaborators a Server cannot work without.
type Deps struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Hasher   auth.PasswordHasher
	Groups   GroupService
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder attaches metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithCookie sets the session cookie shape. A zero TTL keeps the session TTL.
func WithCookie(c CookieConfig) Option {
	return func(s *Server) {
		if c.Name != "" {
			s.cookie.Name = c.Name
		}
		if c.TTL > 0 {
			s.cookie.TTL = c.TTL
		}
		s.cookie.Secure = c.Secure
	}
}

// WithClock replaces time.Now for the per-request managers.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server serves the admin app API.
type Server struct {
	addr   string
	deps   Deps
	cookie CookieConfig
	now    func() time.Time
	logger *slog.Logger
	rec    Recorder
	table  *guard.Table

	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer wires the routes. It does not listen until Start.
func NewServer(addr string, deps Deps, opts ...Option) (*Server, error) {
	switch {
	case deps.Users == nil, deps.Sessions == nil, deps.Hasher == nil:
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("users, sessions and hasher are required")
	case deps.Groups == nil:
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("group service is required")
	}

	s := &Server{
		addr:   addr,
		deps:   deps,
		cookie: CookieConfig{Name: DefaultCookieName, Secure: true, TTL: auth.SessionTTL},
		now:    time.Now,
		logger: slog.Default(),
		rec:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	table, err := guard.NewTable(routeRules()...)
	if err != nil {
		return nil, err
	}
	s.table = table

	mux := http.NewServeMux()
	s.handle(mux, "POST /login", s.handleLogin)
	s.handle(mux, "POST /logout", s.handleLogout)
	s.handle(mux, "GET /{$}", s.handleLanding)
	s.handle(mux, "GET /me", s.handleMe)
	s.handle(mux, "PATCH /me", s.handleUpdateProfile)
	s.handle(mux, "POST /me/password", s.handleChangePassword)
	s.handle(mux, "POST /users", s.handleRegister)
	s.handle(mux, "POST /groups", s.handleCreateGroup)
	s.handle(mux, "POST /groups/{id}/code", s.handleRegenerateCode)

	guarded := guard.Middleware(s.table, s.resolve, guard.OnDecision(func(_ *http.Request, d guard.Decision) {
		s.rec.GuardDecision(d.Outcome.String())
	}))(mux)
	s.handler = s.observe(s.withSession(guarded))
	return s, nil
}

// routeRules protects every route except login and logout.
func routeRules() []guard.Rule {
	managers := []auth.Role{auth.RoleAdmin, auth.RoleChairperson, auth.RoleSecretary}
	return []guard.Rule{
		{Pattern: "/"},
		{Pattern: "/me"},
		{Pattern: "/me/**"},
		{Pattern: "/users", Requirement: guard.Requirement{Roles: []auth.Role{auth.RoleAdmin}}},
		{Pattern: "/groups", Requirement: guard.Requirement{Roles: []auth.Role{auth.RoleAdmin}}},
		{Pattern: "/groups/*/code", Requirement: guard.Requirement{Roles: managers}},
	}
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt := routeFrom(r.Context()); rt != nil {
			rt.pattern = pattern
		}
		h(w, r)
	}))
}

// observe records one request metric per response.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt := &route{pattern: "unmatched"}
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(withRoute(r.Context(), rt)))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		s.rec.RequestServed(rt.pattern, sw.status)
	})
}

// withSession gives the request its own Manager backed by the session cookie.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := session.NewManager(session.Deps{
			Users:    s.deps.Users,
			Sessions: s.deps.Sessions,
			Hasher:   s.deps.Hasher,
			Tokens:   newCookieTokenStore(w, r, s.cookie),
		},
			session.WithLogger(s.logger),
			session.WithClock(s.now),
			session.WithTTL(s.cookie.TTL),
			session.WithRecorder(s.rec),
		)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withManager(r.Context(), m)))
	})
}

// resolve bootstraps the request's Manager for the guard. A store failure
// leaves the client signed out for this request; the cookie is kept.
func (s *Server) resolve(r *http.Request) (*http.Request, session.State) {
	m := managerFrom(r.Context())
	if err := m.Bootstrap(r.Context()); err != nil {
		errutil.LogError(r.Context(), s.logger, slog.LevelWarn, "session bootstrap failed", err,
			"path", r.URL.Path)
	}
	return r, m.State()
}

// Start listens and serves in the background. The returned channel receives
// a serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	s.httpServer = srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("operation", "shutdown web server").Wrap(err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

type nopRecorder struct{}

func (nopRecorder) LoginResult(string)        {}
func (nopRecorder) BootstrapOutcome(string)   {}
func (nopRecorder) LogoutRemote(string)       {}
func (nopRecorder) GuardDecision(string)      {}
func (nopRecorder) RequestServed(string, int) {}
