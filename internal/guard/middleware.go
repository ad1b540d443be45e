// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package guard

import (
	"net/http"

	"github.com/paeltech/yee-sub000/internal/session"
)

// Resolver settles the session state for r. It may return a derived request,
// e.g. one whose context carries the per-request manager.
type Resolver func(r *http.Request) (*http.Request, session.State)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	onDecision func(*http.Request, Decision)
}

// OnDecision calls fn with every decision made for a protected path.
func OnDecision(fn func(*http.Request, Decision)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onDecision = fn }
}

// Middleware enforces table on every request. Unprotected paths pass through
// without resolving a session.
func Middleware(table *Table, resolve Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{onDecision: func(*http.Request, Decision) {}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := table.Lookup(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			r, st := resolve(r)
			d := Evaluate(st, req, r.URL.RequestURI())
			cfg.onDecision(r, d)

			switch d.Outcome {
			case Render:
				next.ServeHTTP(w, r)
			case Loading:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session is loading", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			}
		})
	}
}
