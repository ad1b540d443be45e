// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web

import (
	"context"

	"github.com/paeltech/yee-sub000/internal/session"
)

type managerKey struct{}

type routeKey struct{}

func withManager(ctx context.Context, m *session.Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// managerFrom returns the per-request manager, or nil outside the server's
// middleware chain.
func managerFrom(ctx context.Context) *session.Manager {
	m, _ := ctx.Value(managerKey{}).(*session.Manager)
	return m
}

// route is filled in by the matched handler so the outermost middleware can
// label metrics with the mux pattern.
type route struct{ pattern string }

func withRoute(ctx context.Context, rt *route) context.Context {
	return context.WithValue(ctx, routeKey{}, rt)
}

func routeFrom(ctx context.Context) *route {
	rt, _ := ctx.Value(routeKey{}).(*route)
	return rt
}
