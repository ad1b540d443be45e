// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package web is the HTTP front door of the admin app.
//
// Every request gets its own session.Manager whose token store is the
// request's session cookie. Protected routes are resolved through the guard
// table before they reach a handler, so handlers can assume a settled identity.
package web
