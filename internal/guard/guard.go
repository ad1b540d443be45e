// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package guard decides whether a protected view is rendered, shown as
// loading, or redirected, based only on the current session state.
package guard

import (
	"net/url"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/session"
)

// Well-known locations.
const (
	LoginPath   = "/login"
	LandingPath = "/"
)

// Outcome is the result of evaluating a guard.
type Outcome int

// Guard outcomes, in the order they are checked.
const (
	Render Outcome = iota
	Loading
	RedirectLogin
	RedirectLanding
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectLanding:
		return "redirect_landing"
	default:
		return "unknown"
	}
}

// Requirement is what a protected view asks of the current user.
// The zero value only requires a signed-in user.
type Requirement struct {
	// Roles, when non-empty, lists the roles allowed to view.
	Roles []auth.Role
	// RequireGroup demands a group affiliation.
	RequireGroup bool
}

// Decision is an Outcome plus the location to go to for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Evaluate runs the guard for a request to requested. It holds no state:
// call it again whenever st changes.
func Evaluate(st session.State, req Requirement, requested string) Decision {
	switch {
	case st.Loading:
		return Decision{Outcome: Loading}
	case st.User == nil:
		return Decision{Outcome: RedirectLogin, Location: loginLocation(requested)}
	case len(req.Roles) > 0 && !auth.HasAnyRole(st.User, req.Roles...):
		return Decision{Outcome: RedirectLanding, Location: LandingPath}
	case req.RequireGroup && st.User.GroupID == nil:
		return Decision{Outcome: RedirectLanding, Location: LandingPath}
	default:
		return Decision{Outcome: Render}
	}
}

func loginLocation(requested string) string {
	if requested == "" || requested == LoginPath {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"next": {requested}}.Encode()
}
