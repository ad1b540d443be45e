// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package session

import (
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

// CodeBootstrapCancelled marks a Bootstrap whose result was discarded.
const CodeBootstrapCancelled = "SESSION_BOOTSTRAP_CANCELLED"

// Codes that already describe the failure to the caller and are returned untouched.
var passThroughCodes = map[string]struct{}{
	auth.CodeEmailTaken:   {},
	auth.CodeUserInvalid:  {},
	"AUTH_EMPTY_PASSWORD": {},
}

// storeFailure turns a collaborator error into a STORE_FAILURE carrying the
// original message and code for diagnostics.
func storeFailure(op string, err error) error {
	code := errutil.Code(err)
	if _, ok := passThroughCodes[code]; ok {
		return err
	}
	return oops.Code(auth.CodeStoreFailure).
		With("operation", op).
		With("cause_code", code).
		Errorf("%s: %v", op, err)
}

func invalidCredentials(email, reason string) error {
	return oops.Code(auth.CodeInvalidCredentials).
		With("email", email).
		With("reason", reason).
		Public("Invalid email or password.").
		Errorf("invalid email or password")
}

func forbidden(op string, actor *auth.User) error {
	b := oops.Code(auth.CodeForbidden).With("operation", op)
	if actor != nil {
		b = b.With("user_id", actor.ID.String()).With("role", string(actor.Role))
	}
	return b.Public("You do not have permission to do that.").Errorf("%s requires the admin role", op)
}

func notAuthenticated(op string) error {
	return oops.Code(auth.CodeNotAuthenticated).
		With("operation", op).
		Public("Please sign in first.").
		Errorf("%s requires a signed-in user", op)
}
