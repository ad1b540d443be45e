// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes attached to oops errors returned by this package and its callers.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeNotAuthenticated   = "AUTH_NOT_AUTHENTICATED"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeUserInvalid        = "USER_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeStoreFailure       = "STORE_FAILURE"
)
