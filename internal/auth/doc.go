// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package auth provides the identity primitives of the youth-group admin app.
//
// # Domain Types
//
// User and Session values should be created through their constructors:
//   - NewUser - validates email, names, role and the role/group linkage
//   - NewSession - binds a hashed session token to a user with an expiry
//
// Repositories receive pre-validated values from these constructors.
//
// # Policy
//
// HasRole, HasAnyRole, CanManageGroup and CanManageMember are pure functions
// over a *User. A nil user satisfies none of them.
//
// The stateful side (who is logged in right now) lives in package session.
package auth
