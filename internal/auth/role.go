// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package auth

import (
	"strings"

	"github.com/samber/oops"
)

// Role is the single access role held by a user.
type Role string

// Known roles.
const (
	RoleAdmin       Role = "admin"
	RoleChairperson Role = "chairperson"
	RoleSecretary   Role = "secretary"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleChairperson, RoleSecretary:
		return true
	}
	return false
}

// GroupScoped reports whether the role only makes sense with a group affiliation.
func (r Role) GroupScoped() bool {
	return r == RoleChairperson || r == RoleSecretary
}

func (r Role) String() string { return string(r) }

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code(CodeUserInvalid).
			With("role", s).
			Errorf("unknown role %q", s)
	}
	return r, nil
}
