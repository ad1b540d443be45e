// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package auth

import "slices"

// HasRole reports whether u holds exactly role.
func HasRole(u *User, role Role) bool {
	return u != nil && u.Role == role
}

// HasAnyRole reports whether u holds one of roles.
func HasAnyRole(u *User, roles ...Role) bool {
	return u != nil && slices.Contains(roles, u.Role)
}

// CanManageGroup reports whether u may manage the group with groupID.
// Admins manage every group; chairpersons and secretaries only their own.
func CanManageGroup(u *User, groupID int64) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	return u.Role.GroupScoped() && u.GroupID != nil && *u.GroupID == groupID
}

// CanManageMember reports whether u may manage a member of memberGroupID.
// Members without a group are admin-only.
func CanManageMember(u *User, memberGroupID *int64) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	if memberGroupID == nil {
		return false
	}
	return CanManageGroup(u, *memberGroupID)
}
