// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package group manages youth groups and their join codes.
package group

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Error codes.
const (
	CodeInvalid  = "GROUP_INVALID"
	CodeNotFound = "GROUP_NOT_FOUND"
	// CodeCodeTaken means an insert or update lost a race for a join code.
	CodeCodeTaken = "GROUP_CODE_TAKEN"
)

// MaxNameLength bounds group names.
const MaxNameLength = 120

// ErrNotFound is wrapped by repositories when a group does not exist.
var ErrNotFound = errors.New("group not found")

// Group is a youth group.
type Group struct {
	ID        int64
	Name      string
	Code      string // six-symbol join code, unique across groups
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists groups.
type Repository interface {
	// Create inserts g and fills in its ID and timestamps.
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	// UpdateCode replaces the join code of group id and returns the stored row.
	UpdateCode(ctx context.Context, id int64, code string) (*Group, error)
	// CodeExists reports whether code is used by any group other than excludeID.
	CodeExists(ctx context.Context, code string, excludeID *int64) (bool, error)
}

// ValidateName trims and checks a group name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", oops.Code(CodeInvalid).With("field", "name").Errorf("group name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", oops.Code(CodeInvalid).
			With("field", "name").
			With("max", MaxNameLength).
			Errorf("group name exceeds %d characters", MaxNameLength)
	}
	return name, nil
}
