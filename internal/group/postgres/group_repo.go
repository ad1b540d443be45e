// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package postgres implements group.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/group"
)

type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements group.Repository.
type Repository struct {
	pool poolIface
	now  func() time.Time
}

// NewRepository creates a Repository.
func NewRepository(pool poolIface) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Create inserts g and fills in ID and timestamps.
func (r *Repository) Create(ctx context.Context, g *group.Group) error {
	now := r.now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO groups (name, code, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at, updated_at
	`, g.Name, g.Code, now).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if isCodeTaken(err) {
		return oops.Code(group.CodeCodeTaken).With("code", g.Code).Errorf("join code already in use")
	}
	if err != nil {
		return oops.Code("GROUP_CREATE_FAILED").
			With("operation", "insert group").
			With("name", g.Name).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a group.
func (r *Repository) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	var g group.Group
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, code, created_at, updated_at FROM groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Code, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(group.CodeNotFound).With("id", id).Wrap(group.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("GROUP_GET_FAILED").
			With("operation", "get group").
			With("id", id).
			Wrap(err)
	}
	return &g, nil
}

// UpdateCode replaces the join code of a group.
func (r *Repository) UpdateCode(ctx context.Context, id int64, code string) (*group.Group, error) {
	var g group.Group
	err := r.pool.QueryRow(ctx, `
		UPDATE groups SET code = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, code, created_at, updated_at
	`, id, code, r.now()).Scan(&g.ID, &g.Name, &g.Code, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(group.CodeNotFound).With("id", id).Wrap(group.ErrNotFound)
	}
	if isCodeTaken(err) {
		return nil, oops.Code(group.CodeCodeTaken).With("code", code).Errorf("join code already in use")
	}
	if err != nil {
		return nil, oops.Code("GROUP_UPDATE_FAILED").
			With("operation", "update group code").
			With("id", id).
			Wrap(err)
	}
	return &g, nil
}

// CodeExists reports whether code belongs to a group other than excludeID.
func (r *Repository) CodeExists(ctx context.Context, code string, excludeID *int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM groups WHERE code = $1 AND ($2::BIGINT IS NULL OR id <> $2)
		)
	`, code, excludeID).Scan(&exists)
	if err != nil {
		return false, oops.Code("GROUP_CODE_CHECK_FAILED").
			With("operation", "check group code").
			With("code", code).
			Wrap(err)
	}
	return exists, nil
}

func isCodeTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
