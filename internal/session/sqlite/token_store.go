// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package sqlite keeps the CLI's session token in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const tokenKey = "session_token"

const schema = `
CREATE TABLE IF NOT EXISTS client_state (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

// TokenStore implements session.TokenStore on a key/value table.
type TokenStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path. The parent directory is
// created with owner-only permissions.
func Open(ctx context.Context, path string) (*TokenStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, oops.Code("TOKEN_STORE_OPEN_FAILED").With("path", path).Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("TOKEN_STORE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, oops.With("path", path).Wrap(err)
	}
	return s, nil
}

// New wraps an existing handle and ensures the schema exists.
func New(ctx context.Context, db *sql.DB) (*TokenStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, oops.Code("TOKEN_STORE_OPEN_FAILED").Wrapf(err, "create schema")
	}
	return &TokenStore{db: db}, nil
}

// Load returns the stored token, or "" when there is none.
func (s *TokenStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, tokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("TOKEN_STORE_LOAD_FAILED").Wrap(err)
	}
	return token, nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, tokenKey, token)
	if err != nil {
		return oops.Code("TOKEN_STORE_SAVE_FAILED").Wrap(err)
	}
	return nil
}

// Purge removes the stored token. Purging an empty store succeeds.
func (s *TokenStore) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, tokenKey); err != nil {
		return oops.Code("TOKEN_STORE_PURGE_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the database handle.
func (s *TokenStore) Close() error {
	return s.db.Close()
}
