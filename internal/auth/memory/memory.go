// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package memory implements the auth repositories in process memory. It backs
// tests and local development runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository.
type UserRepository struct {
	mu   sync.RWMutex
	rows map[ulid.ULID]*auth.User
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{rows: make(map[ulid.ULID]*auth.User)}
}

// Create stores a copy of u.
func (r *UserRepository) Create(_ context.Context, u *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.Email == u.Email {
			return oops.Code(auth.CodeEmailTaken).With("email", u.Email).Errorf("email is already registered")
		}
	}
	r.rows[u.ID] = u.Clone()
	return nil
}

// GetByID returns a copy of the user.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, oops.Code(auth.CodeUserNotFound).With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return u.Clone(), nil
}

// GetByEmail returns a copy of the user with email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, oops.Code(auth.CodeUserNotFound).With("email", email).Wrap(auth.ErrNotFound)
}

// UpdateProfile applies p and returns the stored copy.
func (r *UserRepository) UpdateProfile(_ context.Context, id ulid.ULID, p auth.ProfileUpdate) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, oops.Code(auth.CodeUserNotFound).With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if p.Email != nil {
		email := auth.NormalizeEmail(*p.Email)
		for otherID, other := range r.rows {
			if otherID != id && other.Email == email {
				return nil, oops.Code(auth.CodeEmailTaken).With("email", email).Errorf("email is already registered")
			}
		}
	}
	next := u.Clone()
	next.Apply(p)
	next.UpdatedAt = time.Now()
	r.rows[id] = next
	return next.Clone(), nil
}

// UpdatePassword replaces the stored digest.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, digest string) error {
	return r.mutate(id, func(u *auth.User) { u.PasswordDigest = digest })
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.mutate(id, func(u *auth.User) { u.LastLogin = &at })
}

// SetActive flips the active flag. It has no database counterpart in the
// auth contracts and exists for tests and tooling.
func (r *UserRepository) SetActive(id ulid.ULID, active bool) error {
	return r.mutate(id, func(u *auth.User) { u.IsActive = active })
}

func (r *UserRepository) mutate(id ulid.ULID, fn func(*auth.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return oops.Code(auth.CodeUserNotFound).With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	next := u.Clone()
	fn(next)
	r.rows[id] = next
	return nil
}

// SessionRepository is an in-memory auth.SessionRepository keyed by token hash.
type SessionRepository struct {
	mu   sync.RWMutex
	rows map[string]auth.Session
	now  func() time.Time
}

// NewSessionRepository creates an empty repository. now defaults to time.Now.
func NewSessionRepository(now func() time.Time) *SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &SessionRepository{rows: make(map[string]auth.Session), now: now}
}

// Create stores s.
func (r *SessionRepository) Create(_ context.Context, s *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.TokenHash]; ok {
		return oops.Code("SESSION_CREATE_FAILED").Errorf("duplicate token hash")
	}
	r.rows[s.TokenHash] = *s
	return nil
}

// GetByTokenHash returns the session, expired or not.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[tokenHash]
	if !ok {
		return nil, oops.Code(auth.CodeSessionNotFound).Wrap(auth.ErrNotFound)
	}
	return &s, nil
}

// DeleteByTokenHash removes a session.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[tokenHash]; !ok {
		return oops.Code(auth.CodeSessionNotFound).Wrap(auth.ErrNotFound)
	}
	delete(r.rows, tokenHash)
	return nil
}

// DeleteByUser removes every session of userID except exceptTokenHash.
func (r *SessionRepository) DeleteByUser(_ context.Context, userID ulid.ULID, exceptTokenHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.rows {
		if s.UserID == userID && hash != exceptTokenHash {
			delete(r.rows, hash)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes sessions that are no longer valid.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.rows {
		if !s.ValidAt(now) {
			delete(r.rows, hash)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions are stored.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
