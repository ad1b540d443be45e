// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32             // 64 hex chars
	SessionTTL        = 24 * time.Hour // lifetime of a freshly issued session
)

// Session proves that the holder of a token signed in as UserID.
// Only the SHA-256 of the token is stored.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a validated Session issued at issuedAt and living for ttl.
func NewSession(userID ulid.ULID, tokenHash string, issuedAt time.Time, ttl time.Duration) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code(CodeSessionInvalid).Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code(CodeSessionInvalid).Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code(CodeSessionInvalid).With("ttl", ttl.String()).Errorf("ttl must be positive")
	}
	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: issuedAt.Add(ttl),
		CreatedAt: issuedAt,
	}, nil
}

// ValidAt reports whether the session is unexpired at t.
// The comparison is strict: a session expiring exactly at t is no longer valid.
func (s *Session) ValidAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// GenerateSessionToken creates a random token and its hash.
// The plaintext goes to the client; the hash goes to the store.
func GenerateSessionToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hex digest of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository is the store contract for session records.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by token hash. Expired records are still returned.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes one session.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes every session of a user except the one with exceptTokenHash.
	// An empty exceptTokenHash removes them all.
	DeleteByUser(ctx context.Context, userID ulid.ULID, exceptTokenHash string) (int64, error)

	// DeleteExpired removes sessions whose expiry has passed and returns how many.
	DeleteExpired(ctx context.Context) (int64, error)
}
