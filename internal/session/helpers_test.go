// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/auth/mocks"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	m        *Manager
	users    *mocks.MockUserRepository
	sessions *mocks.MockSessionRepository
	hasher   *mocks.MockPasswordHasher
	tokens   *MemoryTokenStore
	rec      *countingRecorder
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{
		users:    mocks.NewMockUserRepository(t),
		sessions: mocks.NewMockSessionRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		tokens:   NewMemoryTokenStore(token),
		rec:      newCountingRecorder(),
	}
	m, err := NewManager(Deps{
		Users:    h.users,
		Sessions: h.sessions,
		Hasher:   h.hasher,
		Tokens:   h.tokens,
	}, WithClock(func() time.Time { return testNow }), WithRecorder(h.rec))
	require.NoError(t, err)
	h.m = m
	return h
}

func newUser(role auth.Role, group *int64) *auth.User {
	return &auth.User{
		ID:             ulid.Make(),
		Email:          "a@b.com",
		FirstName:      "Asha",
		LastName:       "Mwita",
		Role:           role,
		GroupID:        group,
		IsActive:       true,
		PasswordDigest: "$argon2id$stored",
	}
}

func ptr(v int64) *int64 { return &v }

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (r *countingRecorder) add(k string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[k]++
}

func (r *countingRecorder) LoginResult(result string)       { r.add("login:" + result) }
func (r *countingRecorder) BootstrapOutcome(outcome string) { r.add("bootstrap:" + outcome) }
func (r *countingRecorder) LogoutRemote(result string)      { r.add("logout:" + result) }

func (r *countingRecorder) get(k string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

// brokenTokenStore fails the operations named in failOn.
type brokenTokenStore struct {
	MemoryTokenStore
	failOn map[string]bool
}

var errDisk = errors.New("disk unavailable")

func (s *brokenTokenStore) Load(ctx context.Context) (string, error) {
	if s.failOn["load"] {
		return "", errDisk
	}
	return s.MemoryTokenStore.Load(ctx)
}

func (s *brokenTokenStore) Save(ctx context.Context, token string) error {
	if s.failOn["save"] {
		return errDisk
	}
	return s.MemoryTokenStore.Save(ctx, token)
}

func (s *brokenTokenStore) Purge(ctx context.Context) error {
	if s.failOn["purge"] {
		return errDisk
	}
	return s.MemoryTokenStore.Purge(ctx)
}
