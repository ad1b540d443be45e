// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package redis implements auth.SessionRepository on Redis.
//
// Each session lives under its own key with a TTL matching its expiry, so the
// store sweeps itself. A per-user set indexes token hashes for bulk revocation.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
)

const defaultPrefix = "yee"

type record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository stores sessions in Redis.
type SessionRepository struct {
	rdb    goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewSessionRepository creates a repository. An empty prefix uses "yee".
func NewSessionRepository(rdb goredis.Cmdable, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SessionRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *SessionRepository) key(tokenHash string) string {
	return r.prefix + ":session:" + tokenHash
}

func (r *SessionRepository) userKey(userID string) string {
	return r.prefix + ":user_sessions:" + userID
}

// Create stores a session whose key expires together with it.
func (r *SessionRepository) Create(ctx context.Context, s *auth.Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return oops.Code(auth.CodeSessionExpired).
			With("expires_at", s.ExpiresAt).
			Errorf("session already expired")
	}

	blob, err := json.Marshal(record{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "encode session").Wrap(err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.key(s.TokenHash), blob, ttl)
		pipe.SAdd(ctx, r.userKey(s.UserID.String()), s.TokenHash)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", s.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash loads a session. Sessions past their TTL are gone and report not found.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	blob, err := r.rdb.Get(ctx, r.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code(auth.CodeSessionNotFound).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session").Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("id", rec.ID).Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("user_id", rec.UserID).Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// DeleteByTokenHash removes a session and its index entry.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	s, err := r.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}

	var del *goredis.IntCmd
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, r.key(tokenHash))
		pipe.SRem(ctx, r.userKey(s.UserID.String()), tokenHash)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}
	if del.Val() == 0 {
		return oops.Code(auth.CodeSessionNotFound).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes every indexed session of userID except exceptTokenHash.
// Index entries whose keys already expired are pruned and not counted.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID, exceptTokenHash string) (int64, error) {
	userKey := r.userKey(userID.String())
	hashes, err := r.rdb.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "list user sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}

	var dels []*goredis.IntCmd
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, h := range hashes {
			if h == exceptTokenHash {
				continue
			}
			dels = append(dels, pipe.Del(ctx, r.key(h)))
			pipe.SRem(ctx, userKey, h)
		}
		return nil
	})
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete user sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}

	var n int64
	for _, d := range dels {
		n += d.Val()
	}
	return n, nil
}

// DeleteExpired is a no-op: Redis drops session keys when their TTL runs out.
func (r *SessionRepository) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
