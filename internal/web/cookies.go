// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/paeltech/yee-sub000/internal/session"
)

// CookieConfig shapes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// DefaultCookieName is used when CookieConfig.Name is empty.
const DefaultCookieName = "yee_session"

// cookieTokenStore keeps the session token in a cookie. Reads see the
// request cookie until Save or Purge replaces it within the same request.
type cookieTokenStore struct {
	w   http.ResponseWriter
	cfg CookieConfig

	mu    sync.Mutex
	token string
}

func newCookieTokenStore(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *cookieTokenStore {
	s := &cookieTokenStore{w: w, cfg: cfg}
	if c, err := r.Cookie(cfg.Name); err == nil {
		s.token = c.Value
	}
	return s
}

func (s *cookieTokenStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *cookieTokenStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	http.SetCookie(s.w, s.cookie(token, int(s.cfg.TTL/time.Second)))
	return nil
}

func (s *cookieTokenStore) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	http.SetCookie(s.w, s.cookie("", -1))
	return nil
}

func (s *cookieTokenStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

var _ session.TokenStore = (*cookieTokenStore)(nil)
