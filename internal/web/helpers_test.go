// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/auth/memory"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/internal/web"
)

const cookieName = "yee_test_session"

var cheapParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

type fakeGroups struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*group.Group
	codes   []string
	exhaust atomic.Bool
}

func (f *fakeGroups) add(name string) *group.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	g := &group.Group{ID: f.nextID, Name: name, Code: "AAAAA" + string(rune('0'+f.nextID))}
	f.rows[g.ID] = g
	return g
}

func (f *fakeGroups) Create(_ context.Context, name string) (*group.Group, error) {
	if f.exhaust.Load() {
		return nil, exhausted()
	}
	name, err := group.ValidateName(name)
	if err != nil {
		return nil, err
	}
	return f.add(name), nil
}

func (f *fakeGroups) RegenerateCode(_ context.Context, id int64) (*group.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.rows[id]
	if !ok {
		return nil, notFound(id)
	}
	next := *g
	next.Code = "ZZZZZ" + string(rune('0'+id))
	f.rows[id] = &next
	f.codes = append(f.codes, next.Code)
	return &next, nil
}

type recorder struct {
	mu        sync.Mutex
	logins    []string
	decisions []string
	requests  []string
}

func (r *recorder) LoginResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, result)
}

func (r *recorder) BootstrapOutcome(string) {}
func (r *recorder) LogoutRemote(string)     {}

func (r *recorder) GuardDecision(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, outcome)
}

func (r *recorder) RequestServed(route string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, route+" "+http.StatusText(status))
}

func (r *recorder) snapshot() (logins, decisions, requests []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logins...),
		append([]string(nil), r.decisions...),
		append([]string(nil), r.requests...)
}

type harness struct {
	ts       *httptest.Server
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	groups   *fakeGroups
	hasher   *auth.Argon2idHasher
	rec      *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(nil),
		groups:   &fakeGroups{rows: map[int64]*group.Group{}},
		hasher:   auth.NewArgon2idHasher(auth.WithParams(cheapParams)),
		rec:      &recorder{},
	}
	srv, err := web.NewServer("127.0.0.1:0", web.Deps{
		Users:    h.users,
		Sessions: h.sessions,
		Hasher:   h.hasher,
		Groups:   h.groups,
	},
		web.WithCookie(web.CookieConfig{Name: cookieName, TTL: time.Hour}),
		web.WithRecorder(h.rec),
	)
	require.NoError(t, err)
	h.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) seed(t *testing.T, email, password string, role auth.Role, groupID *int64) *auth.User {
	t.Helper()
	digest, err := h.hasher.Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser(auth.NewUserInput{
		Email: email, Password: password, FirstName: "Test", LastName: string(role),
		Role: role, GroupID: groupID,
	}, digest)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}

// client returns a cookie-keeping client that does not follow redirects.
func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Transport: h.ts.Client().Transport,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) login(t *testing.T, c *http.Client, email, password string) {
	t.Helper()
	resp, _ := h.do(t, c, http.MethodPost, "/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// do sends a JSON request and decodes a JSON object response, if any.
func (h *harness) do(t *testing.T, c *http.Client, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func ptr[T any](v T) *T { return &v }

func exhausted() error {
	return oops.Code(idalloc.CodeExhausted).
		With("attempts", idalloc.DefaultMaxAttempts).
		Public("Could not allocate a unique code. Please try again.").
		Errorf("no unique code after %d attempts", idalloc.DefaultMaxAttempts)
}

func notFound(id int64) error {
	return oops.Code(group.CodeNotFound).With("id", id).Wrap(group.ErrNotFound)
}

var (
	_ web.GroupService = (*fakeGroups)(nil)
	_ web.Recorder     = (*recorder)(nil)
)
