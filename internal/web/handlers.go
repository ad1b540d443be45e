// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/internal/guard"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	GroupID   *int64     `json:"group_id,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		GroupID:   u.GroupID,
		LastLogin: u.LastLogin,
	}
}

type groupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func toGroupResponse(g *group.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, Code: g.Code}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// safeNext keeps a return-to target only when it is a local path.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return guard.LandingPath
	}
	if next == guard.LoginPath || strings.HasPrefix(next, guard.LoginPath+"?") {
		return guard.LandingPath
	}
	return next
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	u, err := managerFrom(r.Context()).Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User userResponse `json:"user"`
		Next string       `json:"next"`
	}{User: toUserResponse(u), Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := managerFrom(r.Context()).Logout(r.Context()); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	m := managerFrom(r.Context())
	u := m.Current()

	var links []string
	links = append(links, "/me")
	if m.HasRole(auth.RoleAdmin) {
		links = append(links, "/users", "/groups")
	}
	if u.GroupID != nil && m.CanManageGroup(*u.GroupID) {
		links = append(links, "/groups/"+strconv.FormatInt(*u.GroupID, 10)+"/code")
	}

	writeJSON(w, http.StatusOK, struct {
		Greeting string   `json:"greeting"`
		Role     string   `json:"role"`
		Links    []string `json:"links"`
	}{Greeting: "Welcome, " + u.FullName(), Role: string(u.Role), Links: links})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(managerFrom(r.Context()).Current()))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	u, err := managerFrom(r.Context()).UpdateProfile(r.Context(), auth.ProfileUpdate{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := managerFrom(r.Context()).ChangePassword(r.Context(), body.Current, body.New); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Role      string `json:"role"`
		GroupID   *int64 `json:"group_id"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	role, err := auth.ParseRole(body.Role)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	u, err := managerFrom(r.Context()).Register(r.Context(), auth.NewUserInput{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Role:      role,
		GroupID:   body.GroupID,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	g, err := s.deps.Groups.Create(r.Context(), body.Name)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(g))
}

func (s *Server) handleRegenerateCode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, s.logger, badRequest("group id %q is not valid", r.PathValue("id")))
		return
	}

	m := managerFrom(r.Context())
	if !m.CanManageGroup(id) {
		u := m.Current()
		writeError(w, r, s.logger, oops.Code(auth.CodeForbidden).
			With("user_id", u.ID.String()).
			With("group_id", id).
			Public("You do not have permission to do that.").
			Errorf("user cannot manage group %d", id))
		return
	}

	g, err := s.deps.Groups.RegenerateCode(r.Context(), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(g))
}
