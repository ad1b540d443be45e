// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/group"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

// CodeBadRequest marks a body or path parameter the server could not read.
const CodeBadRequest = "REQUEST_INVALID"

var statusByCode = map[string]int{
	CodeBadRequest:              http.StatusBadRequest,
	auth.CodeUserInvalid:        http.StatusBadRequest,
	"AUTH_EMPTY_PASSWORD":       http.StatusBadRequest,
	group.CodeInvalid:           http.StatusBadRequest,
	auth.CodeInvalidCredentials: http.StatusUnauthorized,
	auth.CodeNotAuthenticated:   http.StatusUnauthorized,
	auth.CodeForbidden:          http.StatusForbidden,
	group.CodeNotFound:          http.StatusNotFound,
	auth.CodeEmailTaken:         http.StatusConflict,
	idalloc.CodeExhausted:       http.StatusServiceUnavailable,
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

// writeError maps an oops code to a status. Unknown codes are 500s whose
// detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		if code == "" {
			code = auth.CodeStoreFailure
		}
	}

	msg := http.StatusText(status)
	if oe, isOops := oops.AsOops(err); isOops && oe.Public() != "" {
		msg = oe.Public()
	} else if status < http.StatusInternalServerError {
		msg = err.Error()
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	errutil.LogError(r.Context(), logger, level, "request failed", err,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status)

	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func badRequest(format string, args ...any) error {
	return oops.Code(CodeBadRequest).Errorf(format, args...)
}

// statusWriter remembers the status a handler wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // pass-through
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
