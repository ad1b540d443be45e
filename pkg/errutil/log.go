// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package errutil holds helpers shared by every package that speaks oops errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when it has none.
func Code(err error) string {
	if oe, ok := oops.AsOops(err); ok {
		if c := oe.Code(); c != nil {
			return fmt.Sprint(c)
		}
	}
	return ""
}

// LogError logs err at level with its code and oops context flattened into
// attributes. Plain errors are logged by message only.
func LogError(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs = append(attrs, "error", err.Error())
	if oe, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if fields := oe.Context(); len(fields) > 0 {
			attrs = append(attrs, "context", fields)
		}
	}
	logger.Log(ctx, level, msg, attrs...)
}
