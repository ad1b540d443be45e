// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

package group

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/pkg/errutil"
)

// Allocator hands out unique join codes.
type Allocator interface {
	AllocateUnique(ctx context.Context, excludeID *int64, maxAttempts int) (string, error)
}

// Service is the record-creation flow for groups.
type Service struct {
	repo        Repository
	alloc       Allocator
	maxAttempts int
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxAttempts sets the allocation budget per code.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) { s.maxAttempts = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(repo Repository, alloc Allocator, opts ...ServiceOption) *Service {
	s := &Service{
		repo:        repo,
		alloc:       alloc,
		maxAttempts: idalloc.DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates name, allocates a join code and stores the group. A code
// lost to a concurrent insert is re-allocated once.
func (s *Service) Create(ctx context.Context, name string) (*Group, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	for try := 0; ; try++ {
		code, err := s.alloc.AllocateUnique(ctx, nil, s.maxAttempts)
		if err != nil {
			return nil, err
		}

		g := &Group{Name: name, Code: code}
		err = s.repo.Create(ctx, g)
		if err == nil {
			s.logger.InfoContext(ctx, "group created", "group_id", g.ID, "code", g.Code)
			return g, nil
		}
		if errutil.Code(err) != CodeCodeTaken || try > 0 {
			return nil, storeFailure("create group", err)
		}
		s.logger.WarnContext(ctx, "join code taken between check and insert; retrying", "code", code)
	}
}

// RegenerateCode gives group id a fresh join code. The group's current code
// does not count as taken.
func (s *Service) RegenerateCode(ctx context.Context, id int64) (*Group, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, storeFailure("get group", err)
	}

	code, err := s.alloc.AllocateUnique(ctx, &id, s.maxAttempts)
	if err != nil {
		return nil, err
	}
	g, err := s.repo.UpdateCode(ctx, id, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, storeFailure("update group code", err)
	}
	s.logger.InfoContext(ctx, "group code regenerated", "group_id", id, "code", code)
	return g, nil
}

func storeFailure(op string, err error) error {
	return oops.Code(auth.CodeStoreFailure).
		With("operation", op).
		With("cause_code", errutil.Code(err)).
		Errorf("%s: %v", op, err)
}
