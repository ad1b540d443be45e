// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package idalloc allocates short human-readable identifiers such as group
// join codes.
package idalloc

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Alphabet holds the symbols an identifier is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of symbols in an identifier.
const Length = 6

// DefaultMaxAttempts bounds AllocateUnique when the caller passes no budget.
const DefaultMaxAttempts = 10

// CodeExhausted is returned when every attempt produced a taken identifier.
const CodeExhausted = "ALLOC_EXHAUSTED"

// CodeRandomFailed is returned when the random source could not be read.
const CodeRandomFailed = "ALLOC_RANDOM_FAILED"

var alphabetSize = big.NewInt(int64(len(Alphabet)))

var errTaken = errors.New("identifier already taken")

// Generate returns a random identifier drawn from crypto/rand. Each symbol
// is chosen independently and uniformly.
func Generate() (string, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom is Generate reading randomness from r.
func GenerateFrom(r io.Reader) (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(r, alphabetSize)
		if err != nil {
			return "", oops.Code(CodeRandomFailed).Wrapf(err, "read random source")
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Checker reports whether an identifier is already used by a record other
// than excludeID.
type Checker interface {
	CodeExists(ctx context.Context, code string, excludeID *int64) (bool, error)
}

// Observer receives allocation metrics.
type Observer interface {
	AllocationAttempts(n int)
	AllocationExhausted()
}

type nopObserver struct{}

func (nopObserver) AllocationAttempts(int) {}
func (nopObserver) AllocationExhausted()   {}

// Option configures an Allocator.
type Option func(*Allocator)

// WithGenerator replaces Generate with a source that cannot fail.
func WithGenerator(gen func() string) Option {
	return func(a *Allocator) {
		a.generate = func() (string, error) { return gen(), nil }
	}
}

// WithRandom draws identifiers from r instead of crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) {
		a.generate = func() (string, error) { return GenerateFrom(r) }
	}
}

// WithRetryDelay waits d between attempts. Zero retries immediately.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Allocator) { a.delay = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver attaches metrics.
func WithObserver(o Observer) Option {
	return func(a *Allocator) {
		if o != nil {
			a.observer = o
		}
	}
}

// Allocator hands out identifiers not yet present in its Checker.
type Allocator struct {
	checker  Checker
	generate func() (string, error)
	delay    time.Duration
	logger   *slog.Logger
	observer Observer
}

// NewAllocator creates an Allocator backed by checker.
func NewAllocator(checker Checker, opts ...Option) *Allocator {
	a := &Allocator{
		checker:  checker,
		generate: Generate,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsUnique reports whether candidate is free. A failed lookup counts as taken.
func (a *Allocator) IsUnique(ctx context.Context, candidate string, excludeID *int64) bool {
	exists, err := a.checker.CodeExists(ctx, candidate, excludeID)
	if err != nil {
		a.logger.WarnContext(ctx, "identifier uniqueness check failed; treating as taken",
			"candidate", candidate, "error", err)
		return false
	}
	return !exists
}

// AllocateUnique generates candidates until one is unique, trying at most
// maxAttempts times (DefaultMaxAttempts when maxAttempts < 1). Attempts run
// one after another. It never returns a taken identifier. A failure of the
// random source ends allocation at once with CodeRandomFailed.
func (a *Allocator) AllocateUnique(ctx context.Context, excludeID *int64, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	delay := a.delay
	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	}))

	attempts := 0
	code, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (string, error) {
		attempts++
		candidate, err := a.generate()
		if err != nil {
			return "", err
		}
		if a.IsUnique(ctx, candidate, excludeID) {
			return candidate, nil
		}
		return "", retry.RetryableError(errTaken)
	})
	a.observer.AllocationAttempts(attempts)

	if err == nil {
		return code, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", oops.Code("ALLOC_CANCELLED").With("attempts", attempts).Wrap(ctxErr)
	}
	if !errors.Is(err, errTaken) {
		a.logger.ErrorContext(ctx, "identifier generation failed", "attempts", attempts, "error", err)
		return "", oops.Code(CodeRandomFailed).With("attempts", attempts).Wrap(err)
	}

	a.observer.AllocationExhausted()
	a.logger.ErrorContext(ctx, "identifier allocation exhausted", "attempts", attempts)
	return "", oops.Code(CodeExhausted).
		With("attempts", attempts).
		Public("Could not generate a unique code. Please try again.").
		Errorf("no unique identifier after %d attempts", attempts)
}
