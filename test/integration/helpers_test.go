// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

//go:build integration

package integration

import (
	"fmt"

	. "github.com/onsi/gomega" //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/paeltech/yee-sub000/internal/auth"
	authpg "github.com/paeltech/yee-sub000/internal/auth/postgres"
)

var cheapParams = auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func newHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasher(auth.WithParams(cheapParams))
}

// codeOf extracts the oops error code, or "" when err carries none.
func codeOf(err error) string {
	oe, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if c := oe.Code(); c != nil {
		return fmt.Sprint(c)
	}
	return ""
}

// insertUser stores a user directly through the repository.
func insertUser(email, password string, role auth.Role, groupID *int64) *auth.User {
	digest, err := newHasher().Hash(password)
	Expect(err).NotTo(HaveOccurred())

	u, err := auth.NewUser(auth.NewUserInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
		GroupID:   groupID,
	}, digest)
	Expect(err).NotTo(HaveOccurred())
	Expect(authpg.NewUserRepository(env.pool).Create(env.ctx, u)).To(Succeed())
	return u
}

func ptr[T any](v T) *T { return &v }
