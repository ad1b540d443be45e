// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

//go:build integration

package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/paeltech/yee-sub000/internal/auth"
	authpg "github.com/paeltech/yee-sub000/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var users *authpg.UserRepository

	BeforeEach(func() {
		truncate()
		users = authpg.NewUserRepository(env.pool)
	})

	It("round-trips a user", func() {
		u := insertUser("Ada@Example.org", "s3cret", auth.RoleAdmin, nil)

		got, err := users.GetByID(env.ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Email).To(Equal("ada@example.org"))
		Expect(got.Role).To(Equal(auth.RoleAdmin))
		Expect(got.GroupID).To(BeNil())
		Expect(got.IsActive).To(BeTrue())
		Expect(got.LastLogin).To(BeNil())
	})

	It("finds users by email regardless of case", func() {
		u := insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)

		got, err := users.GetByEmail(env.ctx, "ADA@example.ORG")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
	})

	It("rejects a second account with the same email", func() {
		insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)

		digest, err := newHasher().Hash("other")
		Expect(err).NotTo(HaveOccurred())
		dup, err := auth.NewUser(auth.NewUserInput{
			Email: "ada@example.org", Password: "other",
			FirstName: "Ada", LastName: "Two", Role: auth.RoleAdmin,
		}, digest)
		Expect(err).NotTo(HaveOccurred())

		err = users.Create(env.ctx, dup)
		Expect(codeOf(err)).To(Equal(auth.CodeEmailTaken))
	})

	It("reports a missing user", func() {
		_, err := users.GetByEmail(env.ctx, "nobody@example.org")
		Expect(err).To(MatchError(auth.ErrNotFound))
		Expect(codeOf(err)).To(Equal(auth.CodeUserNotFound))
	})

	It("updates only the profile fields that are set", func() {
		u := insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)

		got, err := users.UpdateProfile(env.ctx, u.ID, auth.ProfileUpdate{FirstName: ptr("  Augusta ")})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.FirstName).To(Equal("Augusta"))
		Expect(got.LastName).To(Equal("User"))
		Expect(got.Email).To(Equal("ada@example.org"))
	})

	It("refuses a profile email owned by someone else", func() {
		insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)
		grace := insertUser("grace@example.org", "s3cret", auth.RoleAdmin, nil)

		_, err := users.UpdateProfile(env.ctx, grace.ID, auth.ProfileUpdate{Email: ptr("ADA@example.org")})
		Expect(codeOf(err)).To(Equal(auth.CodeEmailTaken))
	})

	It("replaces the password digest", func() {
		u := insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)
		h := newHasher()
		digest, err := h.Hash("n3w")
		Expect(err).NotTo(HaveOccurred())

		Expect(users.UpdatePassword(env.ctx, u.ID, digest)).To(Succeed())

		got, err := users.GetByID(env.ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		ok, err := h.Verify("n3w", got.PasswordDigest)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("records the last login", func() {
		u := insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)
		at := time.Now().UTC().Truncate(time.Microsecond)

		Expect(users.TouchLastLogin(env.ctx, u.ID, at)).To(Succeed())

		got, err := users.GetByID(env.ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.LastLogin).NotTo(BeNil())
		Expect(got.LastLogin.Equal(at)).To(BeTrue())
	})
})

var _ = Describe("SessionRepository", func() {
	var (
		sessions *authpg.SessionRepository
		user     *auth.User
	)

	BeforeEach(func() {
		truncate()
		sessions = authpg.NewSessionRepository(env.pool)
		user = insertUser("ada@example.org", "s3cret", auth.RoleAdmin, nil)
	})

	issue := func(issuedAt time.Time, ttl time.Duration) (string, *auth.Session) {
		_, hash, err := auth.GenerateSessionToken()
		Expect(err).NotTo(HaveOccurred())
		s, err := auth.NewSession(user.ID, hash, issuedAt, ttl)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions.Create(env.ctx, s)).To(Succeed())
		return hash, s
	}

	It("looks sessions up by token hash", func() {
		hash, s := issue(time.Now(), time.Hour)

		got, err := sessions.GetByTokenHash(env.ctx, hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(s.ID))
		Expect(got.UserID).To(Equal(user.ID))
		Expect(got.ValidAt(time.Now())).To(BeTrue())
	})

	It("returns expired sessions for the caller to judge", func() {
		hash, _ := issue(time.Now().Add(-2*time.Hour), time.Hour)

		got, err := sessions.GetByTokenHash(env.ctx, hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ValidAt(time.Now())).To(BeFalse())
	})

	It("deletes a session once", func() {
		hash, _ := issue(time.Now(), time.Hour)

		Expect(sessions.DeleteByTokenHash(env.ctx, hash)).To(Succeed())
		err := sessions.DeleteByTokenHash(env.ctx, hash)
		Expect(codeOf(err)).To(Equal(auth.CodeSessionNotFound))
	})

	It("revokes every other session of a user", func() {
		keep, _ := issue(time.Now(), time.Hour)
		issue(time.Now(), time.Hour)
		issue(time.Now(), time.Hour)

		n, err := sessions.DeleteByUser(env.ctx, user.ID, keep)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeEquivalentTo(2))

		_, err = sessions.GetByTokenHash(env.ctx, keep)
		Expect(err).NotTo(HaveOccurred())
	})

	It("sweeps only expired sessions", func() {
		live, _ := issue(time.Now(), time.Hour)
		issue(time.Now().Add(-2*time.Hour), time.Hour)

		n, err := sessions.DeleteExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeEquivalentTo(1))

		_, err = sessions.GetByTokenHash(env.ctx, live)
		Expect(err).NotTo(HaveOccurred())
	})

	It("drops sessions with their user", func() {
		hash, _ := issue(time.Now(), time.Hour)

		_, err := env.pool.Exec(env.ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
		Expect(err).NotTo(HaveOccurred())

		_, err = sessions.GetByTokenHash(env.ctx, hash)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
