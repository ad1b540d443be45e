// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

//go:build integration

package integration

import (
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/paeltech/yee-sub000/internal/auth"
	authpg "github.com/paeltech/yee-sub000/internal/auth/postgres"
	"github.com/paeltech/yee-sub000/internal/group"
	grouppg "github.com/paeltech/yee-sub000/internal/group/postgres"
	"github.com/paeltech/yee-sub000/internal/idalloc"
	"github.com/paeltech/yee-sub000/internal/session"
)

var _ = Describe("Session manager over PostgreSQL", func() {
	var (
		users    *authpg.UserRepository
		sessions *authpg.SessionRepository
		groups   *group.Service
	)

	newManager := func(tokens session.TokenStore) *session.Manager {
		m, err := session.NewManager(session.Deps{
			Users:    users,
			Sessions: sessions,
			Hasher:   newHasher(),
			Tokens:   tokens,
		}, session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	BeforeEach(func() {
		truncate()
		users = authpg.NewUserRepository(env.pool)
		sessions = authpg.NewSessionRepository(env.pool)
		repo := grouppg.NewRepository(env.pool)
		groups = group.NewService(repo, idalloc.NewAllocator(repo))
		insertUser("admin@example.org", "adm1n", auth.RoleAdmin, nil)
	})

	It("signs in, restores and signs out", func() {
		tokens := session.NewMemoryTokenStore("")
		m := newManager(tokens)

		u, err := m.Login(env.ctx, "ADMIN@example.org", "adm1n")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Role).To(Equal(auth.RoleAdmin))

		stored, err := users.GetByID(env.ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LastLogin).NotTo(BeNil())

		token, err := tokens.Load(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(token).NotTo(BeEmpty())

		restored := newManager(session.NewMemoryTokenStore(token))
		Expect(restored.Bootstrap(env.ctx)).To(Succeed())
		Expect(restored.Current()).NotTo(BeNil())
		Expect(restored.Current().ID).To(Equal(u.ID))

		Expect(m.Logout(env.ctx)).To(Succeed())
		_, err = sessions.GetByTokenHash(env.ctx, auth.HashSessionToken(token))
		Expect(err).To(MatchError(auth.ErrNotFound))

		again := newManager(session.NewMemoryTokenStore(token))
		Expect(again.Bootstrap(env.ctx)).To(Succeed())
		Expect(again.Current()).To(BeNil())
		Expect(again.Loading()).To(BeFalse())
	})

	It("rejects a wrong password without revealing which part failed", func() {
		m := newManager(session.NewMemoryTokenStore(""))

		_, wrongPass := m.Login(env.ctx, "admin@example.org", "nope")
		_, unknown := m.Login(env.ctx, "ghost@example.org", "nope")

		Expect(codeOf(wrongPass)).To(Equal(auth.CodeInvalidCredentials))
		Expect(codeOf(unknown)).To(Equal(auth.CodeInvalidCredentials))
		Expect(m.Current()).To(BeNil())
	})

	It("lets an admin register a chairperson who then manages only their group", func() {
		mine, err := groups.Create(env.ctx, "Mine")
		Expect(err).NotTo(HaveOccurred())
		other, err := groups.Create(env.ctx, "Other")
		Expect(err).NotTo(HaveOccurred())

		admin := newManager(session.NewMemoryTokenStore(""))
		_, err = admin.Login(env.ctx, "admin@example.org", "adm1n")
		Expect(err).NotTo(HaveOccurred())

		_, err = admin.Register(env.ctx, auth.NewUserInput{
			Email: "chair@example.org", Password: "ch41r",
			FirstName: "Chair", LastName: "Person",
			Role: auth.RoleChairperson, GroupID: &mine.ID,
		})
		Expect(err).NotTo(HaveOccurred())

		chair := newManager(session.NewMemoryTokenStore(""))
		_, err = chair.Login(env.ctx, "chair@example.org", "ch41r")
		Expect(err).NotTo(HaveOccurred())
		Expect(chair.CanManageGroup(mine.ID)).To(BeTrue())
		Expect(chair.CanManageGroup(other.ID)).To(BeFalse())

		_, err = chair.Register(env.ctx, auth.NewUserInput{
			Email: "x@example.org", Password: "x",
			FirstName: "X", LastName: "Y", Role: auth.RoleAdmin,
		})
		Expect(codeOf(err)).To(Equal(auth.CodeForbidden))
	})

	It("revokes other sessions when the password changes", func() {
		first := newManager(session.NewMemoryTokenStore(""))
		_, err := first.Login(env.ctx, "admin@example.org", "adm1n")
		Expect(err).NotTo(HaveOccurred())

		secondTokens := session.NewMemoryTokenStore("")
		second := newManager(secondTokens)
		_, err = second.Login(env.ctx, "admin@example.org", "adm1n")
		Expect(err).NotTo(HaveOccurred())

		Expect(first.ChangePassword(env.ctx, "adm1n", "n3w-secret")).To(Succeed())

		token, err := secondTokens.Load(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		revived := newManager(session.NewMemoryTokenStore(token))
		Expect(revived.Bootstrap(env.ctx)).To(Succeed())
		Expect(revived.Current()).To(BeNil())

		fresh := newManager(session.NewMemoryTokenStore(""))
		_, err = fresh.Login(env.ctx, "admin@example.org", "n3w-secret")
		Expect(err).NotTo(HaveOccurred())
	})
})
