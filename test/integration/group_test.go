// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

//go:build integration

package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/paeltech/yee-sub000/internal/group"
	grouppg "github.com/paeltech/yee-sub000/internal/group/postgres"
	"github.com/paeltech/yee-sub000/internal/idalloc"
)

const codePattern = `^[A-Z0-9]{6}$`

var _ = Describe("Groups", func() {
	var (
		repo *grouppg.Repository
		svc  *group.Service
	)

	BeforeEach(func() {
		truncate()
		repo = grouppg.NewRepository(env.pool)
		svc = group.NewService(repo, idalloc.NewAllocator(repo, idalloc.WithRetryDelay(time.Millisecond)))
	})

	It("creates a group with a fresh join code", func() {
		g, err := svc.Create(env.ctx, "  Riverside Youth ")
		Expect(err).NotTo(HaveOccurred())
		Expect(g.ID).To(BeNumerically(">", 0))
		Expect(g.Name).To(Equal("Riverside Youth"))
		Expect(g.Code).To(MatchRegexp(codePattern))

		got, err := repo.GetByID(env.ctx, g.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Code).To(Equal(g.Code))
	})

	It("gives every group a distinct code", func() {
		seen := map[string]bool{}
		for range 20 {
			g, err := svc.Create(env.ctx, "Group")
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).NotTo(HaveKey(g.Code))
			seen[g.Code] = true
		}
	})

	It("regenerates a code without counting the group's own", func() {
		g, err := svc.Create(env.ctx, "Riverside")
		Expect(err).NotTo(HaveOccurred())

		taken, err := repo.CodeExists(env.ctx, g.Code, &g.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(taken).To(BeFalse())

		taken, err = repo.CodeExists(env.ctx, g.Code, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(taken).To(BeTrue())

		updated, err := svc.RegenerateCode(env.ctx, g.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.ID).To(Equal(g.ID))
		Expect(updated.Code).To(MatchRegexp(codePattern))
		Expect(updated.UpdatedAt).NotTo(BeTemporally("<", g.UpdatedAt))
	})

	It("refuses a code held by another group", func() {
		a, err := svc.Create(env.ctx, "A")
		Expect(err).NotTo(HaveOccurred())
		b, err := svc.Create(env.ctx, "B")
		Expect(err).NotTo(HaveOccurred())

		_, err = repo.UpdateCode(env.ctx, b.ID, a.Code)
		Expect(codeOf(err)).To(Equal(group.CodeCodeTaken))
	})

	It("reports an unknown group", func() {
		_, err := svc.RegenerateCode(env.ctx, 4242)
		Expect(err).To(MatchError(group.ErrNotFound))
	})

	It("gives up when the allocator never finds a free code", func() {
		g, err := svc.Create(env.ctx, "Fixed")
		Expect(err).NotTo(HaveOccurred())

		stuck := group.NewService(repo,
			idalloc.NewAllocator(repo,
				idalloc.WithRetryDelay(time.Millisecond),
				idalloc.WithGenerator(func() string { return g.Code }),
			),
			group.WithMaxAttempts(3),
		)
		_, err = stuck.Create(env.ctx, "Second")
		Expect(codeOf(err)).To(Equal(idalloc.CodeExhausted))
	})
})
