// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/postgres"
)

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE accounts RESTART IDENTITY`)
		Expect(err).NotTo(HaveOccurred())
	})

	create := func(email, username string) *auth.Account {
		account := auth.NewAccount(email, username, "hash", auth.Profile{FullName: "Test"})
		Expect(repo.Create(ctx, account)).To(Succeed())
		return account
	}

	Describe("Create", func() {
		It("assigns an id and timestamps", func() {
			account := create("a@x.com", "alice")
			Expect(account.ID).To(BeNumerically(">", 0))
			Expect(account.CreatedAt).NotTo(BeZero())

			stored, err := repo.GetByID(ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Email).To(Equal("a@x.com"))
			Expect(stored.Profile.FullName).To(Equal("Test"))
			Expect(stored.Status).To(Equal(auth.StatusActive))
			Expect(stored.Verified).To(BeFalse())
			Expect(stored.LastLoginAt).To(BeNil())
		})

		It("rejects a duplicate email regardless of case", func() {
			create("a@x.com", "alice")
			err := repo.Create(ctx, auth.NewAccount("A@X.COM", "bob", "hash", auth.Profile{}))
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})

		It("rejects a duplicate username regardless of case", func() {
			create("a@x.com", "alice")
			err := repo.Create(ctx, &auth.Account{Email: "b@x.com", Username: "ALICE", PasswordHash: "hash"})
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})
	})

	Describe("lookups", func() {
		It("matches email and username case-insensitively", func() {
			account := create("a@x.com", "alice")

			byEmail, err := repo.GetByEmail(ctx, "A@x.Com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(account.ID))

			byUsername, err := repo.GetByUsername(ctx, "ALICE")
			Expect(err).NotTo(HaveOccurred())
			Expect(byUsername.ID).To(Equal(account.ID))
		})

		It("reports absence as ErrNotFound", func() {
			_, err := repo.GetByID(ctx, 12345)
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = repo.GetByEmail(ctx, "nobody@x.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = repo.GetByUsername(ctx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("UpdateFields", func() {
		It("applies a partial update", func() {
			account := create("a@x.com", "alice")
			loginAt := time.Now().UTC().Truncate(time.Microsecond)
			status := auth.StatusDeactivated
			verified := true

			updated, err := repo.UpdateFields(ctx, account.ID, auth.AccountUpdate{
				LastLoginAt: &loginAt,
				Status:      &status,
				Verified:    &verified,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(auth.StatusDeactivated))
			Expect(updated.Verified).To(BeTrue())
			Expect(updated.LastLoginAt).NotTo(BeNil())
			Expect(updated.LastLoginAt.Equal(loginAt)).To(BeTrue())
			Expect(updated.Email).To(Equal("a@x.com"))
			Expect(updated.PasswordHash).To(Equal("hash"))
			Expect(updated.UpdatedAt).To(BeTemporally(">=", account.UpdatedAt))
		})

		It("rejects taking another account's email", func() {
			create("a@x.com", "alice")
			bob := create("b@x.com", "bob")

			email := "A@X.com"
			_, err := repo.UpdateFields(ctx, bob.ID, auth.AccountUpdate{Email: &email})
			Expect(err).To(MatchError(auth.ErrAlreadyExists))
		})

		It("reports a missing account as ErrNotFound", func() {
			hash := "new"
			_, err := repo.UpdateFields(ctx, 999, auth.AccountUpdate{PasswordHash: &hash})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
