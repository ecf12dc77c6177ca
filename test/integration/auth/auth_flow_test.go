// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

//go:build integration

package auth_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/playergate/playergate/internal/auth"
)

func registerParams(email string) auth.RegisterParams {
	return auth.RegisterParams{
		Email:    email,
		Password: "password123",
		Nickname: "tester",
	}
}

func errCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

var _ = Describe("Authentication flow", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx)
	})

	Describe("register, login, resolve", func() {
		It("walks a fresh account through the full flow", func() {
			user, regToken, err := env.Service.Register(ctx, auth.RegisterParams{
				Email:    "alice@example.com",
				Password: "pw123secret",
				Nickname: "Alice",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Email).To(Equal("alice@example.com"))
			Expect(regToken).NotTo(BeEmpty())

			loginToken, err := env.Service.Login(ctx, "alice@example.com", "pw123secret")
			Expect(err).NotTo(HaveOccurred())

			profile, err := env.Service.ResolveProfile(ctx, loginToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.Email).To(Equal("alice@example.com"))
			Expect(profile.Nickname).To(Equal("Alice"))
			Expect(profile.Roles).To(Equal([]string{"player"}))
		})

		It("accepts the registration token for resolution directly", func() {
			_, token, err := env.Service.Register(ctx, registerParams("bob@example.com"))
			Expect(err).NotTo(HaveOccurred())

			profile, err := env.Service.ResolveProfile(ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.Email).To(Equal("bob@example.com"))
		})

		It("normalizes email case across register and login", func() {
			_, _, err := env.Service.Register(ctx, registerParams("Carol@Example.COM"))
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Service.Login(ctx, "carol@example.com", "password123")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("duplicate registration", func() {
		It("rejects the second registration and keeps exactly one record", func() {
			_, _, err := env.Service.Register(ctx, registerParams("dup@example.com"))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Service.Register(ctx, registerParams("dup@example.com"))
			Expect(errCode(err)).To(Equal(auth.CodeDuplicateEmail))

			var count int
			row := env.store.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE email = $1", "dup@example.com")
			Expect(row.Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})

		It("treats a case variant as the same email", func() {
			_, _, err := env.Service.Register(ctx, registerParams("dave@example.com"))
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Service.Register(ctx, registerParams("DAVE@example.com"))
			Expect(errCode(err)).To(Equal(auth.CodeDuplicateEmail))
		})
	})

	Describe("login failures", func() {
		It("gives the identical error for wrong password and unknown email", func() {
			_, _, err := env.Service.Register(ctx, registerParams("eve@example.com"))
			Expect(err).NotTo(HaveOccurred())

			_, wrongPwErr := env.Service.Login(ctx, "eve@example.com", "not-the-password")
			_, unknownErr := env.Service.Login(ctx, "nobody@example.com", "password123")

			Expect(errCode(wrongPwErr)).To(Equal(auth.CodeInvalidCredentials))
			Expect(errCode(unknownErr)).To(Equal(auth.CodeInvalidCredentials))
			Expect(wrongPwErr.Error()).To(Equal(unknownErr.Error()))
		})
	})

	Describe("token integrity", func() {
		It("rejects a tampered token", func() {
			_, token, err := env.Service.Register(ctx, registerParams("frank@example.com"))
			Expect(err).NotTo(HaveOccurred())

			tampered := []byte(token)
			tampered[len(tampered)/2] ^= 0x01
			_, err = env.Service.ResolveProfile(ctx, string(tampered))
			Expect(errCode(err)).To(Equal(auth.CodeInvalidToken))
		})

		It("fails with UserNotFound when the account vanished", func() {
			_, token, err := env.Service.Register(ctx, registerParams("ghost@example.com"))
			Expect(err).NotTo(HaveOccurred())

			_, err = env.store.Pool().Exec(ctx, "DELETE FROM users WHERE email = $1", "ghost@example.com")
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Service.ResolveProfile(ctx, token)
			Expect(errCode(err)).To(Equal(auth.CodeUserNotFound))
		})
	})

	Describe("legacy bcrypt accounts", func() {
		It("logs in against an imported bcrypt hash and upgrades it to argon2id", func() {
			legacyHash, err := bcrypt.GenerateFromPassword([]byte("imported-pw"), bcrypt.DefaultCost)
			Expect(err).NotTo(HaveOccurred())

			user, err := auth.NewUser("legacy@example.com", string(legacyHash), "oldtimer", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Users.Create(ctx, user)).To(Succeed())

			_, err = env.Service.Login(ctx, "legacy@example.com", "imported-pw")
			Expect(err).NotTo(HaveOccurred())

			upgraded, err := env.Users.GetByEmail(ctx, "legacy@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.HasPrefix(upgraded.PasswordHash, "$argon2id$")).To(BeTrue(),
				"stored hash should be re-encoded as argon2id after login")

			// The upgraded hash still authenticates.
			_, err = env.Service.Login(ctx, "legacy@example.com", "imported-pw")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
