// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

//go:build integration

package auth_test

import (
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

var _ = Describe("Registration", func() {
	It("creates exactly one identity and one student profile", func() {
		r := registerStudent("alice@x.com", "X")
		Expect(r.Status).To(Equal(http.StatusCreated))

		var identities, students, recruiters int
		Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM identities").Scan(&identities)).To(Succeed())
		Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM student_profiles").Scan(&students)).To(Succeed())
		Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM recruiter_profiles").Scan(&recruiters)).To(Succeed())
		Expect([]int{identities, students, recruiters}).To(Equal([]int{1, 1, 0}))
	})

	It("rejects the same email again under either role", func() {
		Expect(registerStudent("alice@x.com", "X").Status).To(Equal(http.StatusCreated))

		again := registerStudent("Alice@X.com", "Y")
		Expect(again.Status).To(Equal(http.StatusConflict))
		Expect(again.ErrorCode()).To(Equal(identity.CodeDuplicateEmail))

		recruiter := post("/register/recruiter", map[string]any{
			"email": "alice@x.com", "password": "Secret1!", "password_confirm": "Secret1!", "company_name": "Acme",
		})
		Expect(recruiter.ErrorCode()).To(Equal(identity.CodeDuplicateEmail))
	})
})

var _ = Describe("Login and profile", func() {
	BeforeEach(func() {
		Expect(registerStudent("alice@x.com", "X").Status).To(Equal(http.StatusCreated))
	})

	It("enforces the role and returns the student profile through the session", func() {
		wrongRole := login("alice@x.com", "Secret1!", "recruiter")
		Expect(wrongRole.Status).To(Equal(http.StatusForbidden))
		Expect(wrongRole.ErrorCode()).To(Equal(identity.CodeRoleMismatch))

		ok := login("alice@x.com", "Secret1!", "student")
		Expect(ok.Status).To(Equal(http.StatusOK))

		profile := call(http.MethodGet, "/profile", nil, handleOf(ok))
		Expect(profile.Status).To(Equal(http.StatusOK))
		Expect(profile.Body["user"]).To(HaveKeyWithValue("user_type", "student"))
		Expect(profile.Body["profile"]).To(HaveKeyWithValue("university", "X"))
	})

	It("gives a wrong password and an unknown email the same error", func() {
		wrong := login("alice@x.com", "Nope1234!", "student")
		unknown := login("nobody@x.com", "Secret1!", "student")

		Expect(wrong.Status).To(Equal(http.StatusBadRequest))
		Expect(wrong.ErrorCode()).To(Equal(identity.CodeInvalidCredentials))
		Expect(unknown.Status).To(Equal(wrong.Status))
		Expect(unknown.Body).To(Equal(wrong.Body))
	})

	It("ends the session on logout", func() {
		handle := handleOf(login("alice@x.com", "Secret1!", "student"))

		Expect(call(http.MethodPost, "/logout", nil, handle).Status).To(Equal(http.StatusOK))

		after := call(http.MethodGet, "/check-auth", nil, handle)
		Expect(after.Status).To(Equal(http.StatusUnauthorized))
		Expect(after.ErrorCode()).To(Equal(identity.CodeSessionInactive))

		again := call(http.MethodPost, "/logout", nil, handle)
		Expect(again.ErrorCode()).To(Equal(identity.CodeNoSuchSession))
	})
})

var _ = Describe("Password reset", func() {
	BeforeEach(func() {
		Expect(registerStudent("alice@x.com", "X").Status).To(Equal(http.StatusCreated))
	})

	issue := func(email string) response {
		GinkgoHelper()
		r := post("/password/reset/request", map[string]string{"email": email})
		Expect(r.Status).To(Equal(http.StatusOK))
		return r
	}
	redeem := func(token, secret string) response {
		return post("/password/reset/confirm", map[string]string{
			"token": token, "new_password": secret, "new_password_confirm": secret,
		})
	}
	tokenCount := func() int {
		GinkgoHelper()
		var n int
		Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM tokens").Scan(&n)).To(Succeed())
		return n
	}

	It("redeems a token exactly once", func() {
		token := issue("alice@x.com").Body["token"].(string)

		Expect(redeem(token, "Another2@").Status).To(Equal(http.StatusOK))
		Expect(login("alice@x.com", "Another2@", "student").Status).To(Equal(http.StatusOK))

		second := redeem(token, "Third3#x")
		Expect(second.Status).To(Equal(http.StatusBadRequest))
		Expect(second.ErrorCode()).To(Equal(identity.CodeInvalidOrExpiredToken))
		Expect(login("alice@x.com", "Another2@", "student").Status).To(Equal(http.StatusOK))
	})

	It("refuses a token after its expiry even if never used", func() {
		token := issue("alice@x.com").Body["token"].(string)
		env.clock.Advance(resetTTL + 1)

		r := redeem(token, "Another2@")
		Expect(r.ErrorCode()).To(Equal(identity.CodeInvalidOrExpiredToken))
		Expect(login("alice@x.com", "Secret1!", "student").Status).To(Equal(http.StatusOK))
	})

	It("answers an unknown email like a known one and stores nothing", func() {
		unknown := issue("ghost@x.com")
		Expect(unknown.Body).NotTo(HaveKey("token"))
		Expect(unknown.Body["message"]).To(Equal(issue("alice@x.com").Body["message"]))
		Expect(tokenCount()).To(Equal(1))
	})

	It("lets exactly one of two concurrent redemptions win", func() {
		token := issue("alice@x.com").Body["token"].(string)

		secrets := []string{"Winner1!a", "Winner2!b"}
		results := make([]response, len(secrets))
		var wg sync.WaitGroup
		for i, secret := range secrets {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				results[i] = redeem(token, secret)
			}()
		}
		wg.Wait()

		var winner string
		var losers int
		for i, r := range results {
			switch r.Status {
			case http.StatusOK:
				Expect(winner).To(BeEmpty(), "two redemptions succeeded")
				winner = secrets[i]
			default:
				Expect(r.ErrorCode()).To(Equal(identity.CodeInvalidOrExpiredToken))
				losers++
			}
		}
		Expect(winner).NotTo(BeEmpty())
		Expect(losers).To(Equal(1))

		Expect(login("alice@x.com", winner, "student").Status).To(Equal(http.StatusOK))
		for _, s := range secrets {
			if s != winner {
				Expect(login("alice@x.com", s, "student").ErrorCode()).To(Equal(identity.CodeInvalidCredentials))
			}
		}
	})
})

var _ = Describe("Email verification", func() {
	It("marks the identity verified once and rejects reuse", func() {
		Expect(registerStudent("alice@x.com", "X").Status).To(Equal(http.StatusCreated))
		handle := handleOf(login("alice@x.com", "Secret1!", "student"))

		issued := call(http.MethodPost, "/email/verify/request", nil, handle)
		Expect(issued.Status).To(Equal(http.StatusOK))
		token := issued.Body["token"].(string)
		Expect(env.notifier.Sent()).To(ContainElement(HaveField("Kind", identity.TokenEmailVerification)))

		Expect(post("/email/verify/confirm", map[string]string{"token": token}).Status).To(Equal(http.StatusOK))
		me := call(http.MethodGet, "/profile", nil, handle)
		Expect(me.Body["user"]).To(HaveKeyWithValue("is_verified", true))

		again := post("/email/verify/confirm", map[string]string{"token": token})
		Expect(again.ErrorCode()).To(Equal(identity.CodeInvalidOrExpiredToken))
	})
})
