// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

//go:build integration

package store_test

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func insertIdentity(email, role string) string {
	id := ulid.Make().String()
	_, err := suitePool.Exec(suiteCtx,
		`INSERT INTO identities (id, email, secret_digest, role) VALUES ($1, $2, 'digest', $3)`,
		id, email, role)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		_, _ = suitePool.Exec(suiteCtx, `DELETE FROM identities WHERE id = $1`, id)
	})
	return id
}

var _ = Describe("Schema", func() {
	Describe("identities", func() {
		It("rejects an email differing only in case", func() {
			insertIdentity("case@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx,
				`INSERT INTO identities (id, email, secret_digest, role) VALUES ($1, 'CASE@example.edu', 'd', 'student')`,
				ulid.Make().String())
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("refuses to change role", func() {
			id := insertIdentity("fixed-role@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx, `UPDATE identities SET role = 'recruiter' WHERE id = $1`, id)
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})
	})

	Describe("profiles", func() {
		It("refuses a profile of the wrong variant", func() {
			id := insertIdentity("variant@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx,
				`INSERT INTO recruiter_profiles (identity_id, company_name) VALUES ($1, 'Acme')`, id)
			Expect(pgCode(err)).To(Equal(pgerrcode.ForeignKeyViolation))
		})

		It("allows at most one profile per identity", func() {
			id := insertIdentity("single@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx, `INSERT INTO student_profiles (identity_id) VALUES ($1)`, id)
			Expect(err).NotTo(HaveOccurred())
			_, err = suitePool.Exec(suiteCtx, `INSERT INTO student_profiles (identity_id) VALUES ($1)`, id)
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("keeps student ids unique but allows many without one", func() {
			a := insertIdentity("sid-a@example.edu", "student")
			b := insertIdentity("sid-b@example.edu", "student")
			c := insertIdentity("sid-c@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx, `INSERT INTO student_profiles (identity_id) VALUES ($1), ($2)`, a, b)
			Expect(err).NotTo(HaveOccurred())
			_, err = suitePool.Exec(suiteCtx, `UPDATE student_profiles SET student_id = 'S-1' WHERE identity_id = $1`, a)
			Expect(err).NotTo(HaveOccurred())

			_, err = suitePool.Exec(suiteCtx, `INSERT INTO student_profiles (identity_id, student_id) VALUES ($1, 'S-1')`, c)
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("cascades deletion from the identity", func() {
			id := insertIdentity("cascade@example.edu", "recruiter")
			_, err := suitePool.Exec(suiteCtx,
				`INSERT INTO recruiter_profiles (identity_id, company_name) VALUES ($1, 'Acme')`, id)
			Expect(err).NotTo(HaveOccurred())

			_, err = suitePool.Exec(suiteCtx, `DELETE FROM identities WHERE id = $1`, id)
			Expect(err).NotTo(HaveOccurred())

			var n int
			Expect(suitePool.QueryRow(suiteCtx,
				`SELECT count(*) FROM recruiter_profiles WHERE identity_id = $1`, id).Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})
	})

	Describe("tokens", func() {
		It("requires expiry after creation", func() {
			id := insertIdentity("tok@example.edu", "student")

			_, err := suitePool.Exec(suiteCtx, `
				INSERT INTO tokens (id, identity_id, kind, value_hash, created_at, expires_at)
				VALUES ($1, $2, 'password_reset', 'vh-expiry', NOW(), NOW() - INTERVAL '1 minute')
			`, ulid.Make().String(), id)
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})
	})
})
