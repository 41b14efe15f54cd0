// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/mocks"
)

func ptr[T any](v T) *T { return &v }

func TestStudentProfileInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		in    identity.StudentProfileInput
		field string
	}{
		{"year too low", identity.StudentProfileInput{YearOfStudy: ptr(0)}, "year_of_study"},
		{"year too high", identity.StudentProfileInput{YearOfStudy: ptr(11)}, "year_of_study"},
		{"negative score", identity.StudentProfileInput{Score: ptr(-0.5)}, "cgpa"},
		{"score above ten", identity.StudentProfileInput{Score: ptr(10.01)}, "cgpa"},
		{"ftp url", identity.StudentProfileInput{LinkedInURL: ptr("ftp://linkedin.com/in/a")}, "linkedin_url"},
		{"relative url", identity.StudentProfileInput{GitHubURL: ptr("github.com/a")}, "github_url"},
		{"long phone", identity.StudentProfileInput{Phone: ptr("+91 98765 43210 99")}, "phone_number"},
		{"future birth date", identity.StudentProfileInput{BirthDate: ptr(time.Now().Add(48 * time.Hour))}, "date_of_birth"},
		{"long student id", identity.StudentProfileInput{StudentID: ptr("S-000000000000000000001")}, "student_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := identity.FieldErrors{}
			tt.in.Validate(fields)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestStudentProfileInput_ValidateAcceptsBounds(t *testing.T) {
	in := identity.StudentProfileInput{
		YearOfStudy: ptr(10),
		Score:       ptr(10.0),
		LinkedInURL: ptr("https://linkedin.com/in/alice"),
		GitHubURL:   ptr(""),
	}
	fields := identity.FieldErrors{}
	in.Validate(fields)
	assert.Empty(t, fields)
}

func TestStudentProfileInput_ApplyTo(t *testing.T) {
	p := &identity.StudentProfile{
		StudentID:   ptr("S1"),
		Institution: "Old U",
		Program:     "CSE",
	}

	in := identity.StudentProfileInput{
		StudentID:   ptr("  "),
		Institution: ptr("  X  "),
		Skills:      []string{"Go, SQL", "go", " ", "Docker"},
	}
	in.ApplyTo(p)

	assert.Nil(t, p.StudentID)
	assert.Equal(t, "X", p.Institution)
	assert.Equal(t, "CSE", p.Program, "fields not supplied are left alone")
	assert.Equal(t, []string{"Go", "SQL", "Docker"}, p.Skills)
}

func TestRecruiterProfileInput_Validate(t *testing.T) {
	fields := identity.FieldErrors{}
	in := identity.RecruiterProfileInput{
		CompanyName:    ptr("   "),
		CompanyWebsite: ptr("acme"),
		CompanySize:    ptr("2-5"),
	}
	in.Validate(fields)

	assert.Contains(t, fields, "company_name")
	assert.Contains(t, fields, "company_website")
	assert.Contains(t, fields, "company_size")
	assert.False(t, in.HasCompanyName())
}

func TestRecruiterProfileInput_ApplyTo(t *testing.T) {
	p := &identity.RecruiterProfile{CompanyName: "Acme", Position: "HR"}
	in := identity.RecruiterProfileInput{Position: ptr("Talent Lead"), CompanySize: ptr("51-200")}
	in.ApplyTo(p)

	assert.Equal(t, "Acme", p.CompanyName)
	assert.Equal(t, "Talent Lead", p.Position)
	assert.Equal(t, "51-200", p.CompanySize)
}

func TestLoadProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("student role reads only the student table", func(t *testing.T) {
		profiles := mocks.NewMockProfileRepository(t)
		ident := &identity.Identity{ID: ulid.Make(), Role: identity.RoleStudent}
		want := &identity.StudentProfile{IdentityID: ident.ID, Institution: "X"}
		profiles.On("GetStudent", ctx, ident.ID).Return(want, nil)

		p, err := identity.LoadProfile(ctx, profiles, ident)
		require.NoError(t, err)
		assert.Same(t, want, p)
		assert.Equal(t, identity.RoleStudent, p.Role())
		profiles.AssertNotCalled(t, "GetRecruiter", mock.Anything, mock.Anything)
	})

	t.Run("missing profile is nil without error", func(t *testing.T) {
		profiles := mocks.NewMockProfileRepository(t)
		ident := &identity.Identity{ID: ulid.Make(), Role: identity.RoleRecruiter}
		profiles.On("GetRecruiter", ctx, ident.ID).Return(nil, identity.ErrNotFound)

		p, err := identity.LoadProfile(ctx, profiles, ident)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("storage failure is wrapped", func(t *testing.T) {
		profiles := mocks.NewMockProfileRepository(t)
		ident := &identity.Identity{ID: ulid.Make(), Role: identity.RoleStudent}
		profiles.On("GetStudent", ctx, ident.ID).Return(nil, errors.New("connection refused"))

		p, err := identity.LoadProfile(ctx, profiles, ident)
		require.Error(t, err)
		assert.Nil(t, p)
		assert.False(t, identity.IsDomainError(err))
	})
}
