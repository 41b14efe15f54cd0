// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package httpapi

import (
	"time"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// birthDateLayout is the accepted date_of_birth format.
const birthDateLayout = "2006-01-02"

type credentialsFields struct {
	// Username is sent by older clients and ignored; the email is the login key.
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

// studentFields mirrors identity.StudentProfileInput with a date-only date_of_birth.
type studentFields struct {
	StudentID   *string  `json:"student_id"`
	Institution *string  `json:"university"`
	Program     *string  `json:"course"`
	YearOfStudy *int     `json:"year_of_study"`
	Score       *float64 `json:"cgpa"`
	Phone       *string  `json:"phone_number"`
	BirthDate   *string  `json:"date_of_birth"`
	ResumeRef   *string  `json:"resume"`
	Skills      []string `json:"skills"`
	LinkedInURL *string  `json:"linkedin_url"`
	GitHubURL   *string  `json:"github_url"`
}

func (f *studentFields) input(fields identity.FieldErrors) *identity.StudentProfileInput {
	in := &identity.StudentProfileInput{
		StudentID:   f.StudentID,
		Institution: f.Institution,
		Program:     f.Program,
		YearOfStudy: f.YearOfStudy,
		Score:       f.Score,
		Phone:       f.Phone,
		ResumeRef:   f.ResumeRef,
		Skills:      f.Skills,
		LinkedInURL: f.LinkedInURL,
		GitHubURL:   f.GitHubURL,
	}
	if f.BirthDate != nil && *f.BirthDate != "" {
		d, err := time.Parse(birthDateLayout, *f.BirthDate)
		if err != nil {
			fields.Add("date_of_birth", "date of birth must be YYYY-MM-DD")
		} else {
			in.BirthDate = &d
		}
	}
	return in
}

type registerStudentRequest struct {
	credentialsFields
	studentFields
}

type registerRecruiterRequest struct {
	credentialsFields
	identity.RecruiterProfileInput
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// identityView is the public rendering of an Identity. The secret digest
// never leaves the service.
type identityView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"user_type"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Verified  bool      `json:"is_verified"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(ident *identity.Identity) identityView {
	return identityView{
		ID:        ident.ID.String(),
		Email:     ident.Email,
		Role:      string(ident.Role),
		FirstName: ident.FirstName,
		LastName:  ident.LastName,
		Verified:  ident.Verified,
		CreatedAt: ident.CreatedAt,
	}
}

type sessionView struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
}

type messageResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type identityResponse struct {
	Message string       `json:"message,omitempty"`
	User    identityView `json:"user"`
}

type loginResponse struct {
	Message string       `json:"message"`
	User    identityView `json:"user"`
	Profile any          `json:"profile"`
	Session sessionView  `json:"session"`
}

type profileResponse struct {
	Authenticated *bool        `json:"is_authenticated,omitempty"`
	User          identityView `json:"user"`
	Profile       any          `json:"profile"`
}

type profileUpdateResponse struct {
	Message string `json:"message"`
	Profile any    `json:"profile"`
}

// profileOrNil renders a missing profile as JSON null.
func profileOrNil(p identity.Profile) any {
	if p == nil {
		return nil
	}
	return p
}
