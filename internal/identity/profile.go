// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Profile field bounds.
const (
	MinYearOfStudy = 1
	MaxYearOfStudy = 10
	MinScore       = 0.0
	MaxScore       = 10.0
	maxShortField  = 200
	maxPhoneLength = 15
	maxStudentID   = 20
)

// CompanySizes lists the accepted company-size buckets.
var CompanySizes = []string{"1-10", "11-50", "51-200", "201-500", "501-1000", "1000+"}

// Profile is the role-specific record owned by one identity. The concrete
// type is *StudentProfile or *RecruiterProfile and always matches the owner's
// role.
type Profile interface {
	Role() Role
	OwnerID() ulid.ULID
	profile()
}

// StudentProfile holds the descriptive data of a student account.
type StudentProfile struct {
	IdentityID  ulid.ULID  `json:"-"`
	StudentID   *string    `json:"student_id"`
	Institution string     `json:"university"`
	Program     string     `json:"course"`
	YearOfStudy *int       `json:"year_of_study"`
	Score       *float64   `json:"cgpa"`
	Phone       string     `json:"phone_number"`
	BirthDate   *time.Time `json:"date_of_birth"`
	ResumeRef   string     `json:"resume"`
	Skills      []string   `json:"skills"`
	LinkedInURL string     `json:"linkedin_url"`
	GitHubURL   string     `json:"github_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Role implements Profile.
func (*StudentProfile) Role() Role { return RoleStudent }

// OwnerID implements Profile.
func (p *StudentProfile) OwnerID() ulid.ULID { return p.IdentityID }

func (*StudentProfile) profile() {}

// RecruiterProfile holds the company data of a recruiter account. Verified is
// organizational vetting and is independent of Identity.Verified.
type RecruiterProfile struct {
	IdentityID         ulid.ULID `json:"-"`
	CompanyName        string    `json:"company_name"`
	CompanyWebsite     string    `json:"company_website"`
	CompanyDescription string    `json:"company_description"`
	Position           string    `json:"position"`
	Phone              string    `json:"phone_number"`
	Address            string    `json:"company_address"`
	Industry           string    `json:"industry"`
	CompanySize        string    `json:"company_size"`
	Verified           bool      `json:"verified"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Role implements Profile.
func (*RecruiterProfile) Role() Role { return RoleRecruiter }

// OwnerID implements Profile.
func (p *RecruiterProfile) OwnerID() ulid.ULID { return p.IdentityID }

func (*RecruiterProfile) profile() {}

// StudentProfileInput carries optional student fields. Nil means "not
// supplied"; on update those fields are left unchanged.
type StudentProfileInput struct {
	StudentID   *string    `json:"student_id"`
	Institution *string    `json:"university"`
	Program     *string    `json:"course"`
	YearOfStudy *int       `json:"year_of_study"`
	Score       *float64   `json:"cgpa"`
	Phone       *string    `json:"phone_number"`
	BirthDate   *time.Time `json:"date_of_birth"`
	ResumeRef   *string    `json:"resume"`
	Skills      []string   `json:"skills"`
	LinkedInURL *string    `json:"linkedin_url"`
	GitHubURL   *string    `json:"github_url"`
}

// Validate checks the supplied fields and reports every problem at once.
func (in *StudentProfileInput) Validate(fields FieldErrors) {
	if in.StudentID != nil && len(strings.TrimSpace(*in.StudentID)) > maxStudentID {
		fields.Add("student_id", "student id is too long")
	}
	checkLength(fields, "university", in.Institution, maxShortField)
	checkLength(fields, "course", in.Program, maxShortField)
	checkLength(fields, "phone_number", in.Phone, maxPhoneLength)
	if in.YearOfStudy != nil && (*in.YearOfStudy < MinYearOfStudy || *in.YearOfStudy > MaxYearOfStudy) {
		fields.Add("year_of_study", "year of study must be between 1 and 10")
	}
	if in.Score != nil && (*in.Score < MinScore || *in.Score > MaxScore) {
		fields.Add("cgpa", "cgpa must be between 0 and 10")
	}
	if in.BirthDate != nil && in.BirthDate.After(time.Now()) {
		fields.Add("date_of_birth", "birth date cannot be in the future")
	}
	checkURL(fields, "linkedin_url", in.LinkedInURL)
	checkURL(fields, "github_url", in.GitHubURL)
}

// ApplyTo copies every supplied field onto p. An empty student id clears it.
func (in *StudentProfileInput) ApplyTo(p *StudentProfile) {
	if in.StudentID != nil {
		p.StudentID = nil
		if id := strings.TrimSpace(*in.StudentID); id != "" {
			p.StudentID = &id
		}
	}
	setString(&p.Institution, in.Institution)
	setString(&p.Program, in.Program)
	if in.YearOfStudy != nil {
		v := *in.YearOfStudy
		p.YearOfStudy = &v
	}
	if in.Score != nil {
		v := *in.Score
		p.Score = &v
	}
	setString(&p.Phone, in.Phone)
	if in.BirthDate != nil {
		d := in.BirthDate.UTC().Truncate(24 * time.Hour)
		p.BirthDate = &d
	}
	setString(&p.ResumeRef, in.ResumeRef)
	if in.Skills != nil {
		p.Skills = NormalizeSkills(in.Skills)
	}
	setString(&p.LinkedInURL, in.LinkedInURL)
	setString(&p.GitHubURL, in.GitHubURL)
}

// RecruiterProfileInput carries optional recruiter fields.
type RecruiterProfileInput struct {
	CompanyName        *string `json:"company_name"`
	CompanyWebsite     *string `json:"company_website"`
	CompanyDescription *string `json:"company_description"`
	Position           *string `json:"position"`
	Phone              *string `json:"phone_number"`
	Address            *string `json:"company_address"`
	Industry           *string `json:"industry"`
	CompanySize        *string `json:"company_size"`
}

// Validate checks the supplied fields. Presence of the company name is
// checked by the callers that require it.
func (in *RecruiterProfileInput) Validate(fields FieldErrors) {
	if in.CompanyName != nil && strings.TrimSpace(*in.CompanyName) == "" {
		fields.Add("company_name", "company name cannot be blank")
	}
	checkLength(fields, "company_name", in.CompanyName, maxShortField)
	checkLength(fields, "position", in.Position, 100)
	checkLength(fields, "phone_number", in.Phone, maxPhoneLength)
	checkLength(fields, "industry", in.Industry, 100)
	checkURL(fields, "company_website", in.CompanyWebsite)
	if in.CompanySize != nil && *in.CompanySize != "" && !validCompanySize(*in.CompanySize) {
		fields.Add("company_size", "company size must be one of "+strings.Join(CompanySizes, ", "))
	}
}

// HasCompanyName reports whether a non-blank company name was supplied.
func (in *RecruiterProfileInput) HasCompanyName() bool {
	return in.CompanyName != nil && strings.TrimSpace(*in.CompanyName) != ""
}

// ApplyTo copies every supplied field onto p.
func (in *RecruiterProfileInput) ApplyTo(p *RecruiterProfile) {
	setString(&p.CompanyName, in.CompanyName)
	setString(&p.CompanyWebsite, in.CompanyWebsite)
	setString(&p.CompanyDescription, in.CompanyDescription)
	setString(&p.Position, in.Position)
	setString(&p.Phone, in.Phone)
	setString(&p.Address, in.Address)
	setString(&p.Industry, in.Industry)
	setString(&p.CompanySize, in.CompanySize)
}

// NormalizeSkills trims entries, drops blanks and duplicates, keeping order.
// Entries are stored comma separated, so embedded commas split an entry.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, raw := range skills {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if s == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// ProfileRepository persists both profile variants. Each identity owns at
// most one row across both variants; student ids are unique when present.
type ProfileRepository interface {
	// GetStudent retrieves the student profile owned by identityID.
	GetStudent(ctx context.Context, identityID ulid.ULID) (*StudentProfile, error)

	// GetRecruiter retrieves the recruiter profile owned by identityID.
	GetRecruiter(ctx context.Context, identityID ulid.ULID) (*RecruiterProfile, error)

	// CreateStudent stores a new student profile.
	CreateStudent(ctx context.Context, p *StudentProfile) error

	// CreateRecruiter stores a new recruiter profile.
	CreateRecruiter(ctx context.Context, p *RecruiterProfile) error

	// UpdateStudent overwrites an existing student profile.
	UpdateStudent(ctx context.Context, p *StudentProfile) error

	// UpdateRecruiter overwrites an existing recruiter profile.
	UpdateRecruiter(ctx context.Context, p *RecruiterProfile) error
}

// LoadProfile resolves the profile variant from the identity's role and
// returns (nil, nil) when the identity has no profile yet.
func LoadProfile(ctx context.Context, profiles ProfileRepository, ident *Identity) (Profile, error) {
	var (
		p   Profile
		err error
	)
	switch ident.Role {
	case RoleStudent:
		var sp *StudentProfile
		sp, err = profiles.GetStudent(ctx, ident.ID)
		p = sp
	case RoleRecruiter:
		var rp *RecruiterProfile
		rp, err = profiles.GetRecruiter(ctx, ident.ID)
		p = rp
	default:
		return nil, oops.Code("IDENTITY_INVALID_ROLE").
			With("identity_id", ident.ID.String()).
			With("role", string(ident.Role)).
			Errorf("identity has unknown role")
	}
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("PROFILE_LOAD_FAILED").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}
	return p, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func checkLength(fields FieldErrors, name string, v *string, maxLen int) {
	if v != nil && len([]rune(strings.TrimSpace(*v))) > maxLen {
		fields.Add(name, "value is too long")
	}
}

func checkURL(fields FieldErrors, name string, v *string) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return
	}
	u, err := url.Parse(strings.TrimSpace(*v))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fields.Add(name, "enter a valid http or https URL")
	}
}

func validCompanySize(s string) bool {
	for _, c := range CompanySizes {
		if s == c {
			return true
		}
	}
	return false
}
