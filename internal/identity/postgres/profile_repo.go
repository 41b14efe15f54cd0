// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

const studentColumns = `identity_id, student_id, institution, program, year_of_study, score, phone,
	birth_date, resume_ref, skills, linkedin_url, github_url, created_at, updated_at`

const recruiterColumns = `identity_id, company_name, company_website, company_description, position,
	phone, address, industry, company_size, verified, created_at, updated_at`

// ProfileRepository implements identity.ProfileRepository using PostgreSQL.
// Skills are stored comma separated in a single text column.
type ProfileRepository struct {
	pool Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetStudent retrieves the student profile owned by identityID.
func (r *ProfileRepository) GetStudent(ctx context.Context, identityID ulid.ULID) (*identity.StudentProfile, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+studentColumns+` FROM student_profiles WHERE identity_id = $1`, identityID.String())

	var (
		ownerStr string
		skills   string
		p        identity.StudentProfile
	)
	err := row.Scan(&ownerStr, &p.StudentID, &p.Institution, &p.Program, &p.YearOfStudy, &p.Score, &p.Phone,
		&p.BirthDate, &p.ResumeRef, &skills, &p.LinkedInURL, &p.GitHubURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").
			With("identity_id", identityID.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get student profile").
			With("identity_id", identityID.String()).
			Wrap(err)
	}

	if p.IdentityID, err = parseID(ownerStr, "identity_id"); err != nil {
		return nil, err
	}
	p.Skills = splitSkills(skills)
	return &p, nil
}

// GetRecruiter retrieves the recruiter profile owned by identityID.
func (r *ProfileRepository) GetRecruiter(ctx context.Context, identityID ulid.ULID) (*identity.RecruiterProfile, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recruiterColumns+` FROM recruiter_profiles WHERE identity_id = $1`, identityID.String())

	var (
		ownerStr string
		p        identity.RecruiterProfile
	)
	err := row.Scan(&ownerStr, &p.CompanyName, &p.CompanyWebsite, &p.CompanyDescription, &p.Position,
		&p.Phone, &p.Address, &p.Industry, &p.CompanySize, &p.Verified, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").
			With("identity_id", identityID.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get recruiter profile").
			With("identity_id", identityID.String()).
			Wrap(err)
	}

	if p.IdentityID, err = parseID(ownerStr, "identity_id"); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateStudent stores a new student profile.
func (r *ProfileRepository) CreateStudent(ctx context.Context, p *identity.StudentProfile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO student_profiles (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		p.IdentityID.String(), p.StudentID, p.Institution, p.Program, p.YearOfStudy, p.Score, p.Phone,
		p.BirthDate, p.ResumeRef, joinSkills(p.Skills), p.LinkedInURL, p.GitHubURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return studentWriteError(err, "insert student profile", p.IdentityID)
	}
	return nil
}

// UpdateStudent overwrites an existing student profile.
func (r *ProfileRepository) UpdateStudent(ctx context.Context, p *identity.StudentProfile) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE student_profiles SET
			student_id = $2, institution = $3, program = $4, year_of_study = $5, score = $6, phone = $7,
			birth_date = $8, resume_ref = $9, skills = $10, linkedin_url = $11, github_url = $12, updated_at = $13
		WHERE identity_id = $1
	`,
		p.IdentityID.String(), p.StudentID, p.Institution, p.Program, p.YearOfStudy, p.Score, p.Phone,
		p.BirthDate, p.ResumeRef, joinSkills(p.Skills), p.LinkedInURL, p.GitHubURL, p.UpdatedAt,
	)
	if err != nil {
		return studentWriteError(err, "update student profile", p.IdentityID)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").
			With("identity_id", p.IdentityID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// CreateRecruiter stores a new recruiter profile.
func (r *ProfileRepository) CreateRecruiter(ctx context.Context, p *identity.RecruiterProfile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO recruiter_profiles (`+recruiterColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.IdentityID.String(), p.CompanyName, p.CompanyWebsite, p.CompanyDescription, p.Position,
		p.Phone, p.Address, p.Industry, p.CompanySize, p.Verified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_CREATE_FAILED").
			With("operation", "insert recruiter profile").
			With("identity_id", p.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// UpdateRecruiter overwrites an existing recruiter profile. The organizational
// verified flag is not writable through this path.
func (r *ProfileRepository) UpdateRecruiter(ctx context.Context, p *identity.RecruiterProfile) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE recruiter_profiles SET
			company_name = $2, company_website = $3, company_description = $4, position = $5,
			phone = $6, address = $7, industry = $8, company_size = $9, updated_at = $10
		WHERE identity_id = $1
	`,
		p.IdentityID.String(), p.CompanyName, p.CompanyWebsite, p.CompanyDescription, p.Position,
		p.Phone, p.Address, p.Industry, p.CompanySize, p.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "update recruiter profile").
			With("identity_id", p.IdentityID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").
			With("identity_id", p.IdentityID.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

func studentWriteError(err error, operation string, owner ulid.ULID) error {
	if uniqueViolation(err) == "student_profiles_student_id_key" {
		return oops.Code(identity.CodeValidation).
			With("fields", map[string]string{"student_id": "student id is already registered"}).
			Errorf("student id already registered")
	}
	return oops.Code("PROFILE_WRITE_FAILED").
		With("operation", operation).
		With("identity_id", owner.String()).
		Wrap(err)
}

func joinSkills(skills []string) string {
	return strings.Join(skills, ",")
}

func splitSkills(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return identity.NormalizeSkills([]string{s})
}

var _ identity.ProfileRepository = (*ProfileRepository)(nil)
