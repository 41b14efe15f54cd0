// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// RegisterInput is everything needed to create an account.
// Only the profile input matching Role is read.
type RegisterInput struct {
	Role               Role
	Email              string
	Secret             string
	SecretConfirmation string
	FirstName          string
	LastName           string
	Student            *StudentProfileInput
	Recruiter          *RecruiterProfileInput
}

// RegistrationService creates identities together with their profile.
type RegistrationService struct {
	identities IdentityRepository
	profiles   ProfileRepository
	tx         Transactor
	hasher     SecretHasher
	opts       options
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(
	identities IdentityRepository,
	profiles ProfileRepository,
	tx Transactor,
	hasher SecretHasher,
	opts ...Option,
) (*RegistrationService, error) {
	if identities == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if profiles == nil {
		return nil, oops.Errorf("profile repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("secret hasher is required")
	}
	return &RegistrationService{
		identities: identities,
		profiles:   profiles,
		tx:         tx,
		hasher:     hasher,
		opts:       buildOptions(opts),
	}, nil
}

// Register validates in, then creates the identity and its matching profile
// in one transaction. Either both rows exist afterwards or neither does.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (_ *Identity, err error) {
	ctx, done := observe(ctx, "register")
	defer done(&err)

	if err := s.validate(&in); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").With("operation", "hash secret").Wrap(err)
	}

	ident, err := NewIdentity(in.Email, digest, in.Role)
	if err != nil {
		return nil, err
	}
	ident.FirstName = strings.TrimSpace(in.FirstName)
	ident.LastName = strings.TrimSpace(in.LastName)

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.Create(ctx, ident); err != nil {
			return err
		}
		return s.createProfile(ctx, ident, &in)
	})
	if err != nil {
		if IsDomainError(err) {
			return nil, err
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "create identity and profile").
			With("role", string(in.Role)).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "identity registered",
		"identity_id", ident.ID.String(),
		"role", string(ident.Role))
	return ident, nil
}

func (s *RegistrationService) validate(in *RegisterInput) error {
	if !in.Role.Valid() {
		return oops.Code(CodeValidation).
			With("fields", map[string]string{"role": "must be student or recruiter"}).
			Errorf("unknown role %q", in.Role)
	}

	fields := FieldErrors{}
	if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
		for k, v := range FieldsOf(err) {
			fields.Add(k, v)
		}
	}
	if in.SecretConfirmation != "" && in.SecretConfirmation != in.Secret {
		fields.Add("secret_confirmation", "secrets do not match")
	}
	switch in.Role {
	case RoleStudent:
		if in.Student != nil {
			in.Student.Validate(fields)
		}
	case RoleRecruiter:
		if in.Recruiter != nil {
			in.Recruiter.Validate(fields)
		}
	}
	if err := fields.Err(); err != nil {
		return err
	}

	if in.Role == RoleRecruiter && (in.Recruiter == nil || !in.Recruiter.HasCompanyName()) {
		return oops.Code(CodeMissingRequiredField).
			With("fields", map[string]string{"company_name": "company name is required"}).
			Errorf("company name is required for recruiters")
	}

	return s.opts.policy.Check(in.Secret, in.Email)
}

func (s *RegistrationService) createProfile(ctx context.Context, ident *Identity, in *RegisterInput) error {
	switch ident.Role {
	case RoleStudent:
		p := &StudentProfile{IdentityID: ident.ID, CreatedAt: ident.CreatedAt, UpdatedAt: ident.CreatedAt}
		if in.Student != nil {
			in.Student.ApplyTo(p)
		}
		return s.profiles.CreateStudent(ctx, p)
	case RoleRecruiter:
		p := &RecruiterProfile{IdentityID: ident.ID, CreatedAt: ident.CreatedAt, UpdatedAt: ident.CreatedAt}
		in.Recruiter.ApplyTo(p)
		return s.profiles.CreateRecruiter(ctx, p)
	}
	return oops.Code("IDENTITY_INVALID_ROLE").With("role", string(ident.Role)).Errorf("invalid role")
}
