// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// LoginInput carries the credentials and origin of a login attempt.
type LoginInput struct {
	Email        string
	Secret       string
	ExpectedRole Role
	Origin       Origin
}

// LoginResult is returned by a successful login. Handle is the plaintext
// session handle for the client; it is not stored anywhere.
type LoginResult struct {
	Session  *Session
	Handle   string
	Identity *Identity
	Profile  Profile
}

// AuthService authenticates identities and manages their sessions.
type AuthService struct {
	identities IdentityRepository
	profiles   ProfileRepository
	sessions   SessionRepository
	tx         Transactor
	hasher     SecretHasher
	opts       options
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	identities IdentityRepository,
	profiles ProfileRepository,
	sessions SessionRepository,
	tx Transactor,
	hasher SecretHasher,
	opts ...Option,
) (*AuthService, error) {
	if identities == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if profiles == nil {
		return nil, oops.Errorf("profile repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("secret hasher is required")
	}
	return &AuthService{
		identities: identities,
		profiles:   profiles,
		sessions:   sessions,
		tx:         tx,
		hasher:     hasher,
		opts:       buildOptions(opts),
	}, nil
}

// Login checks credentials and the expected role and opens a session.
// Unknown email, inactive identity and wrong secret all fail with
// INVALID_CREDENTIALS; the secret is verified even for unknown emails.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	ctx, done := observe(ctx, "login")
	defer done(&err)

	ident, lookupErr := s.identities.GetByEmail(ctx, NormalizeEmail(in.Email))
	exists := true
	target := dummySecretDigest
	switch {
	case errors.Is(lookupErr, ErrNotFound):
		exists = false
	case lookupErr != nil:
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "get identity by email").
			Wrap(lookupErr)
	default:
		target = ident.SecretDigest
	}

	valid, verifyErr := s.hasher.Verify(in.Secret, target)
	if verifyErr != nil {
		if !exists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "verify secret").
			With("identity_id", ident.ID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid || !ident.Active {
		return nil, invalidCredentials()
	}

	if ident.Role != in.ExpectedRole {
		return nil, oops.Code(CodeRoleMismatch).
			With("expected_role", string(in.ExpectedRole)).
			Errorf("account is not registered as a %s", in.ExpectedRole)
	}

	handle, hash, err := GenerateSessionHandle()
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "generate session handle").Wrap(err)
	}
	session, err := NewSession(ident.ID, hash, in.Origin, s.opts.now())
	if err != nil {
		return nil, oops.Code("LOGIN_FAILED").With("operation", "new session").Wrap(err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("LOGIN_FAILED").
			With("operation", "persist session").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}

	profile, err := LoadProfile(ctx, s.profiles, ident)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Session:  session,
		Handle:   handle,
		Identity: ident,
		Profile:  profile,
	}, nil
}

// Logout deactivates the session. An unknown or already inactive handle
// fails with NO_SUCH_SESSION.
func (s *AuthService) Logout(ctx context.Context, handle string) (err error) {
	ctx, done := observe(ctx, "logout")
	defer done(&err)

	if handle == "" {
		return noSuchSession()
	}
	if err := s.sessions.Deactivate(ctx, HashOpaque(handle)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return noSuchSession()
		}
		return oops.Code("LOGOUT_FAILED").With("operation", "deactivate session").Wrap(err)
	}
	return nil
}

// CurrentIdentity resolves the identity behind an active session handle,
// with its profile if one exists.
func (s *AuthService) CurrentIdentity(ctx context.Context, handle string) (_ *Identity, _ Profile, err error) {
	ctx, done := observe(ctx, "current_identity")
	defer done(&err)

	_, ident, err := s.authenticate(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	profile, err := LoadProfile(ctx, s.profiles, ident)
	if err != nil {
		return nil, nil, err
	}
	return ident, profile, nil
}

// ChangeSecret replaces the secret of the session's identity after checking
// the current one. Other sessions and outstanding tokens stay valid.
func (s *AuthService) ChangeSecret(ctx context.Context, handle, oldSecret, newSecret string) (err error) {
	ctx, done := observe(ctx, "change_secret")
	defer done(&err)

	_, ident, err := s.authenticate(ctx, handle)
	if err != nil {
		return err
	}
	if err := s.opts.policy.Check(newSecret, ident.Email); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("CHANGE_SECRET_FAILED").With("operation", "hash secret").Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.identities.GetByIDForUpdate(ctx, ident.ID)
		if err != nil {
			return err
		}
		ok, err := s.hasher.Verify(oldSecret, locked.SecretDigest)
		if err != nil {
			return err
		}
		if !ok {
			return invalidCredentials()
		}
		return s.identities.UpdateSecret(ctx, ident.ID, digest)
	})
	if err != nil {
		if IsDomainError(err) {
			return err
		}
		return oops.Code("CHANGE_SECRET_FAILED").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}
	return nil
}

// UpdateStudentProfile applies a partial update to the caller's student
// profile, creating it on first write. Recruiters get FORBIDDEN.
func (s *AuthService) UpdateStudentProfile(ctx context.Context, handle string, in StudentProfileInput) (_ *StudentProfile, err error) {
	ctx, done := observe(ctx, "update_student_profile")
	defer done(&err)

	_, ident, err := s.authenticate(ctx, handle)
	if err != nil {
		return nil, err
	}
	if ident.Role != RoleStudent {
		return nil, forbidden(RoleStudent)
	}
	fields := FieldErrors{}
	in.Validate(fields)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	var out *StudentProfile
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockOwner(ctx, ident.ID); err != nil {
			return err
		}
		now := s.opts.now()
		p, err := s.profiles.GetStudent(ctx, ident.ID)
		if errors.Is(err, ErrNotFound) {
			p = &StudentProfile{IdentityID: ident.ID, CreatedAt: now, UpdatedAt: now}
			in.ApplyTo(p)
			out = p
			return s.profiles.CreateStudent(ctx, p)
		}
		if err != nil {
			return err
		}
		in.ApplyTo(p)
		p.UpdatedAt = now
		out = p
		return s.profiles.UpdateStudent(ctx, p)
	})
	if err != nil {
		if IsDomainError(err) {
			return nil, err
		}
		return nil, oops.Code("PROFILE_UPDATE_FAILED").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}
	return out, nil
}

// UpdateRecruiterProfile applies a partial update to the caller's recruiter
// profile, creating it on first write. Students get FORBIDDEN.
func (s *AuthService) UpdateRecruiterProfile(ctx context.Context, handle string, in RecruiterProfileInput) (_ *RecruiterProfile, err error) {
	ctx, done := observe(ctx, "update_recruiter_profile")
	defer done(&err)

	_, ident, err := s.authenticate(ctx, handle)
	if err != nil {
		return nil, err
	}
	if ident.Role != RoleRecruiter {
		return nil, forbidden(RoleRecruiter)
	}
	fields := FieldErrors{}
	in.Validate(fields)
	if err := fields.Err(); err != nil {
		return nil, err
	}

	var out *RecruiterProfile
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.lockOwner(ctx, ident.ID); err != nil {
			return err
		}
		now := s.opts.now()
		p, err := s.profiles.GetRecruiter(ctx, ident.ID)
		if errors.Is(err, ErrNotFound) {
			if !in.HasCompanyName() {
				return oops.Code(CodeMissingRequiredField).
					With("fields", map[string]string{"company_name": "company name is required"}).
					Errorf("company name is required for recruiters")
			}
			p = &RecruiterProfile{IdentityID: ident.ID, CreatedAt: now, UpdatedAt: now}
			in.ApplyTo(p)
			out = p
			return s.profiles.CreateRecruiter(ctx, p)
		}
		if err != nil {
			return err
		}
		in.ApplyTo(p)
		p.UpdatedAt = now
		out = p
		return s.profiles.UpdateRecruiter(ctx, p)
	})
	if err != nil {
		if IsDomainError(err) {
			return nil, err
		}
		return nil, oops.Code("PROFILE_UPDATE_FAILED").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}
	return out, nil
}

// authenticate resolves an active session and its identity and refreshes the
// session's last-active time.
func (s *AuthService) authenticate(ctx context.Context, handle string) (*Session, *Identity, error) {
	if handle == "" {
		return nil, nil, noSuchSession()
	}

	session, err := s.sessions.GetByHandleHash(ctx, HashOpaque(handle))
	if errors.Is(err, ErrNotFound) {
		return nil, nil, noSuchSession()
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get session by handle hash").
			Wrap(err)
	}
	if !session.Active {
		return nil, nil, oops.Code(CodeSessionInactive).
			With("session_id", session.ID.String()).
			Errorf("session is no longer active")
	}

	ident, err := s.identities.GetByID(ctx, session.IdentityID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, noSuchSession()
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "get identity by id").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	if !ident.Active {
		return nil, nil, oops.Code(CodeSessionInactive).
			With("session_id", session.ID.String()).
			Errorf("account is disabled")
	}

	now := s.opts.now()
	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort session touch failed",
			"operation", "touch_session",
			"session_id", session.ID.String(),
			"error", err.Error())
	} else {
		session.LastActiveAt = now
	}
	return session, ident, nil
}

// lockOwner holds the owner's row lock for the rest of the transaction, so
// two first writes of a profile run one after the other and the second one
// updates the row the first created.
func (s *AuthService) lockOwner(ctx context.Context, id ulid.ULID) error {
	_, err := s.identities.GetByIDForUpdate(ctx, id)
	return err
}

func noSuchSession() error {
	return oops.Code(CodeNoSuchSession).Errorf("no such session")
}

func forbidden(required Role) error {
	return oops.Code(CodeForbidden).
		With("required_role", string(required)).
		Errorf("only %s accounts can access this resource", required)
}
