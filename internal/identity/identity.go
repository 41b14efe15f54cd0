// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role selects which profile variant an identity owns.
type Role string

// Supported roles.
const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
)

// Valid reports whether r is a supported role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleRecruiter
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code(CodeValidation).
			With("fields", map[string]string{"role": "must be student or recruiter"}).
			Errorf("unknown role %q", s)
	}
	return r, nil
}

// MaxEmailLength is the longest email accepted.
const MaxEmailLength = 254

// emailRegex accepts local@domain.tld with no whitespace and one @.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Identity is the authentication root record for a user.
type Identity struct {
	ID           ulid.ULID
	Email        string
	SecretDigest string
	Role         Role
	FirstName    string
	LastName     string
	Verified     bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentity creates a validated, unverified, active Identity.
// email is normalized; digest must already be hashed.
func NewIdentity(email, digest string, role Role) (*Identity, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if digest == "" {
		return nil, oops.Code("IDENTITY_INVALID_DIGEST").Errorf("secret digest cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("IDENTITY_INVALID_ROLE").With("role", string(role)).Errorf("invalid role")
	}

	now := time.Now()
	return &Identity{
		ID:           ulid.Make(),
		Email:        email,
		SecretDigest: digest,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email so it can be used as a unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the shape of an already normalized email.
func ValidateEmail(email string) error {
	fields := FieldErrors{}
	switch {
	case email == "":
		fields.Add("email", "email is required")
	case len(email) > MaxEmailLength:
		fields.Add("email", "email is too long")
	case !emailRegex.MatchString(email):
		fields.Add("email", "enter a valid email address")
	}
	return fields.Err()
}

// IdentityRepository persists identities. Implementations must enforce email
// uniqueness and report a violation with CodeDuplicateEmail.
type IdentityRepository interface {
	// Create stores a new identity.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByIDForUpdate retrieves an identity and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by normalized email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdateSecret replaces the stored secret digest.
	UpdateSecret(ctx context.Context, id ulid.ULID, digest string) error

	// MarkVerified sets the verified flag.
	MarkVerified(ctx context.Context, id ulid.ULID) error
}
