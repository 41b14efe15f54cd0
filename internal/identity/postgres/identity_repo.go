// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

const identityColumns = `id, email, secret_digest, role, first_name, last_name, verified, active, created_at, updated_at`

// IdentityRepository implements identity.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool Pool
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity. A clash on the normalized email is reported
// as DUPLICATE_EMAIL.
func (r *IdentityRepository) Create(ctx context.Context, ident *identity.Identity) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO identities (id, email, secret_digest, role, first_name, last_name, verified, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		ident.ID.String(),
		ident.Email,
		ident.SecretDigest,
		string(ident.Role),
		ident.FirstName,
		ident.LastName,
		ident.Verified,
		ident.Active,
		ident.CreatedAt,
		ident.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) == "identities_email_key" {
			return oops.Code(identity.CodeDuplicateEmail).
				With("fields", map[string]string{"email": "an account with this email already exists"}).
				Errorf("email already registered")
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("identity_id", ident.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id.String())
	return r.get(row, "get identity by id", id.String())
}

// GetByIDForUpdate retrieves an identity and locks its row. Outside a
// transaction the lock is released immediately.
func (r *IdentityRepository) GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1 FOR UPDATE`, id.String())
	return r.get(row, "lock identity by id", id.String())
}

// GetByEmail retrieves an identity by its normalized email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, email)
	ident, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	return ident, nil
}

// UpdateSecret replaces the stored secret digest.
func (r *IdentityRepository) UpdateSecret(ctx context.Context, id ulid.ULID, digest string) error {
	return r.exec(ctx, "update secret digest", id,
		`UPDATE identities SET secret_digest = $2, updated_at = NOW() WHERE id = $1`, id.String(), digest)
}

// MarkVerified sets the verified flag.
func (r *IdentityRepository) MarkVerified(ctx context.Context, id ulid.ULID) error {
	return r.exec(ctx, "mark verified", id,
		`UPDATE identities SET verified = TRUE, updated_at = NOW() WHERE id = $1`, id.String())
}

func (r *IdentityRepository) exec(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	result, err := conn(ctx, r.pool).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", operation).
			With("identity_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("identity_id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

func (r *IdentityRepository) get(row pgx.Row, operation, id string) (*identity.Identity, error) {
	ident, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("identity_id", id).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", operation).
			With("identity_id", id).
			Wrap(err)
	}
	return ident, nil
}

// scan reads one identity row. pgx.ErrNoRows is returned unwrapped.
func (r *IdentityRepository) scan(row pgx.Row) (*identity.Identity, error) {
	var (
		idStr     string
		role      string
		ident     identity.Identity
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&idStr, &ident.Email, &ident.SecretDigest, &role, &ident.FirstName, &ident.LastName,
		&ident.Verified, &ident.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach codes
	}

	ident.ID, err = parseID(idStr, "identity_id")
	if err != nil {
		return nil, err
	}
	ident.Role = identity.Role(role)
	ident.CreatedAt = createdAt
	ident.UpdatedAt = updatedAt
	return &ident, nil
}

var _ identity.IdentityRepository = (*IdentityRepository)(nil)
