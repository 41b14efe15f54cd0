// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

const tokenColumns = `id, identity_id, kind, value_hash, created_at, expires_at, consumed`

// TokenRepository implements identity.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Create stores a new token.
func (r *TokenRepository) Create(ctx context.Context, token *identity.Token) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.ID.String(),
		token.IdentityID.String(),
		string(token.Kind),
		token.ValueHash,
		token.CreatedAt,
		token.ExpiresAt,
		token.Consumed,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("token_id", token.ID.String()).
			With("kind", string(token.Kind)).
			Wrap(err)
	}
	return nil
}

// GetByValueHash retrieves a token of the given kind by value hash.
func (r *TokenRepository) GetByValueHash(ctx context.Context, kind identity.TokenKind, valueHash string) (*identity.Token, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE value_hash = $1 AND kind = $2`, valueHash, string(kind))
	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("kind", string(kind)).Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by value hash").
			With("kind", string(kind)).
			Wrap(err)
	}
	return token, nil
}

// Consume flips consumed in a single conditional UPDATE, so concurrent
// redeemers race on the row lock and only the first sees a returned row.
func (r *TokenRepository) Consume(ctx context.Context, kind identity.TokenKind, valueHash string, now time.Time) (*identity.Token, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE tokens SET consumed = TRUE
		WHERE value_hash = $1 AND kind = $2 AND NOT consumed AND expires_at > $3
		RETURNING `+tokenColumns,
		valueHash, string(kind), now)
	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").With("kind", string(kind)).Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_CONSUME_FAILED").
			With("operation", "consume token").
			With("kind", string(kind)).
			Wrap(err)
	}
	return token, nil
}

// DeleteExpired removes tokens that expired before cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete expired tokens").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken reads one token row. pgx.ErrNoRows is returned unwrapped.
func scanToken(row pgx.Row) (*identity.Token, error) {
	var (
		idStr       string
		identityStr string
		kind        string
		tok         identity.Token
	)
	err := row.Scan(&idStr, &identityStr, &kind, &tok.ValueHash, &tok.CreatedAt, &tok.ExpiresAt, &tok.Consumed)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach codes
	}

	if tok.ID, err = parseID(idStr, "token_id"); err != nil {
		return nil, err
	}
	if tok.IdentityID, err = parseID(identityStr, "identity_id"); err != nil {
		return nil, err
	}
	tok.Kind = identity.TokenKind(kind)
	return &tok, nil
}

var _ identity.TokenRepository = (*TokenRepository)(nil)
