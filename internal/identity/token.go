// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenBytes is the entropy of a token value (64 hex chars).
const TokenBytes = 32

// Default token lifetimes.
const (
	DefaultResetTokenTTL        = time.Hour
	DefaultVerificationTokenTTL = 24 * time.Hour
)

// TokenKind says what redeeming a token authorizes.
type TokenKind string

// Token kinds.
const (
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailVerification TokenKind = "email_verification"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == TokenPasswordReset || k == TokenEmailVerification
}

// Token is a single-use, time-bounded credential in the ledger. Expiry is a
// read-time predicate; the only stored transition is Consumed.
type Token struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	Kind       TokenKind
	ValueHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Consumed   bool
}

// NewToken creates an unconsumed token expiring ttl after now.
func NewToken(identityID ulid.ULID, kind TokenKind, valueHash string, now time.Time, ttl time.Duration) (*Token, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if !kind.Valid() {
		return nil, oops.Code("TOKEN_INVALID_KIND").With("kind", string(kind)).Errorf("unknown token kind")
	}
	if valueHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_INVALID_TTL").With("ttl", ttl.String()).Errorf("token TTL must be positive")
	}
	return &Token{
		ID:         ulid.Make(),
		IdentityID: identityID,
		Kind:       kind,
		ValueHash:  valueHash,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// ExpiredAt reports whether the token is expired at the given instant.
func (tok *Token) ExpiredAt(at time.Time) bool {
	return !at.Before(tok.ExpiresAt)
}

// RedeemableAt reports whether the token can be redeemed at the given instant.
func (tok *Token) RedeemableAt(at time.Time) bool {
	return !tok.Consumed && !tok.ExpiredAt(at)
}

// GenerateTokenValue returns a random token value and the hash to store for it.
func GenerateTokenValue() (value, hash string, err error) {
	value, err = randomHex(TokenBytes)
	if err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	return value, HashOpaque(value), nil
}

// TokenRepository is the token ledger.
type TokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *Token) error

	// GetByValueHash retrieves a token of the given kind by value hash.
	GetByValueHash(ctx context.Context, kind TokenKind, valueHash string) (*Token, error)

	// Consume atomically flips consumed to true for a redeemable token and
	// returns it. Returns ErrNotFound when the token is unknown, already
	// consumed or expired at now. At most one concurrent caller succeeds.
	Consume(ctx context.Context, kind TokenKind, valueHash string, now time.Time) (*Token, error)

	// DeleteExpired removes tokens that expired before cutoff and returns the count.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
