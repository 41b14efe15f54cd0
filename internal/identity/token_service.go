// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenService mints and redeems password reset and email verification tokens.
type TokenService struct {
	identities IdentityRepository
	tokens     TokenRepository
	tx         Transactor
	hasher     SecretHasher
	opts       options
}

// NewTokenService creates a new TokenService.
func NewTokenService(
	identities IdentityRepository,
	tokens TokenRepository,
	tx Transactor,
	hasher SecretHasher,
	opts ...Option,
) (*TokenService, error) {
	if identities == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token repository is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("secret hasher is required")
	}
	return &TokenService{
		identities: identities,
		tokens:     tokens,
		tx:         tx,
		hasher:     hasher,
		opts:       buildOptions(opts),
	}, nil
}

// IssueResetToken mints a password reset token for the account with the
// given email and hands it to the notifier. For an unknown or disabled
// account it returns an empty token and a nil error without writing
// anything, so callers cannot tell the two cases apart.
func (s *TokenService) IssueResetToken(ctx context.Context, email string) (_ string, err error) {
	ctx, done := observe(ctx, "issue_reset_token")
	defer done(&err)

	ident, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	if !ident.Active {
		return "", nil
	}
	return s.issue(ctx, ident, TokenPasswordReset, s.opts.resetTTL)
}

// IssueVerificationToken mints an email verification token for the identity.
// Fails with NOT_FOUND when the identity does not exist.
func (s *TokenService) IssueVerificationToken(ctx context.Context, identityID ulid.ULID) (_ string, err error) {
	ctx, done := observe(ctx, "issue_verification_token")
	defer done(&err)

	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeNotFound).
				With("identity_id", identityID.String()).
				Errorf("identity not found")
		}
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "get identity by id").
			Wrap(err)
	}
	return s.issue(ctx, ident, TokenEmailVerification, s.opts.verificationTTL)
}

// ValidateResetToken reports which identity a reset token belongs to without
// consuming it.
func (s *TokenService) ValidateResetToken(ctx context.Context, value string) (_ ulid.ULID, err error) {
	ctx, done := observe(ctx, "validate_reset_token")
	defer done(&err)

	if value == "" {
		return ulid.ULID{}, invalidOrExpiredToken()
	}
	tok, err := s.tokens.GetByValueHash(ctx, TokenPasswordReset, HashOpaque(value))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, invalidOrExpiredToken()
		}
		return ulid.ULID{}, oops.Code("TOKEN_VALIDATE_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	if !tok.RedeemableAt(s.opts.now()) {
		return ulid.ULID{}, invalidOrExpiredToken()
	}
	return tok.IdentityID, nil
}

// RedeemResetToken consumes a reset token and sets the owner's secret to
// newSecret in one transaction. Unknown, consumed and expired tokens all fail
// with INVALID_OR_EXPIRED_TOKEN; of two concurrent redeemers only one wins.
func (s *TokenService) RedeemResetToken(ctx context.Context, value, newSecret string) (err error) {
	ctx, done := observe(ctx, "redeem_reset_token")
	defer done(&err)

	if value == "" {
		return invalidOrExpiredToken()
	}
	// The email-similarity rule needs the owner and runs again below.
	if err := s.opts.policy.Check(newSecret, ""); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("TOKEN_REDEEM_FAILED").With("operation", "hash secret").Wrap(err)
	}

	var owner ulid.ULID
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		tok, err := s.consume(ctx, TokenPasswordReset, value)
		if err != nil {
			return err
		}
		ident, err := s.identities.GetByID(ctx, tok.IdentityID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidOrExpiredToken()
			}
			return oops.With("operation", "get token owner").Wrap(err)
		}
		// A rejected secret rolls the transaction back and leaves the token
		// redeemable.
		if err := s.opts.policy.Check(newSecret, ident.Email); err != nil {
			return err
		}
		owner = ident.ID
		return s.identities.UpdateSecret(ctx, ident.ID, digest)
	})
	if err != nil {
		if IsDomainError(err) {
			return err
		}
		return oops.Code("TOKEN_REDEEM_FAILED").
			With("kind", string(TokenPasswordReset)).
			Wrap(err)
	}

	s.opts.logger.InfoContext(ctx, "secret reset", "identity_id", owner.String())
	return nil
}

// RedeemVerificationToken consumes a verification token and marks the owner's
// email verified.
func (s *TokenService) RedeemVerificationToken(ctx context.Context, value string) (err error) {
	ctx, done := observe(ctx, "redeem_verification_token")
	defer done(&err)

	if value == "" {
		return invalidOrExpiredToken()
	}
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		tok, err := s.consume(ctx, TokenEmailVerification, value)
		if err != nil {
			return err
		}
		return s.identities.MarkVerified(ctx, tok.IdentityID)
	})
	if err != nil {
		if IsDomainError(err) {
			return err
		}
		return oops.Code("TOKEN_REDEEM_FAILED").
			With("kind", string(TokenEmailVerification)).
			Wrap(err)
	}
	return nil
}

// PurgeExpired deletes tokens that expired more than retain ago. Expired
// tokens are already unredeemable; this only reclaims storage.
func (s *TokenService) PurgeExpired(ctx context.Context, retain time.Duration) (_ int64, err error) {
	ctx, done := observe(ctx, "purge_expired_tokens")
	defer done(&err)

	n, err := s.tokens.DeleteExpired(ctx, s.opts.now().Add(-retain))
	if err != nil {
		return 0, oops.Code("TOKEN_PURGE_FAILED").Wrap(err)
	}
	if n > 0 {
		s.opts.logger.InfoContext(ctx, "purged expired tokens", "count", n)
	}
	return n, nil
}

func (s *TokenService) consume(ctx context.Context, kind TokenKind, value string) (*Token, error) {
	tok, err := s.tokens.Consume(ctx, kind, HashOpaque(value), s.opts.now())
	if errors.Is(err, ErrNotFound) {
		return nil, invalidOrExpiredToken()
	}
	return tok, err
}

func (s *TokenService) issue(ctx context.Context, ident *Identity, kind TokenKind, ttl time.Duration) (string, error) {
	value, hash, err := GenerateTokenValue()
	if err != nil {
		return "", err
	}
	tok, err := NewToken(ident.ID, kind, hash, s.opts.now(), ttl)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist token").
			With("identity_id", ident.ID.String()).
			With("kind", string(kind)).
			Wrap(err)
	}

	if s.opts.notifier != nil {
		n := Notification{
			IdentityID: ident.ID,
			Email:      ident.Email,
			Kind:       kind,
			Token:      value,
			ExpiresAt:  tok.ExpiresAt,
		}
		if err := s.opts.notifier.Notify(ctx, n); err != nil {
			s.opts.logger.WarnContext(ctx, "best-effort token notification failed",
				"operation", "notify",
				"identity_id", ident.ID.String(),
				"kind", string(kind),
				"error", err.Error())
		}
	}
	return value, nil
}
