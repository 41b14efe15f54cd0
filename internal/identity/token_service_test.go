// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/identitytest"
	"github.com/sayedAmaan-6104/tpo-react/internal/identity/mocks"
	"github.com/sayedAmaan-6104/tpo-react/pkg/errutil"
)

type tokenFixture struct {
	*authFixture
	clock    *identitytest.Clock
	notifier *identitytest.RecordingNotifier
	tokens   *identity.TokenService
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	clock := identitytest.NewClock(testEpoch)
	notifier := &identitytest.RecordingNotifier{}
	opts := []identity.Option{identity.WithClock(clock.Now), identity.WithNotifier(notifier)}

	f := newAuthFixture(t, opts...)
	tokens, err := identity.NewTokenService(f.store.Identities(), f.store.Tokens(), f.store, identitytest.PlainHasher{}, opts...)
	require.NoError(t, err)
	return &tokenFixture{authFixture: f, clock: clock, notifier: notifier, tokens: tokens}
}

func TestNewTokenService_NilDependencies(t *testing.T) {
	store := identitytest.NewStore()
	hasher := identitytest.PlainHasher{}

	_, err := identity.NewTokenService(nil, store.Tokens(), store, hasher)
	assert.ErrorContains(t, err, "identity repository is required")
	_, err = identity.NewTokenService(store.Identities(), nil, store, hasher)
	assert.ErrorContains(t, err, "token repository is required")
	_, err = identity.NewTokenService(store.Identities(), store.Tokens(), nil, hasher)
	assert.ErrorContains(t, err, "transactor is required")
	_, err = identity.NewTokenService(store.Identities(), store.Tokens(), store, nil)
	assert.ErrorContains(t, err, "secret hasher is required")
}

func TestTokenService_IssueResetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("known email mints and notifies", func(t *testing.T) {
		f := newTokenFixture(t)
		ident := f.registerStudent(t, "alice@x.com")

		value, err := f.tokens.IssueResetToken(ctx, " Alice@X.com ")
		require.NoError(t, err)
		assert.Len(t, value, 64)
		assert.Equal(t, 1, f.store.CountTokens())

		sent := f.notifier.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, ident.ID, sent[0].IdentityID)
		assert.Equal(t, "alice@x.com", sent[0].Email)
		assert.Equal(t, identity.TokenPasswordReset, sent[0].Kind)
		assert.Equal(t, value, sent[0].Token)
		assert.Equal(t, testEpoch.Add(identity.DefaultResetTokenTTL), sent[0].ExpiresAt)
	})

	t.Run("unknown email is silent and writes nothing", func(t *testing.T) {
		f := newTokenFixture(t)

		value, err := f.tokens.IssueResetToken(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Empty(t, value)
		assert.Equal(t, 0, f.store.CountTokens())
		assert.Empty(t, f.notifier.Sent())
	})

	t.Run("issuing again keeps earlier tokens redeemable", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")

		first, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)
		second, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		require.NoError(t, f.tokens.RedeemResetToken(ctx, first, "Brand-New-9"))
		require.NoError(t, f.tokens.RedeemResetToken(ctx, second, "Brand-New-10"))
	})

	t.Run("notifier failure does not fail the issue", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")
		f.notifier.Err = errors.New("queue full")

		value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.NotEmpty(t, value)
		assert.Equal(t, 1, f.store.CountTokens())
	})
}

func TestTokenService_RedeemResetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("redeems exactly once", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")
		value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)

		require.NoError(t, f.tokens.RedeemResetToken(ctx, value, "Brand-New-9"))
		f.login(t, "alice@x.com", "Brand-New-9", identity.RoleStudent)

		err = f.tokens.RedeemResetToken(ctx, value, "Another-One-8")
		errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
		f.login(t, "alice@x.com", "Brand-New-9", identity.RoleStudent)
	})

	t.Run("expired token fails even if never used", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")
		value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)

		f.clock.Advance(identity.DefaultResetTokenTTL)
		err = f.tokens.RedeemResetToken(ctx, value, "Brand-New-9")
		errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
		f.login(t, "alice@x.com", "Secret1!", identity.RoleStudent)
	})

	t.Run("unknown and empty values", func(t *testing.T) {
		f := newTokenFixture(t)
		errutil.AssertErrorCode(t, f.tokens.RedeemResetToken(ctx, "deadbeef", "Brand-New-9"), identity.CodeInvalidOrExpiredToken)
		errutil.AssertErrorCode(t, f.tokens.RedeemResetToken(ctx, "", "Brand-New-9"), identity.CodeInvalidOrExpiredToken)
	})

	t.Run("weak secret is rejected before the token is consumed", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")
		value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)

		errutil.AssertErrorCode(t, f.tokens.RedeemResetToken(ctx, value, "short"), identity.CodeWeakSecret)
		require.NoError(t, f.tokens.RedeemResetToken(ctx, value, "Brand-New-9"))
	})

	t.Run("secret resembling the email is rejected and the token survives", func(t *testing.T) {
		f := newTokenFixture(t)
		f.registerStudent(t, "alice@x.com")
		value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
		require.NoError(t, err)

		errutil.AssertErrorCode(t, f.tokens.RedeemResetToken(ctx, value, "alice123!"), identity.CodeWeakSecret)
		f.login(t, "alice@x.com", "Secret1!", identity.RoleStudent)

		_, err = f.tokens.ValidateResetToken(ctx, value)
		require.NoError(t, err, "token is still redeemable")
		require.NoError(t, f.tokens.RedeemResetToken(ctx, value, "Brand-New-9"))
	})

	t.Run("verification token cannot reset a secret", func(t *testing.T) {
		f := newTokenFixture(t)
		ident := f.registerStudent(t, "alice@x.com")
		value, err := f.tokens.IssueVerificationToken(ctx, ident.ID)
		require.NoError(t, err)

		err = f.tokens.RedeemResetToken(ctx, value, "Brand-New-9")
		errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
	})
}

func TestTokenService_ConcurrentRedeemHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t)
	f.registerStudent(t, "alice@x.com")
	value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
	require.NoError(t, err)

	secrets := []string{"Racer-Secret-1", "Racer-Secret-2", "Racer-Secret-3", "Racer-Secret-4"}
	errs := make([]error, len(secrets))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, secret := range secrets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = f.tokens.RedeemResetToken(ctx, value, secret)
		}()
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one redeemer succeeded")
			winner = i
			continue
		}
		errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
	}
	require.NotEqual(t, -1, winner, "no redeemer succeeded")

	f.login(t, "alice@x.com", secrets[winner], identity.RoleStudent)
	for i, secret := range secrets {
		if i == winner {
			continue
		}
		_, err := f.auth.Login(ctx, identity.LoginInput{Email: "alice@x.com", Secret: secret, ExpectedRole: identity.RoleStudent})
		errutil.AssertErrorCode(t, err, identity.CodeInvalidCredentials)
	}
}

func TestTokenService_ValidateResetToken(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t)
	ident := f.registerStudent(t, "alice@x.com")
	value, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
	require.NoError(t, err)

	owner, err := f.tokens.ValidateResetToken(ctx, value)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, owner)

	// validating does not consume
	require.NoError(t, f.tokens.RedeemResetToken(ctx, value, "Brand-New-9"))

	_, err = f.tokens.ValidateResetToken(ctx, value)
	errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
	_, err = f.tokens.ValidateResetToken(ctx, "")
	errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
}

func TestTokenService_VerificationFlow(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t)
	ident := f.registerStudent(t, "alice@x.com")

	value, err := f.tokens.IssueVerificationToken(ctx, ident.ID)
	require.NoError(t, err)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, identity.TokenEmailVerification, sent[0].Kind)
	assert.Equal(t, testEpoch.Add(identity.DefaultVerificationTokenTTL), sent[0].ExpiresAt)

	require.NoError(t, f.tokens.RedeemVerificationToken(ctx, value))
	got, err := f.store.Identities().GetByID(ctx, ident.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	err = f.tokens.RedeemVerificationToken(ctx, value)
	errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)
}

func TestTokenService_VerificationExpiry(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t)
	ident := f.registerStudent(t, "alice@x.com")

	value, err := f.tokens.IssueVerificationToken(ctx, ident.ID)
	require.NoError(t, err)

	f.clock.Advance(identity.DefaultVerificationTokenTTL + time.Second)
	err = f.tokens.RedeemVerificationToken(ctx, value)
	errutil.AssertErrorCode(t, err, identity.CodeInvalidOrExpiredToken)

	got, err := f.store.Identities().GetByID(ctx, ident.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
}

func TestTokenService_IssueVerificationTokenUnknownIdentity(t *testing.T) {
	f := newTokenFixture(t)
	_, err := f.tokens.IssueVerificationToken(context.Background(), ulid.Make())
	errutil.AssertErrorCode(t, err, identity.CodeNotFound)
	assert.Equal(t, 0, f.store.CountTokens())
}

func TestTokenService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newTokenFixture(t)
	ident := f.registerStudent(t, "alice@x.com")

	_, err := f.tokens.IssueResetToken(ctx, "alice@x.com")
	require.NoError(t, err)
	_, err = f.tokens.IssueVerificationToken(ctx, ident.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	n, err := f.tokens.PurgeExpired(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.store.CountTokens())
}

func TestTokenService_RedeemStorageFailureRollsBack(t *testing.T) {
	identities := mocks.NewMockIdentityRepository(t)
	tokens := mocks.NewMockTokenRepository(t)
	svc, err := identity.NewTokenService(identities, tokens, mocks.PassthroughTransactor{}, identitytest.PlainHasher{})
	require.NoError(t, err)

	owner := ulid.Make()
	tokens.On("Consume", mock.Anything, identity.TokenPasswordReset, identity.HashOpaque("tok"), mock.AnythingOfType("time.Time")).
		Return(&identity.Token{IdentityID: owner, Kind: identity.TokenPasswordReset}, nil)
	identities.On("GetByID", mock.Anything, owner).
		Return(&identity.Identity{ID: owner, Email: "alice@x.com", Role: identity.RoleStudent}, nil)
	identities.On("UpdateSecret", mock.Anything, owner, "plain:Brand-New-9").Return(errors.New("deadlock detected"))

	err = svc.RedeemResetToken(context.Background(), "tok", "Brand-New-9")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOKEN_REDEEM_FAILED")
	assert.False(t, identity.IsDomainError(err))
}
