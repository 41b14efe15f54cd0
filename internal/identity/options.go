// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn join that transaction. A non-nil error
// from fn rolls everything back.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notification is what the notification sender receives when a token is issued.
type Notification struct {
	IdentityID ulid.ULID
	Email      string
	Kind       TokenKind
	Token      string
	ExpiresAt  time.Time
}

// Notifier delivers token notifications out of band. Implementations must not
// block on delivery; a returned error only means the notification was not
// accepted and never fails the issuing operation.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Option configures a service.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	now             func() time.Time
	policy          SecretPolicy
	resetTTL        time.Duration
	verificationTTL time.Duration
	notifier        Notifier
}

func defaultOptions() options {
	return options{
		logger:          slog.Default(),
		now:             time.Now,
		policy:          DefaultSecretPolicy(),
		resetTTL:        DefaultResetTokenTTL,
		verificationTTL: DefaultVerificationTokenTTL,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSecretPolicy overrides the secret strength policy.
func WithSecretPolicy(p SecretPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithResetTokenTTL sets the lifetime of password reset tokens.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.resetTTL = ttl
		}
	}
}

// WithVerificationTokenTTL sets the lifetime of email verification tokens.
func WithVerificationTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.verificationTTL = ttl
		}
	}
}

// WithNotifier sets the notification sender for issued tokens.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}
