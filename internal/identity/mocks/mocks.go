// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package mocks provides testify mocks of the identity interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// TestingT is satisfied by *testing.T.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(t TestingT, m *mock.Mock) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockIdentityRepository mocks identity.IdentityRepository.
type MockIdentityRepository struct{ mock.Mock }

// NewMockIdentityRepository creates a mock that asserts its expectations on cleanup.
func NewMockIdentityRepository(t TestingT) *MockIdentityRepository {
	m := &MockIdentityRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockIdentityRepository) Create(ctx context.Context, ident *identity.Identity) error {
	return m.Called(ctx, ident).Error(0)
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	args := m.Called(ctx, id)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

func (m *MockIdentityRepository) GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	args := m.Called(ctx, id)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	args := m.Called(ctx, email)
	ident, _ := args.Get(0).(*identity.Identity)
	return ident, args.Error(1)
}

func (m *MockIdentityRepository) UpdateSecret(ctx context.Context, id ulid.ULID, digest string) error {
	return m.Called(ctx, id, digest).Error(0)
}

func (m *MockIdentityRepository) MarkVerified(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockProfileRepository mocks identity.ProfileRepository.
type MockProfileRepository struct{ mock.Mock }

// NewMockProfileRepository creates a mock that asserts its expectations on cleanup.
func NewMockProfileRepository(t TestingT) *MockProfileRepository {
	m := &MockProfileRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockProfileRepository) GetStudent(ctx context.Context, id ulid.ULID) (*identity.StudentProfile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*identity.StudentProfile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) GetRecruiter(ctx context.Context, id ulid.ULID) (*identity.RecruiterProfile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*identity.RecruiterProfile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) CreateStudent(ctx context.Context, p *identity.StudentProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProfileRepository) CreateRecruiter(ctx context.Context, p *identity.RecruiterProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProfileRepository) UpdateStudent(ctx context.Context, p *identity.StudentProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProfileRepository) UpdateRecruiter(ctx context.Context, p *identity.RecruiterProfile) error {
	return m.Called(ctx, p).Error(0)
}

// MockSessionRepository mocks identity.SessionRepository.
type MockSessionRepository struct{ mock.Mock }

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t TestingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *identity.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetByHandleHash(ctx context.Context, hash string) (*identity.Session, error) {
	args := m.Called(ctx, hash)
	session, _ := args.Get(0).(*identity.Session)
	return session, args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSessionRepository) Deactivate(ctx context.Context, hash string) error {
	return m.Called(ctx, hash).Error(0)
}

// MockTokenRepository mocks identity.TokenRepository.
type MockTokenRepository struct{ mock.Mock }

// NewMockTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockTokenRepository(t TestingT) *MockTokenRepository {
	m := &MockTokenRepository{}
	register(t, &m.Mock)
	return m
}

func (m *MockTokenRepository) Create(ctx context.Context, tok *identity.Token) error {
	return m.Called(ctx, tok).Error(0)
}

func (m *MockTokenRepository) GetByValueHash(ctx context.Context, kind identity.TokenKind, hash string) (*identity.Token, error) {
	args := m.Called(ctx, kind, hash)
	tok, _ := args.Get(0).(*identity.Token)
	return tok, args.Error(1)
}

func (m *MockTokenRepository) Consume(ctx context.Context, kind identity.TokenKind, hash string, now time.Time) (*identity.Token, error) {
	args := m.Called(ctx, kind, hash, now)
	tok, _ := args.Get(0).(*identity.Token)
	return tok, args.Error(1)
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockSecretHasher mocks identity.SecretHasher.
type MockSecretHasher struct{ mock.Mock }

// NewMockSecretHasher creates a mock that asserts its expectations on cleanup.
func NewMockSecretHasher(t TestingT) *MockSecretHasher {
	m := &MockSecretHasher{}
	register(t, &m.Mock)
	return m
}

func (m *MockSecretHasher) Hash(secret string) (string, error) {
	args := m.Called(secret)
	return args.String(0), args.Error(1)
}

func (m *MockSecretHasher) Verify(secret, digest string) (bool, error) {
	args := m.Called(secret, digest)
	return args.Bool(0), args.Error(1)
}

// MockNotifier mocks identity.Notifier.
type MockNotifier struct{ mock.Mock }

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t TestingT) *MockNotifier {
	m := &MockNotifier{}
	register(t, &m.Mock)
	return m
}

func (m *MockNotifier) Notify(ctx context.Context, n identity.Notification) error {
	return m.Called(ctx, n).Error(0)
}

// PassthroughTransactor runs fn directly, without a real transaction.
type PassthroughTransactor struct{}

// InTransaction implements identity.Transactor.
func (PassthroughTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ identity.IdentityRepository = (*MockIdentityRepository)(nil)
	_ identity.ProfileRepository  = (*MockProfileRepository)(nil)
	_ identity.SessionRepository  = (*MockSessionRepository)(nil)
	_ identity.TokenRepository    = (*MockTokenRepository)(nil)
	_ identity.SecretHasher       = (*MockSecretHasher)(nil)
	_ identity.Notifier           = (*MockNotifier)(nil)
	_ identity.Transactor         = PassthroughTransactor{}
)
