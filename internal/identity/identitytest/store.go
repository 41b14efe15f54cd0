// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package identitytest provides in-memory implementations of the identity
// repositories for tests.
package identitytest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
)

// Store keeps identities, profiles, sessions and tokens in memory. It
// implements every identity repository plus Transactor. Transactions are
// serialized and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	identities map[ulid.ULID]identity.Identity
	students   map[ulid.ULID]identity.StudentProfile
	recruiters map[ulid.ULID]identity.RecruiterProfile
	sessions   map[ulid.ULID]identity.Session
	tokens     map[ulid.ULID]identity.Token
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		identities: make(map[ulid.ULID]identity.Identity),
		students:   make(map[ulid.ULID]identity.StudentProfile),
		recruiters: make(map[ulid.ULID]identity.RecruiterProfile),
		sessions:   make(map[ulid.ULID]identity.Session),
		tokens:     make(map[ulid.ULID]identity.Token),
	}
}

// InTransaction implements identity.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.identities = snap.identities
		s.students = snap.students
		s.recruiters = snap.recruiters
		s.sessions = snap.sessions
		s.tokens = snap.tokens
		s.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	identities map[ulid.ULID]identity.Identity
	students   map[ulid.ULID]identity.StudentProfile
	recruiters map[ulid.ULID]identity.RecruiterProfile
	sessions   map[ulid.ULID]identity.Session
	tokens     map[ulid.ULID]identity.Token
}

func (s *Store) snapshot() state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state{
		identities: copyMap(s.identities),
		students:   copyMap(s.students),
		recruiters: copyMap(s.recruiters),
		sessions:   copyMap(s.sessions),
		tokens:     copyMap(s.tokens),
	}
}

func copyMap[V any](m map[ulid.ULID]V) map[ulid.ULID]V {
	out := make(map[ulid.ULID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Identities returns the identity repository view of the store.
func (s *Store) Identities() identity.IdentityRepository { return identityRepo{s} }

// Profiles returns the profile repository view of the store.
func (s *Store) Profiles() identity.ProfileRepository { return profileRepo{s} }

// Sessions returns the session repository view of the store.
func (s *Store) Sessions() identity.SessionRepository { return sessionRepo{s} }

// Tokens returns the token repository view of the store.
func (s *Store) Tokens() identity.TokenRepository { return tokenRepo{s} }

// CountIdentities returns the number of stored identities.
func (s *Store) CountIdentities() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

// CountProfiles returns the number of student and recruiter profiles owned by id.
func (s *Store) CountProfiles(id ulid.ULID) (students, recruiters int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; ok {
		students++
	}
	if _, ok := s.recruiters[id]; ok {
		recruiters++
	}
	return students, recruiters
}

// CountTokens returns the number of ledger entries.
func (s *Store) CountTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

type identityRepo struct{ s *Store }

func (r identityRepo) Create(_ context.Context, ident *identity.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.identities {
		if existing.Email == ident.Email {
			return oops.Code(identity.CodeDuplicateEmail).
				With("fields", map[string]string{"email": "an account with this email already exists"}).
				Errorf("email already registered")
		}
	}
	r.s.identities[ident.ID] = *ident
	return nil
}

func (r identityRepo) GetByID(_ context.Context, id ulid.ULID) (*identity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ident, ok := r.s.identities[id]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	return &ident, nil
}

func (r identityRepo) GetByIDForUpdate(ctx context.Context, id ulid.ULID) (*identity.Identity, error) {
	return r.GetByID(ctx, id)
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*identity.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ident := range r.s.identities {
		if ident.Email == email {
			return &ident, nil
		}
	}
	return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(identity.ErrNotFound)
}

func (r identityRepo) UpdateSecret(_ context.Context, id ulid.ULID, digest string) error {
	return r.update(id, func(ident *identity.Identity) { ident.SecretDigest = digest })
}

func (r identityRepo) MarkVerified(_ context.Context, id ulid.ULID) error {
	return r.update(id, func(ident *identity.Identity) { ident.Verified = true })
}

func (r identityRepo) update(id ulid.ULID, fn func(*identity.Identity)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ident, ok := r.s.identities[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	fn(&ident)
	ident.UpdatedAt = time.Now()
	r.s.identities[id] = ident
	return nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) GetStudent(_ context.Context, id ulid.ULID) (*identity.StudentProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.students[id]
	if !ok {
		return nil, oops.Code("PROFILE_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	return &p, nil
}

func (r profileRepo) GetRecruiter(_ context.Context, id ulid.ULID) (*identity.RecruiterProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.recruiters[id]
	if !ok {
		return nil, oops.Code("PROFILE_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	return &p, nil
}

func (r profileRepo) CreateStudent(_ context.Context, p *identity.StudentProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkOwner(p.IdentityID); err != nil {
		return err
	}
	if err := r.checkStudentID(p); err != nil {
		return err
	}
	r.s.students[p.IdentityID] = *p
	return nil
}

func (r profileRepo) CreateRecruiter(_ context.Context, p *identity.RecruiterProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkOwner(p.IdentityID); err != nil {
		return err
	}
	r.s.recruiters[p.IdentityID] = *p
	return nil
}

func (r profileRepo) UpdateStudent(_ context.Context, p *identity.StudentProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.students[p.IdentityID]; !ok {
		return oops.Code("PROFILE_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err := r.checkStudentID(p); err != nil {
		return err
	}
	r.s.students[p.IdentityID] = *p
	return nil
}

func (r profileRepo) UpdateRecruiter(_ context.Context, p *identity.RecruiterProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.recruiters[p.IdentityID]; !ok {
		return oops.Code("PROFILE_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	r.s.recruiters[p.IdentityID] = *p
	return nil
}

func (r profileRepo) checkOwner(id ulid.ULID) error {
	if _, ok := r.s.identities[id]; !ok {
		return oops.Code("PROFILE_OWNER_MISSING").With("identity_id", id.String()).Errorf("owner does not exist")
	}
	_, hasStudent := r.s.students[id]
	_, hasRecruiter := r.s.recruiters[id]
	if hasStudent || hasRecruiter {
		return oops.Code("PROFILE_EXISTS").With("identity_id", id.String()).Errorf("identity already owns a profile")
	}
	return nil
}

func (r profileRepo) checkStudentID(p *identity.StudentProfile) error {
	if p.StudentID == nil {
		return nil
	}
	for owner, other := range r.s.students {
		if owner != p.IdentityID && other.StudentID != nil && *other.StudentID == *p.StudentID {
			return oops.Code(identity.CodeValidation).
				With("fields", map[string]string{"student_id": "student id is already registered"}).
				Errorf("student id already registered")
		}
	}
	return nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, session *identity.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = *session
	return nil
}

func (r sessionRepo) GetByHandleHash(_ context.Context, hash string) (*identity.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.HandleHash == hash {
			return &session, nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
}

func (r sessionRepo) Touch(_ context.Context, id ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || !session.Active {
		return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	session.LastActiveAt = at
	r.s.sessions[id] = session
	return nil
}

func (r sessionRepo) Deactivate(_ context.Context, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range r.s.sessions {
		if session.HandleHash == hash && session.Active {
			session.Active = false
			r.s.sessions[id] = session
			return nil
		}
	}
	return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, tok *identity.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[tok.ID] = *tok
	return nil
}

func (r tokenRepo) GetByValueHash(_ context.Context, kind identity.TokenKind, hash string) (*identity.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, tok := range r.s.tokens {
		if tok.Kind == kind && tok.ValueHash == hash {
			return &tok, nil
		}
	}
	return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(identity.ErrNotFound)
}

func (r tokenRepo) Consume(_ context.Context, kind identity.TokenKind, hash string, now time.Time) (*identity.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, tok := range r.s.tokens {
		if tok.Kind == kind && tok.ValueHash == hash && tok.RedeemableAt(now) {
			tok.Consumed = true
			r.s.tokens[id] = tok
			return &tok, nil
		}
	}
	return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(identity.ErrNotFound)
}

func (r tokenRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, tok := range r.s.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// Verify interfaces are satisfied.
var (
	_ identity.Transactor         = (*Store)(nil)
	_ identity.IdentityRepository = identityRepo{}
	_ identity.ProfileRepository  = profileRepo{}
	_ identity.SessionRepository  = sessionRepo{}
	_ identity.TokenRepository    = tokenRepo{}
)
