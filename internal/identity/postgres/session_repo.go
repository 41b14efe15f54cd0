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

const sessionColumns = `id, identity_id, handle_hash, ip_address, user_agent, created_at, last_active_at, active`

// SessionRepository implements identity.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *identity.Session) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		session.ID.String(),
		session.IdentityID.String(),
		session.HandleHash,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.LastActiveAt,
		session.Active,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByHandleHash retrieves a session, active or not, by handle hash.
func (r *SessionRepository) GetByHandleHash(ctx context.Context, handleHash string) (*identity.Session, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE handle_hash = $1`, handleHash)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by handle hash").
			Wrap(err)
	}
	return session, nil
}

// Touch sets last_active_at on an active session.
func (r *SessionRepository) Touch(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE sessions SET last_active_at = $2 WHERE id = $1 AND active`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_TOUCH_FAILED").
			With("operation", "touch session").
			With("session_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// Deactivate marks the active session with handleHash inactive. A session
// that is already inactive counts as missing.
func (r *SessionRepository) Deactivate(ctx context.Context, handleHash string) error {
	result, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE handle_hash = $1 AND active`, handleHash)
	if err != nil {
		return oops.Code("SESSION_DEACTIVATE_FAILED").
			With("operation", "deactivate session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanSession reads one session row. pgx.ErrNoRows is returned unwrapped.
func scanSession(row pgx.Row) (*identity.Session, error) {
	var (
		idStr       string
		identityStr string
		s           identity.Session
	)
	err := row.Scan(&idStr, &identityStr, &s.HandleHash, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastActiveAt, &s.Active)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers attach codes
	}

	if s.ID, err = parseID(idStr, "session_id"); err != nil {
		return nil, err
	}
	if s.IdentityID, err = parseID(identityStr, "identity_id"); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ identity.SessionRepository = (*SessionRepository)(nil)
