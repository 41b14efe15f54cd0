// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionHandleBytes is the entropy of a session handle (64 hex chars).
const SessionHandleBytes = 32

// Session is a server-held record of an authenticated client. The plaintext
// handle is only ever given to the client; the registry keeps its hash.
type Session struct {
	ID           ulid.ULID
	IdentityID   ulid.ULID
	HandleHash   string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	Active       bool
}

// Origin describes where a login came from.
type Origin struct {
	IPAddress string
	UserAgent string
}

// NewSession creates an active session for identityID.
func NewSession(identityID ulid.ULID, handleHash string, origin Origin, now time.Time) (*Session, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if handleHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("handle hash cannot be empty")
	}
	return &Session{
		ID:           ulid.Make(),
		IdentityID:   identityID,
		HandleHash:   handleHash,
		IPAddress:    origin.IPAddress,
		UserAgent:    origin.UserAgent,
		CreatedAt:    now,
		LastActiveAt: now,
		Active:       true,
	}, nil
}

// GenerateSessionHandle returns a random handle and the hash to store for it.
func GenerateSessionHandle() (handle, hash string, err error) {
	handle, err = randomHex(SessionHandleBytes)
	if err != nil {
		return "", "", oops.Code("SESSION_HANDLE_GENERATE_FAILED").
			With("requested_bytes", SessionHandleBytes).
			Wrap(err)
	}
	return handle, HashOpaque(handle), nil
}

// HashOpaque computes the hex SHA-256 of a session handle or token value.
// Only this hash is persisted.
func HashOpaque(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err //nolint:wrapcheck // callers attach codes
	}
	return hex.EncodeToString(b), nil
}

// SessionRepository is the session registry.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByHandleHash retrieves a session, active or not, by handle hash.
	GetByHandleHash(ctx context.Context, handleHash string) (*Session, error)

	// Touch sets LastActiveAt on an active session.
	Touch(ctx context.Context, id ulid.ULID, at time.Time) error

	// Deactivate marks the active session with handleHash inactive.
	// Returns ErrNotFound if no active session has that hash.
	Deactivate(ctx context.Context, handleHash string) error
}
