// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters (OWASP baseline).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// dummySecretDigest is verified against when the email is unknown so that
// login takes the same time whether or not the account exists. It never
// matches any secret.
//
//nolint:gosec // G101: not a credential
const dummySecretDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SecretHasher turns secrets into salted one-way digests and checks them.
type SecretHasher interface {
	// Hash returns an encoded digest of secret.
	Hash(secret string) (string, error)

	// Verify reports whether secret matches digest. A malformed digest is an error.
	Verify(secret, digest string) (bool, error)
}

// Argon2idHasher implements SecretHasher with argon2id, encoding digests in
// PHC string format.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id digest of the secret with a fresh random salt.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", oops.Code(CodeWeakSecret).Errorf("secret cannot be empty")
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("HASH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks secret against an argon2id digest in constant time.
func (h *Argon2idHasher) Verify(secret, digest string) (bool, error) {
	p, err := parseDigest(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

type digestParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseDigest(digest string) (*digestParams, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, oops.Code("HASH_INVALID_DIGEST").Errorf("unsupported digest format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("HASH_INVALID_DIGEST").With("segment", "version").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("HASH_INVALID_DIGEST").With("segment", "params").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("HASH_INVALID_DIGEST").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("HASH_INVALID_DIGEST").With("segment", "salt").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("HASH_INVALID_DIGEST").With("segment", "key").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("HASH_INVALID_DIGEST").Errorf("invalid key length: %d", len(key))
	}

	return &digestParams{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
