// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayedAmaan-6104/tpo-react/internal/identity"
	"github.com/sayedAmaan-6104/tpo-react/pkg/errutil"
)

func TestArgon2idHasher_HashAndVerify(t *testing.T) {
	h := identity.NewArgon2idHasher()

	digest, err := h.Hash("Correct-Horse-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := h.Verify("Correct-Horse-1", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("correct-horse-1", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2idHasher_SaltsDiffer(t *testing.T) {
	h := identity.NewArgon2idHasher()

	a, err := h.Hash("Same-Secret-9")
	require.NoError(t, err)
	b, err := h.Hash("Same-Secret-9")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestArgon2idHasher_EmptySecret(t *testing.T) {
	_, err := identity.NewArgon2idHasher().Hash("")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, identity.CodeWeakSecret)
}

func TestArgon2idHasher_MalformedDigest(t *testing.T) {
	h := identity.NewArgon2idHasher()

	tests := []struct {
		name   string
		digest string
	}{
		{"empty", ""},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv"},
		{"bad version", "$argon2id$v=x$m=65536,t=1,p=4$AAAA$AAAA"},
		{"bad params", "$argon2id$v=19$m=a,t=1,p=4$AAAA$AAAA"},
		{"zero threads", "$argon2id$v=19$m=65536,t=1,p=0$AAAA$AAAA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!!$AAAA"},
		{"empty key", "$argon2id$v=19$m=65536,t=1,p=4$AAAA$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("whatever", tt.digest)
			require.Error(t, err)
			assert.False(t, ok)
			errutil.AssertErrorCode(t, err, "HASH_INVALID_DIGEST")
		})
	}
}
