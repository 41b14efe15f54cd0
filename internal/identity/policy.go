// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// Secret length bounds.
const (
	MinSecretLength = 8
	MaxSecretLength = 128
)

// commonSecrets is a short deny-list of secrets that pass the length rule but
// are guessed first.
var commonSecrets = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"12345678":   {},
	"123456789":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"11111111":   {},
	"abc12345":   {},
	"letmein1":   {},
}

// SecretPolicy decides whether a secret is strong enough to store.
type SecretPolicy struct {
	MinLength int
}

// DefaultSecretPolicy returns the policy used when none is configured.
func DefaultSecretPolicy() SecretPolicy {
	return SecretPolicy{MinLength: MinSecretLength}
}

// Check returns a WEAK_SECRET error describing the first rule secret breaks.
// email is used to reject secrets that merely repeat the account name.
func (p SecretPolicy) Check(secret, email string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = MinSecretLength
	}

	n := len([]rune(secret))
	if n < minLen {
		return oops.Code(CodeWeakSecret).
			With("min", minLen).
			Errorf("secret must be at least %d characters", minLen)
	}
	if n > MaxSecretLength {
		return oops.Code(CodeWeakSecret).
			With("max", MaxSecretLength).
			Errorf("secret must be at most %d characters", MaxSecretLength)
	}
	if isAllDigits(secret) {
		return oops.Code(CodeWeakSecret).Errorf("secret cannot be entirely numeric")
	}
	if _, common := commonSecrets[strings.ToLower(secret)]; common {
		return oops.Code(CodeWeakSecret).Errorf("secret is too common")
	}
	if local, _, ok := strings.Cut(NormalizeEmail(email), "@"); ok && len(local) >= 3 &&
		strings.Contains(strings.ToLower(secret), local) {
		return oops.Code(CodeWeakSecret).Errorf("secret is too similar to the email address")
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
