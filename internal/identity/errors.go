// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package identity

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Domain error codes. Any other code reaching a caller is an infrastructure failure.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeDuplicateEmail        = "DUPLICATE_EMAIL"
	CodeWeakSecret            = "WEAK_SECRET"
	CodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeRoleMismatch          = "ROLE_MISMATCH"
	CodeNoSuchSession         = "NO_SUCH_SESSION"
	CodeSessionInactive       = "SESSION_INACTIVE"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeForbidden             = "FORBIDDEN"
	CodeNotFound              = "NOT_FOUND"
)

// FieldErrors maps a request field name to a human readable problem.
type FieldErrors map[string]string

// Add records a problem for field, keeping the first one reported.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns a VALIDATION_FAILED error carrying the field map, or nil when empty.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return oops.Code(CodeValidation).
		With("fields", map[string]string(f)).
		Errorf("request validation failed")
}

// domainCodes lists every code in the domain taxonomy.
var domainCodes = []string{
	CodeValidation, CodeDuplicateEmail, CodeWeakSecret, CodeMissingRequiredField,
	CodeInvalidCredentials, CodeRoleMismatch, CodeNoSuchSession, CodeSessionInactive,
	CodeInvalidOrExpiredToken, CodeForbidden, CodeNotFound,
}

// ErrorCode returns the domain code carried by err, or "" when err is not a
// domain error.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	for _, c := range domainCodes {
		if code == c {
			return c
		}
	}
	return ""
}

// IsDomainError reports whether err belongs to the domain taxonomy rather than
// being a storage or runtime failure.
func IsDomainError(err error) bool {
	return ErrorCode(err) != ""
}

// FieldsOf extracts the field error map attached to a VALIDATION_FAILED error.
func FieldsOf(err error) map[string]string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	fields, _ := oopsErr.Context()["fields"].(map[string]string)
	return fields
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func invalidOrExpiredToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Errorf("invalid or expired token")
}
