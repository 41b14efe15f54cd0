// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

// Package identity implements the account, session and token lifecycle of
// the placement portal.
//
// # Domain Types
//
// An Identity is the authentication root for one user and owns exactly one
// Profile whose variant (StudentProfile or RecruiterProfile) is fixed by the
// identity's Role. Sessions and Tokens are owned by an Identity as well.
// Use the constructors (NewIdentity, NewSession, NewToken) rather than
// struct literals; they validate their inputs.
//
// Session handles and token values are opaque random strings handed to the
// client. Only their SHA-256 hashes are stored.
//
// # Services
//
//   - RegistrationService - creates an identity and its profile atomically
//   - AuthService - login, logout, current identity, secret change, profile updates
//   - TokenService - password reset and email verification tokens
//
// Services are created with New*Service constructors that validate their
// dependencies and accept Options.
//
// # Errors
//
// Every error a service returns carries an oops code. Codes listed in
// errors.go form the domain taxonomy; IsDomainError separates them from
// storage failures.
package identity
