// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"

	"github.com/taibuivan/payhub/internal/platform/apperr"
)

// # Storage Sentinels

// Repositories return these (possibly wrapped); the service matches them with
// [errors.Is] and never lets them reach the HTTP layer.
var (
	ErrUserNotFound      = errors.New("auth: user not found")
	ErrDuplicateUsername = errors.New("auth: username already exists")
	ErrSessionNotFound   = errors.New("auth: session not found")
)

// # Client-Facing Errors

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password. The two cases must stay indistinguishable.
	ErrInvalidCredentials = apperr.Unauthorized("INVALID_CREDENTIALS", "Invalid username or password")

	// ErrUsernameTaken is returned by registration on a username collision.
	ErrUsernameTaken = apperr.BadRequest("DUPLICATE_USERNAME", "Username already exists")

	// ErrUnauthenticated is returned when a session does not resolve to a user.
	ErrUnauthenticated = apperr.Unauthorized("UNAUTHENTICATED", "Authentication required")

	// ErrFederationDisabled is returned when no identity provider is configured.
	ErrFederationDisabled = apperr.NotFound("Federated sign-in")
)
