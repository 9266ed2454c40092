// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity holds the request-scoped view of who is calling.

A [Principal] is the outbound, digest-free projection of a user account. An
[AuthResult] is what session resolution produced for one request: a principal,
nothing, or an infrastructure failure. Both are plain values so that the
middleware, the guard, and the handlers can share them without importing the
auth domain.
*/
package identity

import (
	"net/http"
	"time"
)

// Principal is the authenticated user as seen by handlers and the guard.
//
// It never carries the password digest. IsAdmin is always read from the
// freshly loaded account, never from request input.
type Principal struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  *string   `json:"fullName"`
	Email     *string   `json:"email"`
	Company   *string   `json:"company"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is the outcome of resolving the session attached to a request.
//
// Exactly one of the following holds:
//   - Principal != nil: the session is valid and the account still exists.
//   - Err != nil: the session could not be checked (store down, timeout).
//   - both nil: the request is anonymous.
type AuthResult struct {
	Principal *Principal

	// SessionID is the resolved opaque identifier, empty for anonymous requests.
	SessionID string

	// Cookie, when set, must be written on the response (rolling expiry).
	Cookie *http.Cookie

	Err error
}

// Authenticated reports whether the result carries a principal.
func (result AuthResult) Authenticated() bool {
	return result.Principal != nil
}
