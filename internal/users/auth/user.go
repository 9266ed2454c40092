// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity and session management layer.

It defines the core domain entities (User, Session), the storage contracts they
live behind, and the Service that turns credentials into sessions and sessions
back into principals.

# Architecture

  - Service: Orchestrates Register, Login, Logout and per-request session resolution.
  - Repository: UserDirectory (Postgres) and SessionStore (Postgres or Redis).
  - Security: scrypt digests and signed session cookies from the sec package.
*/
package auth

import (
	"time"

	"github.com/taibuivan/payhub/internal/platform/identity"
)

// # Domain Entities

// User represents a registered account of the PayHub dashboard.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordDigest string    `json:"-"` // Explicitly omitted from JSON for security.
	FullName       *string   `json:"fullName"`
	Email          *string   `json:"email"`
	Company        *string   `json:"company"`
	IsAdmin        bool      `json:"isAdmin"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Principal strips the digest and returns the outbound view of the account.
func (user *User) Principal() *identity.Principal {
	return &identity.Principal{
		ID:        user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Email:     user.Email,
		Company:   user.Company,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	}
}

// Session links an opaque identifier to a user id. The principal itself is
// never stored; it is reloaded from the directory on every request.
type Session struct {
	ID        string    `json:"-"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (session *Session) Expired(now time.Time) bool {
	return !now.Before(session.ExpiresAt)
}

// # Field Identifiers

// Global field names for validation in the authentication domain.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldFullName = "fullName"
	FieldEmail    = "email"
	FieldCompany  = "company"
	FieldIDToken  = "idToken"
)
