// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/payhub/internal/platform/constants"
	"github.com/taibuivan/payhub/internal/platform/sec"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// # User Data Access

// UserDirectory defines the data access contract for user accounts.
type UserDirectory interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account and fills in its ID and CreatedAt.

		The username uniqueness constraint of the store is authoritative: a
		collision at insert time yields ErrDuplicateUsername even when an
		earlier lookup found nothing.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: ErrDuplicateUsername or storage failures
	*/
	Create(context context.Context, user *User) error

	/*
		SetAdmin updates the admin flag of the named account.

		Returns:
		  - error: ErrUserNotFound or storage failures
	*/
	SetAdmin(context context.Context, username string, isAdmin bool) error

	/*
		List returns one page of accounts ordered by ID, and the total count.
	*/
	List(context context.Context, params pagination.Params) ([]*User, int, error)
}

// # Session Data Access

// SessionStore defines the persistence contract for server-side sessions.
type SessionStore interface {

	/*
		Create generates a fresh opaque identifier and persists the session.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - expiresAt: time.Time

		Returns:
		  - *Session: The stored record, ID included
		  - error: Persistence failures
	*/
	Create(context context.Context, userID int64, expiresAt time.Time) (*Session, error)

	/*
		Read returns the live session with the given identifier.

		Returns:
		  - *Session: The stored record
		  - error: ErrSessionNotFound when absent or expired, or storage failures
	*/
	Read(context context.Context, sessionID string) (*Session, error)

	/*
		Destroy removes the session. Removing an absent session is not an error.
	*/
	Destroy(context context.Context, sessionID string) error

	/*
		Touch moves the expiry of a live session to expiresAt.

		Returns:
		  - error: ErrSessionNotFound when absent, or storage failures
	*/
	Touch(context context.Context, sessionID string, expiresAt time.Time) error

	/*
		DeleteExpired physically removes sessions whose expiry has passed.

		Returns:
		  - int64: Number of removed sessions
		  - error: Cleanup failures
	*/
	DeleteExpired(context context.Context) (int64, error)
}

// newSessionID returns an unguessable session identifier.
func newSessionID() (string, error) {
	id, err := sec.GenerateSecureToken(constants.SessionIDBytes)
	if err != nil {
		return "", fmt.Errorf("session_id_generation_failed: %w", err)
	}
	return id, nil
}
