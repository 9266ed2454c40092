// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// UsernameMinLength and UsernameMaxLength bound local usernames.
	UsernameMinLength = 3
	UsernameMaxLength = 64

	// PasswordMinLength is the shortest accepted plaintext password.
	PasswordMinLength = 6

	// PasswordMaxLength caps the input handed to the KDF.
	PasswordMaxLength = 256

	// ProfileFieldMaxLength bounds full name and company.
	ProfileFieldMaxLength = 120

	// DefaultSessionTTL is used when the configuration leaves it unset.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultStoreTimeout bounds each directory or session store call.
	DefaultStoreTimeout = 5 * time.Second

	// CookieIssuer is the issuer claim of signed session cookies.
	CookieIssuer = "payhub"

	// unusableDigest is stored for federated accounts. It has no separator,
	// so no plaintext can ever verify against it.
	unusableDigest = "!federated"

	// timingPassword is hashed once so that logins for unknown usernames can
	// spend one KDF run, like a real verification.
	timingPassword = "payhub-timing-equalizer"
)
