// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCookie is returned for any cookie that fails signature, issuer or
// expiry checks. Callers treat it as "no session".
var ErrInvalidCookie = errors.New("sec: invalid session cookie")

// sessionClaims carries the opaque session identifier in the JWT ID claim.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// CookieSigner protects session cookies with an HMAC-SHA256 signature keyed by
// the configured session secret.
//
// The signed value reveals only the random session identifier and its expiry,
// never a user id or username.
type CookieSigner struct {
	secret []byte
	issuer string
}

// NewCookieSigner creates a signer for the given secret.
func NewCookieSigner(secret, issuer string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret), issuer: issuer}
}

// Sign returns the cookie value binding sessionID until expiresAt.
func (signer *CookieSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    signer.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec_cookie_sign_failed: %w", err)
	}
	return signed, nil
}

// Open verifies a cookie value and returns the session identifier it carries.
func (signer *CookieSigner) Open(value string) (string, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(token *jwt.Token) (any, error) {
			return signer.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signer.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}
