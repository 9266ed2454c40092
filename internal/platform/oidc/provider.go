// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package oidc verifies ID tokens issued by an external identity provider.
//
// The browser completes the provider's sign-in popup on its own and posts the
// resulting ID token to the API. This package only checks that token; it never
// performs the authorization code exchange.
package oidc

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrMissingSubject is returned when a verified token carries no subject.
var ErrMissingSubject = errors.New("oidc: id token has no subject")

// Identity is the verified outcome of a federated sign-in.
type Identity struct {
	// Provider is the short provider name used to namespace usernames.
	Provider string
	Subject  string
	Email    *string
	Name     *string
}

// Config holds what is needed to trust tokens from one issuer.
type Config struct {
	IssuerURL string
	ClientID  string
	Provider  string

	// HTTPClient is used for discovery and key fetches. Optional.
	HTTPClient *http.Client
}

// Verifier checks raw ID tokens against an issuer's published keys.
type Verifier struct {
	provider   string
	httpClient *http.Client
	verifier   *gooidc.IDTokenVerifier
}

// NewVerifier runs OIDC discovery against the issuer and returns a verifier
// that fetches signing keys on demand.
func NewVerifier(context context.Context, config Config) (*Verifier, error) {
	if config.IssuerURL == "" {
		return nil, errors.New("oidc: issuer URL is required")
	}
	if config.ClientID == "" {
		return nil, errors.New("oidc: client ID is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(config.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	provider, err := gooidc.NewProvider(withClient(context, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		provider:   config.Provider,
		httpClient: httpClient,
		verifier:   provider.Verifier(&gooidc.Config{ClientID: config.ClientID}),
	}, nil
}

// NewStaticVerifier trusts a fixed set of public keys instead of discovery.
// Used when the signing keys are pinned in configuration.
func NewStaticVerifier(config Config, keys ...crypto.PublicKey) *Verifier {
	keySet := &gooidc.StaticKeySet{PublicKeys: keys}
	return &Verifier{
		provider:   config.Provider,
		httpClient: config.HTTPClient,
		verifier:   gooidc.NewVerifier(config.IssuerURL, keySet, &gooidc.Config{ClientID: config.ClientID}),
	}
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// Verify checks the signature, issuer, audience and expiry of rawIDToken and
// returns the identity it asserts.
func (verifier *Verifier) Verify(context context.Context, rawIDToken string) (*Identity, error) {
	if verifier.httpClient != nil {
		context = withClient(context, verifier.httpClient)
	}

	token, err := verifier.verifier.Verify(context, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if token.Subject == "" {
		return nil, ErrMissingSubject
	}

	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}

	identity := &Identity{Provider: verifier.provider, Subject: token.Subject}

	// An address the provider explicitly marks unverified is not kept.
	if claims.Email != "" && (claims.EmailVerified == nil || *claims.EmailVerified) {
		email := claims.Email
		identity.Email = &email
	}
	if claims.Name != "" {
		name := claims.Name
		identity.Name = &name
	}

	return identity, nil
}

// withClient makes go-oidc use client for discovery and JWKS fetches.
func withClient(ctx context.Context, client *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
