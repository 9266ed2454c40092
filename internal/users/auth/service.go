// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/internal/platform/constants"
	"github.com/taibuivan/payhub/internal/platform/ctxutil"
	"github.com/taibuivan/payhub/internal/platform/dberr"
	"github.com/taibuivan/payhub/internal/platform/identity"
	"github.com/taibuivan/payhub/internal/platform/middleware"
	"github.com/taibuivan/payhub/internal/platform/oidc"
	"github.com/taibuivan/payhub/pkg/pagination"
	"github.com/taibuivan/payhub/pkg/slice"
)

// # Contracts & Types

// PasswordHasher turns plaintext passwords into digests and checks them.
type PasswordHasher interface {
	Hash(context context.Context, plaintext string) (string, error)

	// Verify returns false (and no error) for a malformed digest.
	Verify(context context.Context, plaintext, digest string) (bool, error)
}

// CookieCodec protects the session identifier carried by the cookie.
type CookieCodec interface {
	Sign(sessionID string, expiresAt time.Time) (string, error)
	Open(value string) (string, error)
}

// IdentityVerifier checks an ID token issued by an external identity provider.
type IdentityVerifier interface {
	Verify(context context.Context, rawIDToken string) (*oidc.Identity, error)
}

// Config carries the session policy. It is passed explicitly so that several
// services (e.g. in tests) never share state.
type Config struct {
	// SessionTTL is the rolling session lifetime.
	SessionTTL time.Duration

	// StoreTimeout bounds each directory or session store call.
	StoreTimeout time.Duration

	// CookieName is the name of the session cookie.
	CookieName string

	// SecureCookies forces the Secure flag regardless of the request scheme.
	SecureCookies bool
}

func (config Config) withDefaults() Config {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	if config.CookieName == "" {
		config.CookieName = "payhub.sid"
	}
	return config
}

// Service implements user authentication and session use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	users      UserDirectory
	sessions   SessionStore
	hasher     PasswordHasher
	cookies    CookieCodec
	identities IdentityVerifier
	config     Config
	now        func() time.Time

	// dummyDigest is what unknown-user logins verify against.
	dummyMu     sync.Mutex
	dummyDigest string
}

// NewService constructs a new [Service]. identities may be nil, which
// disables federated sign-in.
func NewService(
	users UserDirectory,
	sessions SessionStore,
	hasher PasswordHasher,
	cookies CookieCodec,
	identities IdentityVerifier,
	config Config,
) *Service {
	service := &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		cookies:    cookies,
		identities: identities,
		config:     config.withDefaults(),
		now:        time.Now,
	}

	// A failure here is retried by the first login that needs the digest.
	service.dummyDigest, _ = hasher.Hash(context.Background(), timingPassword)

	return service
}

// SignedIn is the outcome of a successful login, registration or federated sign-in.
type SignedIn struct {
	Principal *identity.Principal
	Session   *Session
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Username string
	Password string
	FullName *string
	Email    *string
	Company  *string
}

/*
Register creates a new account and signs it in.

Description: The pre-check lookup gives a fast answer; the directory's unique
constraint is the real guard, so a collision at insert time is reported the
same way. If the account is stored but the session cannot be created, the
error is an infrastructure failure and the account stays: the caller may log
in once the store recovers.

Parameters:
  - context: context.Context
  - input: RegisterInput
  - priorSessionID: string (Session already carried by the request, if any)

Returns:
  - *SignedIn: Created principal and its session
  - error: ErrUsernameTaken, infrastructure or internal errors
*/
func (service *Service) Register(context context.Context, input RegisterInput, priorSessionID string) (*SignedIn, error) {
	logger := ctxutil.GetLogger(context)

	// 1. Duplicate pre-check
	_, err := service.findUserByUsername(context, input.Username)
	switch {
	case err == nil:
		return nil, ErrUsernameTaken
	case !errors.Is(err, ErrUserNotFound):
		return nil, service.directoryFailure(err)
	}

	// 2. Digest (CPU-bound, bounded worker pool)
	digest, err := service.hasher.Hash(context, input.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	// 3. Persist; the unique index decides concurrent registrations
	user := &User{
		Username:       input.Username,
		PasswordDigest: digest,
		FullName:       input.FullName,
		Email:          input.Email,
		Company:        input.Company,
	}
	if err := service.createUser(context, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, service.directoryFailure(err)
	}

	logger.InfoContext(context, "auth_user_registered", slog.Int64("user_id", user.ID))

	// 4. Session
	return service.establish(context, user, priorSessionID)
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Username string
	Password string
}

/*
Login validates credentials and opens a fresh session.

Description: An unknown username and a wrong password produce the same error,
and an unknown username still costs one KDF run.

Parameters:
  - context: context.Context
  - input: LoginInput
  - priorSessionID: string

Returns:
  - *SignedIn: Principal and its new session
  - error: ErrInvalidCredentials, infrastructure or internal errors
*/
func (service *Service) Login(context context.Context, input LoginInput, priorSessionID string) (*SignedIn, error) {
	logger := ctxutil.GetLogger(context)

	user, err := service.findUserByUsername(context, input.Username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, service.directoryFailure(err)
		}

		// Spend the same work as a real verification.
		_, _ = service.hasher.Verify(context, input.Password, service.dummy(context))
		logger.WarnContext(context, "auth_login_failed", slog.String("reason", "unknown_user"))
		return nil, ErrInvalidCredentials
	}

	matched, err := service.hasher.Verify(context, input.Password, user.PasswordDigest)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("auth_service_verify_failed: %w", err))
	}
	if !matched {
		logger.WarnContext(context, "auth_login_failed",
			slog.String("reason", "wrong_password"),
			slog.Int64("user_id", user.ID),
		)
		return nil, ErrInvalidCredentials
	}

	logger.InfoContext(context, "auth_login_succeeded", slog.Int64("user_id", user.ID))
	return service.establish(context, user, priorSessionID)
}

// dummy returns the digest of [timingPassword], computing it again if the
// attempt in [NewService] failed.
func (service *Service) dummy(ctx context.Context) string {
	service.dummyMu.Lock()
	defer service.dummyMu.Unlock()

	if service.dummyDigest == "" {
		digest, err := service.hasher.Hash(ctx, timingPassword)
		if err != nil {
			ctxutil.GetLogger(ctx).ErrorContext(ctx, "auth_dummy_digest_failed", slog.Any("error", err))
			return ""
		}
		service.dummyDigest = digest
	}
	return service.dummyDigest
}

/*
FederatedLogin verifies an ID token from the identity provider and signs in
the matching account, creating it on first use.

Parameters:
  - context: context.Context
  - rawIDToken: string
  - priorSessionID: string

Returns:
  - *SignedIn: Principal and its new session
  - error: ErrFederationDisabled, ErrInvalidCredentials, infrastructure errors
*/
func (service *Service) FederatedLogin(context context.Context, rawIDToken string, priorSessionID string) (*SignedIn, error) {
	if service.identities == nil {
		return nil, ErrFederationDisabled
	}

	verified, err := service.identities.Verify(context, rawIDToken)
	if err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "auth_federated_rejected", slog.Any("error", err))
		return nil, ErrInvalidCredentials
	}

	return service.SignInWithIdentity(context, verified, priorSessionID)
}

/*
SignInWithIdentity accepts an identity already verified by the provider.

Description: Federated accounts are named "<provider>:<subject>" and carry a
digest no password can match, so they can never log in locally.
*/
func (service *Service) SignInWithIdentity(context context.Context, verified *oidc.Identity, priorSessionID string) (*SignedIn, error) {
	provider := verified.Provider
	if provider == "" {
		provider = "oidc"
	}
	username := provider + ":" + verified.Subject

	user, err := service.findUserByUsername(context, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, service.directoryFailure(err)
		}

		user = &User{
			Username:       username,
			PasswordDigest: unusableDigest,
			FullName:       verified.Name,
			Email:          verified.Email,
		}
		if err := service.createUser(context, user); err != nil {
			if !errors.Is(err, ErrDuplicateUsername) {
				return nil, service.directoryFailure(err)
			}
			// Lost a race with a concurrent first sign-in of the same subject.
			if user, err = service.findUserByUsername(context, username); err != nil {
				return nil, service.directoryFailure(err)
			}
		} else {
			ctxutil.GetLogger(context).InfoContext(context, "auth_federated_user_created", slog.Int64("user_id", user.ID))
		}
	}

	return service.establish(context, user, priorSessionID)
}

// FederationEnabled reports whether an identity provider is configured.
func (service *Service) FederationEnabled() bool {
	return service.identities != nil
}

// establish replaces any prior session with a new one bound to user.
func (service *Service) establish(ctx context.Context, user *User, priorSessionID string) (*SignedIn, error) {
	if priorSessionID != "" {
		if err := service.destroySession(ctx, priorSessionID); err != nil {
			ctxutil.GetLogger(ctx).WarnContext(ctx, "session_prior_destroy_failed", slog.Any("error", err))
		}
	}

	session, err := service.createSession(ctx, user.ID, service.now().Add(service.config.SessionTTL))
	if err != nil {
		return nil, service.sessionFailure(err)
	}

	return &SignedIn{Principal: user.Principal(), Session: session}, nil
}

// # Session Lifecycle

/*
Logout destroys the session. An empty or already destroyed session is not an error.
*/
func (service *Service) Logout(context context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := service.destroySession(context, sessionID); err != nil {
		return service.sessionFailure(err)
	}
	ctxutil.GetLogger(context).InfoContext(context, "auth_logout")
	return nil
}

/*
CurrentPrincipal rehydrates the principal bound to a session.

Returns:
  - *identity.Principal: Freshly loaded from the directory
  - error: ErrUnauthenticated when the session or its user is gone,
    infrastructure errors when a store did not answer
*/
func (service *Service) CurrentPrincipal(context context.Context, sessionID string) (*identity.Principal, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}
	_, user, err := service.resolve(context, sessionID)
	if err != nil {
		return nil, err
	}
	return user.Principal(), nil
}

/*
Authenticate resolves the session cookie of a request into an [identity.AuthResult].

Description: A missing, forged or expired cookie yields an anonymous result.
A store failure is reported in AuthResult.Err rather than as anonymous, so the
guard answers 503 and the client retries instead of re-prompting for a login.
A resolved session is extended (rolling expiry) and its cookie re-issued.
*/
func (service *Service) Authenticate(request *http.Request) identity.AuthResult {
	sessionID := service.SessionIDFromRequest(request)
	if sessionID == "" {
		return identity.AuthResult{}
	}

	ctx := request.Context()
	logger := ctxutil.GetLogger(ctx)

	_, user, err := service.resolve(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return identity.AuthResult{}
		}
		logger.ErrorContext(ctx, "session_resolve_failed", slog.Any("error", err))
		return identity.AuthResult{Err: err}
	}

	result := identity.AuthResult{Principal: user.Principal(), SessionID: sessionID}

	expiresAt := service.now().Add(service.config.SessionTTL)
	if err := service.touchSession(ctx, sessionID, expiresAt); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Logged out concurrently.
			return identity.AuthResult{}
		}
		logger.WarnContext(ctx, "session_touch_failed", slog.Any("error", err))
		return result
	}

	cookie, err := service.cookie(request, sessionID, expiresAt)
	if err != nil {
		logger.WarnContext(ctx, "session_cookie_sign_failed", slog.Any("error", err))
		return result
	}
	result.Cookie = cookie

	return result
}

// resolve loads the session and its user. Absence on either side is
// ErrUnauthenticated; anything else is an infrastructure or internal failure.
func (service *Service) resolve(ctx context.Context, sessionID string) (*Session, *User, error) {
	session, err := service.readSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, service.sessionFailure(err)
	}

	user, err := service.findUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, service.directoryFailure(err)
	}

	return session, user, nil
}

// PruneSessions deletes expired sessions and reports how many were removed.
func (service *Service) PruneSessions(context context.Context) (int64, error) {
	removed, err := service.sessions.DeleteExpired(context)
	if err != nil {
		return 0, service.sessionFailure(err)
	}
	return removed, nil
}

// # Cookies

// SessionIDFromRequest opens the session cookie. It returns "" when the cookie
// is missing or does not verify.
func (service *Service) SessionIDFromRequest(request *http.Request) string {
	cookie, err := request.Cookie(service.config.CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sessionID, err := service.cookies.Open(cookie.Value)
	if err != nil {
		return ""
	}
	return sessionID
}

// SessionCookie returns the cookie that carries session to the browser.
func (service *Service) SessionCookie(request *http.Request, session *Session) (*http.Cookie, error) {
	return service.cookie(request, session.ID, session.ExpiresAt)
}

func (service *Service) cookie(request *http.Request, sessionID string, expiresAt time.Time) (*http.Cookie, error) {
	value, err := service.cookies.Sign(sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("auth_service_cookie_sign_failed: %w", err)
	}

	return &http.Cookie{
		Name:     service.config.CookieName,
		Value:    value,
		Path:     constants.SessionCookiePath,
		Expires:  expiresAt,
		MaxAge:   int(expiresAt.Sub(service.now()).Seconds()),
		HttpOnly: true,
		Secure:   service.secure(request),
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ClearCookie returns a cookie that removes the session cookie from the browser.
func (service *Service) ClearCookie(request *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     service.config.CookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   service.secure(request),
		SameSite: http.SameSiteLaxMode,
	}
}

func (service *Service) secure(request *http.Request) bool {
	return service.config.SecureCookies || middleware.IsSecureRequest(request)
}

// # Administration

// AdminInput describes the account created by the operator CLI.
type AdminInput struct {
	Username string
	Password string
	FullName *string
	Email    *string
}

/*
EnsureAdmin creates an admin account unless the username already exists.

Returns:
  - *identity.Principal: The created or existing account
  - bool: true when the account was created by this call
  - error: Storage or hashing failures
*/
func (service *Service) EnsureAdmin(context context.Context, input AdminInput) (*identity.Principal, bool, error) {
	existing, err := service.findUserByUsername(context, input.Username)
	if err == nil {
		return existing.Principal(), false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, service.directoryFailure(err)
	}

	digest, err := service.hasher.Hash(context, input.Password)
	if err != nil {
		return nil, false, apperr.Internal(fmt.Errorf("auth_service_hash_failed: %w", err))
	}

	user := &User{
		Username:       input.Username,
		PasswordDigest: digest,
		FullName:       input.FullName,
		Email:          input.Email,
		IsAdmin:        true,
	}
	if err := service.createUser(context, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			existing, findErr := service.findUserByUsername(context, input.Username)
			if findErr != nil {
				return nil, false, service.directoryFailure(findErr)
			}
			return existing.Principal(), false, nil
		}
		return nil, false, service.directoryFailure(err)
	}

	return user.Principal(), true, nil
}

// SetAdmin grants or revokes the admin flag. Sessions of the account pick the
// change up on their next request.
func (service *Service) SetAdmin(context context.Context, username string, isAdmin bool) error {
	if err := service.users.SetAdmin(context, username, isAdmin); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperr.NotFound("User")
		}
		return service.directoryFailure(err)
	}
	return nil
}

// ListUsers returns one page of principals for the admin panel.
func (service *Service) ListUsers(context context.Context, params pagination.Params) ([]*identity.Principal, int, error) {
	users, total, err := service.listUsers(context, params)
	if err != nil {
		return nil, 0, service.directoryFailure(err)
	}

	return slice.Map(users, (*User).Principal), total, nil
}

// # Bounded Store Calls

func (service *Service) findUserByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.users.FindByUsername(ctx, username)
}

func (service *Service) findUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.users.FindByID(ctx, id)
}

func (service *Service) createUser(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.users.Create(ctx, user)
}

func (service *Service) listUsers(ctx context.Context, params pagination.Params) ([]*User, int, error) {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.users.List(ctx, params)
}

func (service *Service) createSession(ctx context.Context, userID int64, expiresAt time.Time) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.sessions.Create(ctx, userID, expiresAt)
}

func (service *Service) readSession(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.sessions.Read(ctx, sessionID)
}

func (service *Service) touchSession(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.sessions.Touch(ctx, sessionID, expiresAt)
}

func (service *Service) destroySession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, service.config.StoreTimeout)
	defer cancel()
	return service.sessions.Destroy(ctx, sessionID)
}

// # Failure Mapping

// directoryFailure maps an unexpected user directory error. Unreachable or slow
// stores become 503; a store that answered with an error becomes 500.
func (service *Service) directoryFailure(err error) error {
	if dberr.IsUnavailable(err) {
		return apperr.Infrastructure(err)
	}
	return apperr.Internal(err)
}

// sessionFailure maps every unexpected session store error to 503.
func (service *Service) sessionFailure(err error) error {
	return apperr.Infrastructure(err)
}
