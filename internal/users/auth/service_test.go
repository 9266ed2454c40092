// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/internal/platform/oidc"
	"github.com/taibuivan/payhub/internal/platform/sec"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// # Fixtures

const testSecret = "test-session-secret-0123456789abcdef"

var fastScrypt = sec.ScryptParams{N: 16, R: 1, P: 1}

type fixture struct {
	service  *Service
	users    *MemoryDirectory
	sessions *MemorySessionStore
	clock    *fakeClock
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.current
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	clock.current = clock.current.Add(d)
	clock.mu.Unlock()
}

func newFixture(t *testing.T, identities IdentityVerifier) *fixture {
	t.Helper()

	clock := &fakeClock{current: time.Now()}
	users := NewMemoryDirectory()
	users.now = clock.Now
	sessions := NewMemorySessionStore()
	sessions.now = clock.Now

	service := NewService(users, sessions,
		sec.NewHasher(4, fastScrypt),
		sec.NewCookieSigner(testSecret, CookieIssuer),
		identities,
		Config{SessionTTL: time.Hour, StoreTimeout: time.Second},
	)
	service.now = clock.Now

	return &fixture{service: service, users: users, sessions: sessions, clock: clock}
}

func (f *fixture) register(t *testing.T, username, password string) *SignedIn {
	t.Helper()
	signedIn, err := f.service.Register(context.Background(), RegisterInput{Username: username, Password: password}, "")
	require.NoError(t, err)
	return signedIn
}

// requestWith builds a request carrying the cookie for session.
func (f *fixture) requestWith(t *testing.T, session *Session) *http.Request {
	t.Helper()
	request := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	cookie, err := f.service.SessionCookie(request, session)
	require.NoError(t, err)
	request.AddCookie(cookie)
	return request
}

// failingSessions answers every call with a connectivity error.
type failingSessions struct{}

var errStoreDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (failingSessions) Create(context.Context, int64, time.Time) (*Session, error) {
	return nil, errStoreDown
}
func (failingSessions) Read(context.Context, string) (*Session, error) { return nil, errStoreDown }
func (failingSessions) Destroy(context.Context, string) error           { return errStoreDown }
func (failingSessions) Touch(context.Context, string, time.Time) error  { return errStoreDown }
func (failingSessions) DeleteExpired(context.Context) (int64, error)    { return 0, errStoreDown }

type stubVerifier struct {
	identity *oidc.Identity
	err      error
}

func (verifier stubVerifier) Verify(context.Context, string) (*oidc.Identity, error) {
	return verifier.identity, verifier.err
}

// # Registration

func TestRegister_SignsIn(t *testing.T) {
	f := newFixture(t, nil)
	email := "ana@payhub.com"

	signedIn, err := f.service.Register(context.Background(), RegisterInput{
		Username: "ana",
		Password: "s3cret1",
		Email:    &email,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "ana", signedIn.Principal.Username)
	assert.False(t, signedIn.Principal.IsAdmin)
	require.NotNil(t, signedIn.Principal.Email)
	assert.Equal(t, email, *signedIn.Principal.Email)
	assert.Equal(t, signedIn.Principal.ID, signedIn.Session.UserID)

	stored, err := f.users.FindByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret1", stored.PasswordDigest)
	assert.Contains(t, stored.PasswordDigest, sec.DigestSeparator)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "ana", "s3cret1")

	_, err := f.service.Register(context.Background(), RegisterInput{Username: "ana", Password: "other-pass"}, "")
	assert.True(t, apperr.HasCode(err, "DUPLICATE_USERNAME"))
	assert.Equal(t, http.StatusBadRequest, apperr.As(err).HTTPStatus)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	f := newFixture(t, nil)

	const attempts = 8
	var succeeded, duplicates atomic.Int32
	var wg sync.WaitGroup

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Register(context.Background(), RegisterInput{Username: "race", Password: "s3cret1"}, "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.HasCode(err, "DUPLICATE_USERNAME"):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, attempts-1, duplicates.Load())
}

// # Login

func TestLogin_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	registered := f.register(t, "ana", "s3cret1")

	signedIn, err := f.service.Login(context.Background(), LoginInput{Username: "ana", Password: "s3cret1"}, "")
	require.NoError(t, err)
	assert.Equal(t, registered.Principal.ID, signedIn.Principal.ID)
	assert.NotEqual(t, registered.Session.ID, signedIn.Session.ID)

	principal, err := f.service.CurrentPrincipal(context.Background(), signedIn.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", principal.Username)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "ana", "s3cret1")

	_, wrongPassword := f.service.Login(context.Background(), LoginInput{Username: "ana", Password: "nope-nope"}, "")
	_, unknownUser := f.service.Login(context.Background(), LoginInput{Username: "ghost", Password: "s3cret1"}, "")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, apperr.As(wrongPassword).Code, apperr.As(unknownUser).Code)
	assert.Equal(t, apperr.As(wrongPassword).Message, apperr.As(unknownUser).Message)
	assert.Equal(t, http.StatusUnauthorized, apperr.As(unknownUser).HTTPStatus)
	assert.Equal(t, 1, f.sessions.Len(), "only the registration session exists")
}

func TestLogin_ReplacesPriorSession(t *testing.T) {
	f := newFixture(t, nil)
	registered := f.register(t, "ana", "s3cret1")

	signedIn, err := f.service.Login(context.Background(),
		LoginInput{Username: "ana", Password: "s3cret1"}, registered.Session.ID)
	require.NoError(t, err)

	_, err = f.service.CurrentPrincipal(context.Background(), registered.Session.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated, "prior session must not survive a login")
	assert.Equal(t, 1, f.sessions.Len())

	_, err = f.service.CurrentPrincipal(context.Background(), signedIn.Session.ID)
	assert.NoError(t, err)
}

// # Session Lifecycle

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	signedIn := f.register(t, "ana", "s3cret1")
	ctx := context.Background()

	require.NoError(t, f.service.Logout(ctx, signedIn.Session.ID))
	_, err := f.service.CurrentPrincipal(ctx, signedIn.Session.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Idempotent, and a request without a session is fine too.
	assert.NoError(t, f.service.Logout(ctx, signedIn.Session.ID))
	assert.NoError(t, f.service.Logout(ctx, ""))
}

func TestCurrentPrincipal_RoleIsFresh(t *testing.T) {
	f := newFixture(t, nil)
	signedIn := f.register(t, "ana", "s3cret1")
	ctx := context.Background()

	require.NoError(t, f.service.SetAdmin(ctx, "ana", true))
	principal, err := f.service.CurrentPrincipal(ctx, signedIn.Session.ID)
	require.NoError(t, err)
	assert.True(t, principal.IsAdmin)

	require.NoError(t, f.service.SetAdmin(ctx, "ana", false))
	principal, err = f.service.CurrentPrincipal(ctx, signedIn.Session.ID)
	require.NoError(t, err)
	assert.False(t, principal.IsAdmin)
}

func TestCurrentPrincipal_Expired(t *testing.T) {
	f := newFixture(t, nil)
	signedIn := f.register(t, "ana", "s3cret1")

	f.clock.Advance(time.Hour + time.Second)

	_, err := f.service.CurrentPrincipal(context.Background(), signedIn.Session.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	removed, err := f.service.PruneSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	assert.Zero(t, f.sessions.Len())
}

// # Per-request Authentication

func TestAuthenticate_Anonymous(t *testing.T) {
	f := newFixture(t, nil)

	plain := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	assert.Nil(t, f.service.Authenticate(plain).Principal)

	forged := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	forgedValue, err := sec.NewCookieSigner("another-secret", CookieIssuer).Sign("abc", time.Now().Add(time.Hour))
	require.NoError(t, err)
	forged.AddCookie(&http.Cookie{Name: "payhub.sid", Value: forgedValue})

	result := f.service.Authenticate(forged)
	assert.Nil(t, result.Principal)
	assert.NoError(t, result.Err)
}

func TestAuthenticate_RollingExpiry(t *testing.T) {
	f := newFixture(t, nil)
	signedIn := f.register(t, "ana", "s3cret1")
	request := f.requestWith(t, signedIn.Session)

	f.clock.Advance(50 * time.Minute)

	result := f.service.Authenticate(request)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Principal)
	assert.Equal(t, "ana", result.Principal.Username)
	assert.Equal(t, signedIn.Session.ID, result.SessionID)

	require.NotNil(t, result.Cookie, "a resolved session re-issues its cookie")
	assert.True(t, result.Cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, result.Cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), result.Cookie.MaxAge)

	// Past the first expiry, but within the extended one.
	f.clock.Advance(30 * time.Minute)
	_, err := f.service.CurrentPrincipal(context.Background(), signedIn.Session.ID)
	assert.NoError(t, err)
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	signedIn := f.register(t, "ana", "s3cret1")
	request := f.requestWith(t, signedIn.Session)

	f.service.sessions = failingSessions{}

	result := f.service.Authenticate(request)
	assert.Nil(t, result.Principal)
	require.Error(t, result.Err)
	assert.True(t, apperr.HasCode(result.Err, "INFRASTRUCTURE_ERROR"))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.As(result.Err).HTTPStatus)
}

func TestLogin_SessionStoreDown(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "ana", "s3cret1")
	f.service.sessions = failingSessions{}

	_, err := f.service.Login(context.Background(), LoginInput{Username: "ana", Password: "s3cret1"}, "")
	assert.True(t, apperr.HasCode(err, "INFRASTRUCTURE_ERROR"))

	err = f.service.Logout(context.Background(), "some-session")
	assert.True(t, apperr.HasCode(err, "INFRASTRUCTURE_ERROR"))
}

// # Federation

func TestFederatedLogin(t *testing.T) {
	email := "ana@example.com"
	verifier := stubVerifier{identity: &oidc.Identity{Provider: "google", Subject: "1234", Email: &email}}
	f := newFixture(t, verifier)
	ctx := context.Background()

	require.True(t, f.service.FederationEnabled())

	first, err := f.service.FederatedLogin(ctx, "raw-token", "")
	require.NoError(t, err)
	assert.Equal(t, "google:1234", first.Principal.Username)
	assert.False(t, first.Principal.IsAdmin)

	second, err := f.service.FederatedLogin(ctx, "raw-token", first.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Principal.ID, second.Principal.ID, "same subject maps to same account")

	// The federated account has no usable password.
	_, err = f.service.Login(ctx, LoginInput{Username: "google:1234", Password: unusableDigest}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFederatedLogin_Rejected(t *testing.T) {
	f := newFixture(t, stubVerifier{err: errors.New("oidc: token is expired")})
	_, err := f.service.FederatedLogin(context.Background(), "raw-token", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	disabled := newFixture(t, nil)
	assert.False(t, disabled.service.FederationEnabled())
	_, err = disabled.service.FederatedLogin(context.Background(), "raw-token", "")
	assert.ErrorIs(t, err, ErrFederationDisabled)
}

// # Administration

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	principal, created, err := f.service.EnsureAdmin(ctx, AdminInput{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, principal.IsAdmin)

	again, created, err := f.service.EnsureAdmin(ctx, AdminInput{Username: "admin", Password: "different"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, principal.ID, again.ID)

	signedIn, err := f.service.Login(ctx, LoginInput{Username: "admin", Password: "admin123"}, "")
	require.NoError(t, err)
	assert.True(t, signedIn.Principal.IsAdmin)
}

func TestSetAdmin_UnknownUser(t *testing.T) {
	f := newFixture(t, nil)
	err := f.service.SetAdmin(context.Background(), "ghost", true)
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))
}

func TestListUsers(t *testing.T) {
	f := newFixture(t, nil)
	for _, name := range []string{"ana", "bao", "chi"} {
		f.register(t, name, "s3cret1")
	}

	page, total, err := f.service.ListUsers(context.Background(), pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "chi", page[0].Username)
}

// # User Directory Outages

// brokenDirectory fails every call. With hang set it blocks until the caller's
// deadline instead, like a database that stopped answering.
type brokenDirectory struct {
	hang bool
}

var errDirectoryDown = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}

func (directory brokenDirectory) fail(ctx context.Context) error {
	if directory.hang {
		<-ctx.Done()
		return fmt.Errorf("users_query_failed: %w", ctx.Err())
	}
	return errDirectoryDown
}

func (directory brokenDirectory) FindByID(ctx context.Context, _ int64) (*User, error) {
	return nil, directory.fail(ctx)
}

func (directory brokenDirectory) FindByUsername(ctx context.Context, _ string) (*User, error) {
	return nil, directory.fail(ctx)
}

func (directory brokenDirectory) Create(ctx context.Context, _ *User) error {
	return directory.fail(ctx)
}

func (directory brokenDirectory) SetAdmin(ctx context.Context, _ string, _ bool) error {
	return directory.fail(ctx)
}

func (directory brokenDirectory) List(ctx context.Context, _ pagination.Params) ([]*User, int, error) {
	return nil, 0, directory.fail(ctx)
}

// assertUnavailable checks that err is a 503 and not a credential failure.
func assertUnavailable(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, "INFRASTRUCTURE_ERROR"), "got %v", err)
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
	assert.Equal(t, http.StatusServiceUnavailable, apperr.As(err).HTTPStatus)
}

/*
TestDirectoryOutage verifies that an unreachable or hanging user directory
surfaces as INFRASTRUCTURE_ERROR through every entry point, never as invalid
credentials or an anonymous request, and that a hang is cut at the store timeout.
*/
func TestDirectoryOutage(t *testing.T) {
	const storeTimeout = 50 * time.Millisecond

	tests := []struct {
		name      string
		directory brokenDirectory
	}{
		{"unreachable", brokenDirectory{}},
		{"hanging", brokenDirectory{hang: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			signedIn := f.register(t, "ana", "s3cret1")
			request := f.requestWith(t, signedIn.Session)

			f.service.users = tt.directory
			f.service.config.StoreTimeout = storeTimeout

			t.Run("login", func(t *testing.T) {
				started := time.Now()
				_, err := f.service.Login(context.Background(), LoginInput{Username: "ana", Password: "s3cret1"}, "")
				assertUnavailable(t, err)
				assert.Less(t, time.Since(started), 2*time.Second)
			})

			t.Run("register", func(t *testing.T) {
				started := time.Now()
				_, err := f.service.Register(context.Background(), RegisterInput{Username: "bao", Password: "s3cret1"}, "")
				assertUnavailable(t, err)
				assert.Less(t, time.Since(started), 2*time.Second)
			})

			t.Run("authenticate", func(t *testing.T) {
				started := time.Now()
				result := f.service.Authenticate(request)
				assert.Nil(t, result.Principal)
				assertUnavailable(t, result.Err)
				assert.Less(t, time.Since(started), 2*time.Second)
			})

			if tt.directory.hang {
				started := time.Now()
				_, err := f.service.Login(context.Background(), LoginInput{Username: "ana", Password: "s3cret1"}, "")
				assertUnavailable(t, err)
				assert.GreaterOrEqual(t, time.Since(started), storeTimeout)
			}
		})
	}
}

// # Timing Equalizer

// countingHasher records KDF runs and can fail its first Hash calls.
type countingHasher struct {
	inner        PasswordHasher
	failHashes   atomic.Int32
	hashes       atomic.Int32
	verifies     atomic.Int32
	emptyDigests atomic.Int32
}

func (hasher *countingHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	hasher.hashes.Add(1)
	if hasher.failHashes.Add(-1) >= 0 {
		return "", errors.New("scrypt: out of memory")
	}
	return hasher.inner.Hash(ctx, plaintext)
}

func (hasher *countingHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	hasher.verifies.Add(1)
	if digest == "" {
		hasher.emptyDigests.Add(1)
	}
	return hasher.inner.Verify(ctx, plaintext, digest)
}

func newCountingService(hasher *countingHasher) *Service {
	return NewService(NewMemoryDirectory(), NewMemorySessionStore(), hasher,
		sec.NewCookieSigner(testSecret, CookieIssuer), nil,
		Config{SessionTTL: time.Hour, StoreTimeout: time.Second},
	)
}

/*
TestLogin_UnknownUserCostsOneVerify verifies that the throwaway digest is
prepared up front, so unknown-user logins run exactly one KDF each.
*/
func TestLogin_UnknownUserCostsOneVerify(t *testing.T) {
	hasher := &countingHasher{inner: sec.NewHasher(2, fastScrypt)}
	service := newCountingService(hasher)
	require.EqualValues(t, 1, hasher.hashes.Load())

	for i := 0; i < 3; i++ {
		_, err := service.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever1"}, "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	assert.EqualValues(t, 1, hasher.hashes.Load(), "no extra hashing per login")
	assert.EqualValues(t, 3, hasher.verifies.Load())
	assert.Zero(t, hasher.emptyDigests.Load())
}

/*
TestLogin_UnknownUserRetriesDigest verifies that a failed up-front hash is
retried instead of leaving unknown-user logins without a KDF run.
*/
func TestLogin_UnknownUserRetriesDigest(t *testing.T) {
	hasher := &countingHasher{inner: sec.NewHasher(2, fastScrypt)}
	hasher.failHashes.Store(1)
	service := newCountingService(hasher)

	for i := 0; i < 2; i++ {
		_, err := service.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever1"}, "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	assert.EqualValues(t, 2, hasher.hashes.Load(), "one failed attempt, one retry")
	assert.EqualValues(t, 2, hasher.verifies.Load())
	assert.Zero(t, hasher.emptyDigests.Load())
}
