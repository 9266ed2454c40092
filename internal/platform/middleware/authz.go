// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/internal/platform/ctxutil"
	"github.com/taibuivan/payhub/internal/platform/identity"
	"github.com/taibuivan/payhub/internal/platform/respond"
)

// Authenticator resolves the session attached to a request.
//
// The implementation never fails the request by itself: store outages are
// reported through [identity.AuthResult.Err] and left to the guard, so that
// public routes keep working while the session store is down.
type Authenticator interface {
	Authenticate(request *http.Request) identity.AuthResult
}

// Authenticate resolves the caller once per request and stores the result in
// the request context.
//
// # Flow
//  1. Ask the [Authenticator] for an [identity.AuthResult].
//  2. Re-issue the session cookie when the result carries one (rolling expiry).
//  3. Inject the result into the context for the guard and the handlers.
func Authenticate(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			result := authenticator.Authenticate(request)

			// ── 1. Rolling Cookie ─────────────────────────────────────────────
			if result.Cookie != nil {
				http.SetCookie(writer, result.Cookie)
			}

			// ── 2. Log Correlation ────────────────────────────────────────────
			if result.Principal != nil {
				recordUser(request.Context(), result.Principal.ID)
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithAuthResult(request.Context(), result)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuthenticated blocks requests that carry no valid session.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Session lookup failed on infrastructure: 503, the client may retry.
//  2. No principal: 401 UNAUTHENTICATED.
//  3. Otherwise the downstream handler runs exactly once.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if _, ok := authorize(writer, request); !ok {
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireAdmin blocks requests that are not made by an administrator.
//
// It implies [RequireAuthenticated], so an anonymous caller gets 401 and an
// authenticated non-admin gets 403 FORBIDDEN.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal, ok := authorize(writer, request)
		if !ok {
			return
		}

		if !principal.IsAdmin {
			respond.Error(writer, request, apperr.Forbidden("Admin access required"))
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// authorize writes the rejection itself and reports whether to continue.
func authorize(writer http.ResponseWriter, request *http.Request) (*identity.Principal, bool) {
	result, _ := ctxutil.GetAuthResult(request.Context())

	if result.Err != nil {
		respond.Error(writer, request, result.Err)
		return nil, false
	}

	if result.Principal == nil {
		respond.Error(writer, request, apperr.Unauthorized("UNAUTHENTICATED", "Authentication required"))
		return nil, false
	}

	return result.Principal, true
}
