// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/payhub/internal/platform/ctxkey"
	"github.com/taibuivan/payhub/internal/platform/identity"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok || logger == nil {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithAuthResult returns a new context carrying the session resolution outcome.
func WithAuthResult(ctx context.Context, result identity.AuthResult) context.Context {
	return context.WithValue(ctx, ctxkey.KeyAuth, result)
}

// GetAuthResult retrieves the [identity.AuthResult] for the request.
//
// The second value is false when the authentication middleware never ran,
// which callers must treat as anonymous.
func GetAuthResult(ctx context.Context) (identity.AuthResult, bool) {
	result, ok := ctx.Value(ctxkey.KeyAuth).(identity.AuthResult)
	return result, ok
}

// GetPrincipal retrieves the authenticated [*identity.Principal], or nil.
func GetPrincipal(ctx context.Context) *identity.Principal {
	result, _ := GetAuthResult(ctx)
	return result.Principal
}
