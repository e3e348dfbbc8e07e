// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the verified session through the request context.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/schoolhub/internal/ctxkeys"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
)

// WithClaims returns a copy of ctx that carries claims.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ctxkeys.Session{}, claims)
}

// GetClaims returns the session claims from the context, or nil if anonymous.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ctxkeys.Session{}).(*token.Claims); ok {
		return claims
	}
	return nil
}

// Email returns the logged-in email address, or "".
func Email(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Email
	}
	return ""
}

// IsAuthenticated returns true if the context has a verified session.
func IsAuthenticated(ctx context.Context) bool {
	return GetClaims(ctx) != nil
}
