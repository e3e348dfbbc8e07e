// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// CSRFToken is the context key for the CSRF token.
type CSRFToken struct{}

// Session is the context key for the verified session claims.
type Session struct{}
