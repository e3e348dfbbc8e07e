// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware loads the session token and guards protected routes.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/schoolhub/internal/apperr"
	"codeberg.org/oliverandrich/schoolhub/internal/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/htmx"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
	"github.com/labstack/echo/v4"
)

// Verifier checks a session token.
type Verifier interface {
	Verify(tokenString string) (*token.Claims, bool)
}

// LoadSession verifies the session cookie and stores its claims in the
// request context. Requests without a valid token continue anonymously.
func LoadSession(v Verifier, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			claims, ok := v.Verify(cookie.Value)
			if !ok {
				slog.DebugContext(c.Request().Context(), "session_rejected", "path", c.Request().URL.Path)
				return next(c)
			}
			req := c.Request()
			c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), claims)))
			return next(c)
		}
	}
}

// GuardConfig configures Guard.
type GuardConfig struct {
	// Prefixes are the protected path prefixes. A prefix matches itself
	// and everything below it, segment by segment.
	Prefixes  []string
	LoginPath string
	ReturnTo  *ReturnTo
}

// Guard sends anonymous visitors of protected pages to the login page.
// It must run after LoadSession.
func Guard(cfg GuardConfig) echo.MiddlewareFunc {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !IsProtected(path, cfg.Prefixes) || auth.IsAuthenticated(c.Request().Context()) {
				return next(c)
			}
			if cfg.ReturnTo != nil && c.Request().Method == http.MethodGet {
				cfg.ReturnTo.Remember(c, c.Request().URL.RequestURI())
			}
			return htmx.Redirect(c, http.StatusSeeOther, loginPath)
		}
	}
}

// IsProtected reports whether path falls under one of prefixes.
func IsProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

var errUnauthorized = apperr.Auth("Unauthorized: Please login first")

// RequireSession rejects anonymous API requests with 401.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.IsAuthenticated(c.Request().Context()) {
				return c.JSON(errUnauthorized.Status, map[string]string{"error": errUnauthorized.Message})
			}
			return next(c)
		}
	}
}
