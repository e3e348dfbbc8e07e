// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/ctxkeys"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	sessionmw "codeberg.org/oliverandrich/schoolhub/internal/middleware"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func setupMiddleware(e *echo.Echo, cfg *config.Config, app *App) {
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", max(cfg.Server.MaxBodySize, 1))))
	e.Use(csrfMiddleware(cfg))
	e.Use(csrfToContext())
	e.Use(i18nMiddleware())
	e.Use(sessionmw.LoadSession(app.Tokens, app.Tokens.CookieName()))
	e.Use(sessionmw.Guard(sessionmw.GuardConfig{
		Prefixes:  cfg.Session.ProtectedPaths,
		LoginPath: cfg.Session.LoginPath,
		ReturnTo:  app.ReturnTo,
	}))
}

// csrfMiddleware configures CSRF protection for form posts. Other bodies,
// and requests without one, are exempt: a cross-site HTML form can only
// send form-encoded or multipart bodies, and the session cookie is
// SameSite=Lax.
func csrfMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper:        skipCSRF,
		TokenLookup:    "form:csrf_token,header:X-CSRF-Token",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})
}

// skipCSRF reports whether the request carries neither a form-encoded
// nor a multipart body.
func skipCSRF(c echo.Context) bool {
	contentType := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	return !strings.HasPrefix(contentType, echo.MIMEApplicationForm) &&
		!strings.HasPrefix(contentType, echo.MIMEMultipartForm)
}

// csrfToContext copies the CSRF token to the request context.
func csrfToContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := c.Get("csrf").(string); ok {
				ctx := context.WithValue(c.Request().Context(), ctxkeys.CSRFToken{}, token)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				slog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
			} else {
				slog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			}

			return nil
		},
	})
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acceptLang := c.Request().Header.Get("Accept-Language")
			lang := i18n.MatchLanguage(acceptLang)
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
