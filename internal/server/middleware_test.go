// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/ctxkeys"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI18nMiddleware(t *testing.T) {
	// Initialize i18n bundle
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(i18nMiddleware())

	var locale string
	e.GET("/", func(c echo.Context) error {
		locale = i18n.GetLocale(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("English header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "en-US")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.True(t, strings.HasPrefix(locale, "en"), "expected locale to start with 'en', got %s", locale)
	})

	t.Run("German header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "de-DE")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.True(t, strings.HasPrefix(locale, "de"), "expected locale to start with 'de', got %s", locale)
	})
}

func TestCsrfMiddleware(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL: "http://localhost:8080",
		},
	}

	e := echo.New()
	e.Use(csrfMiddleware(cfg))
	e.POST("/submit", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("form post without token is rejected", func(t *testing.T) {
		form := url.Values{"name": {"Lincoln High"}}
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
	})

	t.Run("multipart post without token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("--x--\r\n"))
		req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
	})

	t.Run("bodyless post skips the check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("json post skips the check", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestCsrfMiddleware_HTTPS(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			BaseURL: "https://example.com",
		},
	}

	e := echo.New()
	e.Use(csrfMiddleware(cfg))
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_csrf", cookies[0].Name)
	assert.True(t, cookies[0].Secure)
}

func TestCsrfToContext(t *testing.T) {
	e := echo.New()
	e.Use(csrfToContext())

	var csrfToken string
	e.GET("/", func(c echo.Context) error {
		if token := c.Request().Context().Value(ctxkeys.CSRFToken{}); token != nil {
			csrfToken = token.(string)
		}
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// No token without the CSRF middleware
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, csrfToken)
}

func TestCsrfToContext_WithToken(t *testing.T) {
	e := echo.New()

	// Middleware that sets a fake CSRF token
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("csrf", "test-token")
			return next(c)
		}
	})
	e.Use(csrfToContext())

	var csrfToken string
	e.GET("/", func(c echo.Context) error {
		if token := c.Request().Context().Value(ctxkeys.CSRFToken{}); token != nil {
			csrfToken = token.(string)
		}
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-token", csrfToken)
}

func TestSkipCSRF(t *testing.T) {
	e := echo.New()
	tests := map[string]bool{
		"application/json":                  true,
		"application/json; charset=utf-8":   true,
		"":                                  true,
		"text/plain":                        true,
		"application/x-www-form-urlencoded": false,
		"Application/X-WWW-Form-Urlencoded": false,
		"multipart/form-data; boundary=x":   false,
	}
	for contentType, expected := range tests {
		t.Run(contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(echo.HeaderContentType, contentType)
			c := e.NewContext(req, httptest.NewRecorder())

			assert.Equal(t, expected, skipCSRF(c))
		})
	}
}
