// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
)

const (
	returnToCookie = "_next"
	returnToMaxAge = 600
)

// ReturnTo remembers the page an anonymous visitor asked for, so the login
// flow can send them back. The path is stored in a signed cookie.
type ReturnTo struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewReturnTo signs cookies with hashKey. A nil key generates a random one.
func NewReturnTo(hashKey []byte, secure bool) *ReturnTo {
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(returnToMaxAge)
	return &ReturnTo{codec: codec, secure: secure}
}

// Remember stores path for a later Pop.
func (r *ReturnTo) Remember(c echo.Context, path string) {
	if !isLocalPath(path) {
		return
	}
	encoded, err := r.codec.Encode(returnToCookie, path)
	if err != nil {
		return
	}
	c.SetCookie(r.cookie(encoded, returnToMaxAge))
}

// Pop returns the remembered path, or fallback, and clears the cookie.
func (r *ReturnTo) Pop(c echo.Context, fallback string) string {
	cookie, err := c.Cookie(returnToCookie)
	if err != nil {
		return fallback
	}
	c.SetCookie(r.cookie("", -1))

	var path string
	if err := r.codec.Decode(returnToCookie, cookie.Value, &path); err != nil || !isLocalPath(path) {
		return fallback
	}
	return path
}

func (r *ReturnTo) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     returnToCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// isLocalPath rejects absolute and protocol-relative URLs.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
