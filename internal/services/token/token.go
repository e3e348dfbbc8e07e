// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies the signed session token that proves a
// completed email login.
package token

import (
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is written to the iss claim of every token.
	Issuer = "schoolhub"

	minSecretLength = 32
)

var (
	ErrMissingSecret = errors.New("session secret is required")
	ErrShortSecret   = errors.New("session secret must be at least 32 bytes")
)

// Claims identify the logged-in user.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issued is a freshly minted token and the moment it stops being valid.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Service signs and verifies HS256 session tokens.
type Service struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a token Service from the session config. The secret is read
// once here. In dev mode an empty secret is replaced by a random one, so
// tokens do not survive a restart.
func New(cfg *config.SessionConfig, devMode bool, opts ...Option) (*Service, error) {
	secret := []byte(cfg.Secret)
	switch {
	case len(secret) == 0 && devMode:
		secret = make([]byte, minSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		slog.Warn("using ephemeral session secret, sessions will not survive a restart")
	case len(secret) == 0:
		return nil, ErrMissingSecret
	case len(secret) < minSecretLength:
		return nil, ErrShortSecret
	}

	s := &Service{
		secret:     secret,
		ttl:        cfg.SessionDuration(),
		cookieName: cfg.CookieName,
		secure:     cfg.CookieSecure,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for email that expires after the configured TTL.
func (s *Service) Issue(email string) (*Issued, error) {
	now := s.now().UTC()
	// Registered claims carry second precision.
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Issued{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify returns the claims of a well-formed, correctly signed HS256 token
// that has not expired. Any other input yields false.
func (s *Service) Verify(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || claims.Email == "" {
		return nil, false
	}
	return claims, true
}

// Cookie wraps an issued token in the session cookie.
func (s *Service) Cookie(issued *Issued) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    issued.Token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the session cookie.
func (s *Service) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieName returns the name of the session cookie.
func (s *Service) CookieName() string {
	return s.cookieName
}
