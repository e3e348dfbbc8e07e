// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/database"
	"codeberg.org/oliverandrich/schoolhub/internal/models"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a registered user with a placeholder name and phone.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), email, "Test User", "+1 555 0100")
	require.NoError(t, err)
	return user
}

// NewTestSchool creates a school owned by owner.
func NewTestSchool(t *testing.T, repo *repository.Repository, name, owner string) *models.School {
	t.Helper()
	school, err := repo.CreateSchool(context.Background(), repository.SchoolInput{
		Name:    name,
		Address: "1 Main Street",
		City:    "Springfield",
		State:   "Illinois",
		Contact: "+1 555 0199",
		EmailID: "office@school.example.com",
	}, owner)
	require.NoError(t, err)
	return school
}

// SentCode is a code captured by FakeDispatcher.
type SentCode struct {
	To   string
	Code string
	TTL  time.Duration
}

// FakeDispatcher records codes instead of mailing them.
type FakeDispatcher struct {
	mu   sync.Mutex
	sent []SentCode
	Err  error
}

// SendCode records the code, or returns Err when set.
func (f *FakeDispatcher) SendCode(_ context.Context, to, code string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, SentCode{To: to, Code: code, TTL: ttl})
	return nil
}

// Sent returns all captured codes in send order.
func (f *FakeDispatcher) Sent() []SentCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentCode(nil), f.sent...)
}

// LastCode returns the most recent code sent to email, or "".
func (f *FakeDispatcher) LastCode(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].To == email {
			return f.sent[i].Code
		}
	}
	return ""
}

// Clock is a settable time source for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
