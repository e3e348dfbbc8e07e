// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/apperr"
	"codeberg.org/oliverandrich/schoolhub/internal/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/handlers"
	"codeberg.org/oliverandrich/schoolhub/internal/htmx"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"codeberg.org/oliverandrich/schoolhub/internal/middleware"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	authsvc "codeberg.org/oliverandrich/schoolhub/internal/services/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
	"codeberg.org/oliverandrich/schoolhub/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

func init() {
	// Initialize i18n for template rendering
	_ = i18n.Init()
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	e          *echo.Echo
	repo       *repository.Repository
	tokens     *token.Service
	dispatcher *testutil.FakeDispatcher
	clock      *testutil.Clock
	auth       *handlers.AuthHandlers
	schools    *handlers.SchoolHandlers
	pages      *handlers.Handlers
}

func newEnv(t *testing.T) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock(t0)
	tokens, err := token.New(&config.SessionConfig{
		CookieName: "token",
		MaxAge:     3600,
		Secret:     "0123456789abcdef0123456789abcdef",
	}, false, token.WithClock(clock.Now))
	require.NoError(t, err)

	dispatcher := &testutil.FakeDispatcher{}
	svc := authsvc.NewService(repo, tokens, dispatcher, config.OTPConfig{
		TTL:                5 * time.Minute,
		Policy:             config.PolicyConsume,
		InvalidatePrevious: true,
		MaxAttempts:        5,
	}, authsvc.WithClock(clock.Now), authsvc.WithHashCost(bcrypt.MinCost))

	e := echo.New()
	e.Validator = handlers.NewValidator()
	return &env{
		e:          e,
		repo:       repo,
		tokens:     tokens,
		dispatcher: dispatcher,
		clock:      clock,
		auth:       handlers.NewAuth(svc, tokens, middleware.NewReturnTo(nil, false)),
		schools:    handlers.NewSchools(repo),
		pages:      handlers.New(repo),
	}
}

func (v *env) jsonContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := testutil.NewEchoContext(v.e, method, path, strings.NewReader(body))
	req := c.Request()
	c.SetRequest(req.WithContext(i18n.WithLocale(req.Context(), language.English)))
	return c, rec
}

func (v *env) asUser(c echo.Context, email string) {
	req := c.Request()
	c.SetRequest(req.WithContext(auth.WithClaims(req.Context(), &token.Claims{Email: email})))
}

func withID(c echo.Context, id string) {
	c.SetParamNames("id")
	c.SetParamValues(id)
}

func TestHealth(t *testing.T) {
	v := newEnv(t)
	c, rec := v.jsonContext(http.MethodGet, "/health", "")

	err := v.pages.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHome(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")
	testutil.NewTestSchool(t, v.repo, "Roosevelt Elementary", "owner@example.com")

	t.Run("lists all schools", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/", "")

		require.NoError(t, v.pages.Home(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Lincoln High")
		assert.Contains(t, rec.Body.String(), "Roosevelt Elementary")
	})

	t.Run("filters by search", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/?search=lincoln", "")

		require.NoError(t, v.pages.Home(c))

		assert.Contains(t, rec.Body.String(), "Lincoln High")
		assert.NotContains(t, rec.Body.String(), "Roosevelt Elementary")
	})

	t.Run("htmx search returns the list only", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/?search=roosevelt", "")
		c.Request().Header.Set(htmx.HeaderRequest, "true")
		c.Request().Header.Set(htmx.HeaderTarget, "school-list")

		require.NoError(t, v.pages.Home(c))

		assert.Contains(t, rec.Body.String(), "Roosevelt Elementary")
		assert.NotContains(t, rec.Body.String(), "<html")
	})
}

func TestSignup(t *testing.T) {
	v := newEnv(t)

	tests := []struct {
		name     string
		body     string
		status   int
		response string
	}{
		{"success", `{"name":"Ada","email":"ada@example.com","phone":"+1 555 0100"}`, http.StatusOK, `{"success":true}`},
		{"duplicate", `{"name":"Ada","email":"ADA@example.com","phone":"+1 555 0100"}`, http.StatusBadRequest, `{"error":"User already exists. Please login."}`},
		{"missing field", `{"name":"Ada","email":"bob@example.com"}`, http.StatusBadRequest, `{"error":"All fields are required"}`},
		{"malformed email", `{"name":"Ada","email":"not-an-email","phone":"123"}`, http.StatusBadRequest, `{"error":"Invalid email format"}`},
		{"broken body", `{"name":`, http.StatusBadRequest, `{"error":"Invalid request body"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := v.jsonContext(http.MethodPost, "/signup", tt.body)

			require.NoError(t, v.auth.Signup(c))

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.response, rec.Body.String())
		})
	}
}

func TestSendOTP(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestUser(t, v.repo, "ada@example.com")

	t.Run("known user", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/send-otp", `{"email":"ada@example.com"}`)

		require.NoError(t, v.auth.SendOTP(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)
		assert.NotEmpty(t, v.dispatcher.LastCode("ada@example.com"))
	})

	t.Run("unknown user", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/send-otp", `{"email":"ghost@example.com"}`)

		require.NoError(t, v.auth.SendOTP(c))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"User not found, please signup first"}`, rec.Body.String())
	})

	t.Run("missing email", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/send-otp", `{}`)

		require.NoError(t, v.auth.SendOTP(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Email is required"}`, rec.Body.String())
	})

	t.Run("dispatch failure hides the cause", func(t *testing.T) {
		v.dispatcher.Err = errors.New("relay refused connection")
		defer func() { v.dispatcher.Err = nil }()
		c, rec := v.jsonContext(http.MethodPost, "/auth/send-otp", `{"email":"ada@example.com"}`)

		require.NoError(t, v.auth.SendOTP(c))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Failed to send OTP"}`, rec.Body.String())
	})
}

func TestVerifyOTP(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestUser(t, v.repo, "ada@example.com")
	c, _ := v.jsonContext(http.MethodPost, "/auth/send-otp", `{"email":"ada@example.com"}`)
	require.NoError(t, v.auth.SendOTP(c))
	code := v.dispatcher.LastCode("ada@example.com")

	t.Run("missing otp", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/verify-otp", `{"email":"ada@example.com"}`)

		require.NoError(t, v.auth.VerifyOTP(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Email and OTP required"}`, rec.Body.String())
	})

	t.Run("correct code sets cookie", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/verify-otp", `{"email":"ada@example.com","otp":"`+code+`"}`)

		require.NoError(t, v.auth.VerifyOTP(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"redirect":"/"}`, rec.Body.String())
		var session *http.Cookie
		for _, ck := range rec.Result().Cookies() {
			if ck.Name == "token" {
				session = ck
			}
		}
		require.NotNil(t, session)
		assert.True(t, session.HttpOnly)
		claims, ok := v.tokens.Verify(session.Value)
		require.True(t, ok)
		assert.Equal(t, "ada@example.com", claims.Email)
	})

	t.Run("replay", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/auth/verify-otp", `{"email":"ada@example.com","otp":"`+code+`"}`)

		require.NoError(t, v.auth.VerifyOTP(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid or expired OTP"}`, rec.Body.String())
	})
}

func TestLogout(t *testing.T) {
	v := newEnv(t)
	c, rec := v.jsonContext(http.MethodPost, "/auth/logout", "")

	require.NoError(t, v.auth.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMe(t *testing.T) {
	v := newEnv(t)

	t.Run("anonymous", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/auth/me", "")

		require.NoError(t, v.auth.Me(c))

		assert.JSONEq(t, `{"user":null}`, rec.Body.String())
	})

	t.Run("logged in", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/auth/me", "")
		v.asUser(c, "ada@example.com")

		require.NoError(t, v.auth.Me(c))

		assert.JSONEq(t, `{"user":{"email":"ada@example.com"}}`, rec.Body.String())
	})
}

const validSchool = `{"name":"Lincoln High","address":"12 Elm Street","city":"Springfield",` +
	`"state":"Illinois","contact":"+1 (555) 0100","email_id":"Office@Lincoln.example.com"}`

func TestSchoolCreate(t *testing.T) {
	v := newEnv(t)

	t.Run("valid", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPost, "/schools", validSchool)
		v.asUser(c, "ada@example.com")

		require.NoError(t, v.schools.Create(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)

		schools, err := v.repo.ListSchools(context.Background())
		require.NoError(t, err)
		require.Len(t, schools, 1)
		assert.Equal(t, "ada@example.com", schools[0].CreatedBy)
		assert.Equal(t, "office@lincoln.example.com", schools[0].EmailID)
		assert.Nil(t, schools[0].Image)
	})

	invalid := []struct {
		name string
		body string
		msg  string
	}{
		{"short name", strings.Replace(validSchool, "Lincoln High", "L", 1), "name must be at least 2 characters"},
		{"letters in contact", strings.Replace(validSchool, "+1 (555) 0100", "call-me-maybe", 1), "contact may only contain digits, spaces and + - ( )"},
		{"short contact", strings.Replace(validSchool, "+1 (555) 0100", "555", 1), "contact must be at least 10 characters"},
		{"bad email", strings.Replace(validSchool, "Office@Lincoln.example.com", "office", 1), "email_id must be a valid email address"},
		{"missing city", strings.Replace(validSchool, `"Springfield"`, `"  "`, 1), "city is required"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := v.jsonContext(http.MethodPost, "/schools", tt.body)
			v.asUser(c, "ada@example.com")

			require.NoError(t, v.schools.Create(c))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, rec.Body.String())
		})
	}
}

func TestSchoolGet(t *testing.T) {
	v := newEnv(t)
	school := testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")

	t.Run("found", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/schools/1", "")
		withID(c, "1")

		require.NoError(t, v.schools.Get(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), school.Name)
	})

	t.Run("missing", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/schools/99", "")
		withID(c, "99")

		require.NoError(t, v.schools.Get(c))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"School not found"}`, rec.Body.String())
	})

	t.Run("bad id", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/schools/abc", "")
		withID(c, "abc")

		require.NoError(t, v.schools.Get(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSchoolList(t *testing.T) {
	v := newEnv(t)

	c, rec := v.jsonContext(http.MethodGet, "/schools", "")
	require.NoError(t, v.schools.List(c))
	assert.JSONEq(t, `[]`, rec.Body.String())

	testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")
	c, rec = v.jsonContext(http.MethodGet, "/schools?search=spring", "")
	require.NoError(t, v.schools.List(c))
	assert.Contains(t, rec.Body.String(), "Lincoln High")
}

func TestSchoolUpdate(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")

	t.Run("other user", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodPut, "/schools/1", validSchool)
		withID(c, "1")
		v.asUser(c, "intruder@example.com")

		require.NoError(t, v.schools.Update(c))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Not found or not authorized"}`, rec.Body.String())
	})

	t.Run("owner", func(t *testing.T) {
		body := strings.Replace(validSchool, "Lincoln High", "Lincoln Academy", 1)
		c, rec := v.jsonContext(http.MethodPut, "/schools/1", body)
		withID(c, "1")
		v.asUser(c, "owner@example.com")

		require.NoError(t, v.schools.Update(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		school, err := v.repo.GetSchoolByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Lincoln Academy", school.Name)
	})
}

func TestSchoolDelete(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")

	tests := []struct {
		name   string
		id     string
		email  string
		status int
	}{
		{"missing", "42", "owner@example.com", http.StatusNotFound},
		{"not owner", "1", "intruder@example.com", http.StatusForbidden},
		{"owner", "1", "owner@example.com", http.StatusOK},
		{"already gone", "1", "owner@example.com", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := v.jsonContext(http.MethodDelete, "/schools/"+tt.id, "")
			withID(c, tt.id)
			v.asUser(c, tt.email)

			require.NoError(t, v.schools.Delete(c))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestEditSchoolPage(t *testing.T) {
	v := newEnv(t)
	testutil.NewTestSchool(t, v.repo, "Lincoln High", "owner@example.com")

	tests := []struct {
		name   string
		id     string
		email  string
		status int
	}{
		{"owner", "1", "owner@example.com", http.StatusOK},
		{"other user", "1", "intruder@example.com", http.StatusForbidden},
		{"missing", "7", "owner@example.com", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := v.jsonContext(http.MethodGet, "/edit-school/"+tt.id, "")
			withID(c, tt.id)
			v.asUser(c, tt.email)

			require.NoError(t, v.schools.EditSchoolPage(c))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML)
		})
	}
}

func TestPages(t *testing.T) {
	v := newEnv(t)

	pages := map[string]echo.HandlerFunc{
		"/login":      v.auth.LoginPage,
		"/signup":     v.auth.SignupPage,
		"/add-school": v.schools.AddSchoolPage,
	}
	for path, h := range pages {
		t.Run(path, func(t *testing.T) {
			c, rec := v.jsonContext(http.MethodGet, path, "")

			require.NoError(t, h(c))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "<form")
		})
	}
}

func TestErrorHandler(t *testing.T) {
	v := newEnv(t)

	t.Run("json for api clients", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/nope", "")

		handlers.ErrorHandler(echo.ErrNotFound, c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
	})

	t.Run("html for browsers", func(t *testing.T) {
		c, rec := testutil.NewEchoContextWithHeaders(v.e, http.MethodGet, "/nope", nil,
			map[string]string{echo.HeaderAccept: "text/html,application/xhtml+xml"})

		handlers.ErrorHandler(apperr.Forbidden("nope"), c)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "nope")
	})

	t.Run("internal errors are generic", func(t *testing.T) {
		c, rec := v.jsonContext(http.MethodGet, "/boom", "")

		handlers.ErrorHandler(errors.New("disk on fire"), c)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk on fire")
	})
}
