// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/schoolhub/internal/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"codeberg.org/oliverandrich/schoolhub/internal/middleware"
	authsvc "codeberg.org/oliverandrich/schoolhub/internal/services/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
	"codeberg.org/oliverandrich/schoolhub/internal/templates"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for signup and the code login.
type AuthHandlers struct {
	auth     *authsvc.Service
	tokens   *token.Service
	returnTo *middleware.ReturnTo
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service, tokens *token.Service, returnTo *middleware.ReturnTo) *AuthHandlers {
	return &AuthHandlers{auth: svc, tokens: tokens, returnTo: returnTo}
}

// SignupRequest is the request body for registration.
type SignupRequest struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
	Phone string `json:"phone" form:"phone"`
}

// SendCodeRequest is the request body for requesting a login code.
type SendCodeRequest struct {
	Email string `json:"email" form:"email"`
}

// VerifyCodeRequest is the request body for redeeming a login code.
type VerifyCodeRequest struct {
	Email string `json:"email" form:"email"`
	OTP   string `json:"otp" form:"otp"`
}

type successResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Signup registers a user.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidBody)
	}

	_, err := h.auth.Signup(c.Request().Context(), authsvc.SignupParams{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// SendOTP issues and mails a login code.
func (h *AuthHandlers) SendOTP(c echo.Context) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidBody)
	}

	ctx := c.Request().Context()
	if err := h.auth.RequestCode(ctx, req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: i18n.T(ctx, "otp_sent")})
}

// VerifyOTP redeems a login code and sets the session cookie.
func (h *AuthHandlers) VerifyOTP(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidBody)
	}

	issued, err := h.auth.VerifyCode(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(h.tokens.Cookie(issued))
	return c.JSON(http.StatusOK, successResponse{Success: true, Redirect: h.returnTo.Pop(c, "/")})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.tokens.ClearCookie())
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// Me returns the claims of the current session, or null.
func (h *AuthHandlers) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"user": auth.GetClaims(c.Request().Context())})
}

// LoginPage renders the login page.
func (h *AuthHandlers) LoginPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Login())
}

// SignupPage renders the registration page.
func (h *AuthHandlers) SignupPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.Signup())
}
