// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/schoolhub/internal/apperr"
	"codeberg.org/oliverandrich/schoolhub/internal/templates"
	"github.com/labstack/echo/v4"
)

var (
	errInvalidBody    = apperr.Validation("Invalid request body")
	errInvalidID      = apperr.Validation("Invalid school id")
	errSchoolNotFound = apperr.NotFound("School not found")
	errUpdateDenied   = apperr.NotFound("Not found or not authorized")
	errNotOwner       = apperr.Forbidden("You can only delete schools you created")
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError writes err as {"error": msg} with the status of its kind.
// Server-side failures are logged with their cause and answered with a
// generic message.
func respondError(c echo.Context, err error) error {
	status := apperr.StatusOf(err)
	msg := "Internal Server Error"
	if e, ok := apperr.As(err); ok {
		msg = e.Message
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}
	return c.JSON(status, errorResponse{Error: msg})
}

// ErrorHandler renders errors that escape handlers: JSON for API clients,
// an error page for browsers.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	default:
		if e, ok := apperr.As(err); ok {
			status, msg = e.Status, e.Message
		}
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "unhandled_error", "path", c.Request().URL.Path, "error", err)
	}

	var writeErr error
	switch {
	case c.Request().Method == http.MethodHead:
		writeErr = c.NoContent(status)
	case wantsHTML(c):
		writeErr = Render(c, status, templates.ErrorPage(status, msg))
	default:
		writeErr = c.JSON(status, errorResponse{Error: msg})
	}
	if writeErr != nil {
		slog.ErrorContext(c.Request().Context(), "failed to write error response", "error", writeErr)
	}
}
