// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package htmx provides helpers for answering htmx requests.
package htmx

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Request headers sent by htmx.
const (
	HeaderRequest    = "HX-Request"
	HeaderBoosted    = "HX-Boosted"
	HeaderCurrentURL = "HX-Current-URL"
	HeaderTarget     = "HX-Target"
)

// HeaderRedirect makes htmx navigate the whole page.
const HeaderRedirect = "HX-Redirect"

// Request describes the htmx headers of a request.
type Request struct { //nolint:govet // fieldalignment not critical
	IsHtmx     bool
	IsBoosted  bool
	CurrentURL string
	Target     string
}

// ParseRequest extracts htmx information from request headers.
func ParseRequest(r *http.Request) *Request {
	return &Request{
		IsHtmx:     r.Header.Get(HeaderRequest) == "true",
		IsBoosted:  r.Header.Get(HeaderBoosted) == "true",
		CurrentURL: r.Header.Get(HeaderCurrentURL),
		Target:     r.Header.Get(HeaderTarget),
	}
}

// Redirect sends the client to url. Plain requests get an HTTP redirect
// with code; htmx requests get HX-Redirect so the whole page navigates
// instead of swapping the redirect target into a fragment.
func Redirect(c echo.Context, code int, url string) error {
	if ParseRequest(c.Request()).IsHtmx {
		c.Response().Header().Set(HeaderRedirect, url)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(code, url)
}
