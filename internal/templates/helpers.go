// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the HTML pages.
package templates

import (
	"context"
	"io"

	"codeberg.org/oliverandrich/schoolhub/internal/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/ctxkeys"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"github.com/a-h/templ"
)

// CSRFToken returns the CSRF token from the context.
func CSRFToken(ctx context.Context) string {
	if token, ok := ctx.Value(ctxkeys.CSRFToken{}).(string); ok {
		return token
	}
	return ""
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}

// IsAuthenticated returns true if a user is logged in.
func IsAuthenticated(ctx context.Context) bool {
	return auth.IsAuthenticated(ctx)
}

// CurrentEmail returns the email of the logged-in user, or "".
func CurrentEmail(ctx context.Context) string {
	return auth.Email(ctx)
}

// writer accumulates the first write error so page code stays linear.
type writer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func newWriter(ctx context.Context, w io.Writer) *writer {
	return &writer{ctx: ctx, w: w}
}

func (p *writer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *writer) text(s string) {
	p.raw(templ.EscapeString(s))
}

// t writes an escaped translation.
func (p *writer) t(messageID string) {
	p.text(T(p.ctx, messageID))
}

func (p *writer) url(s string) {
	p.text(string(templ.URL(s)))
}

func (p *writer) component(c templ.Component) {
	if p.err == nil && c != nil {
		p.err = c.Render(p.ctx, p.w)
	}
}

func (p *writer) csrfField() {
	if token := CSRFToken(p.ctx); token != "" {
		p.raw(`<input type="hidden" name="csrf_token" value="`)
		p.text(token)
		p.raw(`">`)
	}
}

func (p *writer) input(name, labelID, kind, value string, required bool) {
	p.raw(`<label>`)
	p.t(labelID)
	p.raw(`<input type="` + kind + `" name="` + name + `" value="`)
	p.text(value)
	p.raw(`"`)
	if required {
		p.raw(` required`)
	}
	p.raw(`></label>`)
}
