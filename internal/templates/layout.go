// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
)

// formScript submits forms marked with data-json to the JSON API and
// follows the redirect in the answer.
const formScript = `document.addEventListener("submit", async (ev) => {
  const form = ev.target.closest("form[data-json]");
  if (!form) return;
  ev.preventDefault();
  const data = Object.fromEntries(new FormData(form));
  delete data.csrf_token;
  const res = await fetch(form.getAttribute("action"), {
    method: form.dataset.method || "POST",
    headers: {"Content-Type": "application/json", "Accept": "application/json"},
    body: JSON.stringify(data),
  });
  const body = await res.json().catch(() => ({}));
  const status = form.querySelector("[data-status]");
  if (!res.ok) { if (status) status.textContent = body.error || res.statusText; return; }
  if (form.dataset.reveal) {
    const next = document.querySelector(form.dataset.reveal);
    next.hidden = false;
    const email = next.querySelector("input[name=email]");
    if (email && data.email) email.value = data.email;
  }
  if (status) status.textContent = body.message || "";
  if (form.dataset.next) location.href = body.redirect || form.dataset.next;
});`

// Layout wraps content in the page chrome.
func Layout(title string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<!DOCTYPE html><html lang="`)
		p.text(Locale(ctx))
		p.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		p.text(title)
		p.raw(` · `)
		p.t("app_name")
		p.raw(`</title><script src="https://unpkg.com/htmx.org@2.0.4" defer></script></head><body>`)
		nav(p)
		p.raw(`<main id="main">`)
		p.component(content)
		p.raw(`</main><script>` + formScript + `</script></body></html>`)
		return p.err
	})
}

func nav(p *writer) {
	p.raw(`<nav><a href="/">`)
	p.t("nav_home")
	p.raw(`</a>`)
	if IsAuthenticated(p.ctx) {
		p.raw(` <a href="/add-school">`)
		p.t("nav_add_school")
		p.raw(`</a> <span>`)
		p.text(CurrentEmail(p.ctx))
		p.raw(`</span> <form data-json action="/auth/logout" data-next="/" method="post" style="display:inline">`)
		p.csrfField()
		p.raw(`<button type="submit">`)
		p.t("nav_logout")
		p.raw(`</button></form>`)
	} else {
		p.raw(` <a href="/login">`)
		p.t("nav_login")
		p.raw(`</a> <a href="/signup">`)
		p.t("nav_signup")
		p.raw(`</a>`)
	}
	p.raw(`</nav>`)
}

// ErrorPage renders an error message with its status code.
func ErrorPage(code int, message string) templ.Component {
	title := http.StatusText(code)
	if title == "" {
		title = "Error"
	}
	return Layout(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<h1>` + strconv.Itoa(code) + ` `)
		p.text(title)
		p.raw(`</h1><p>`)
		p.text(message)
		p.raw(`</p><p><a href="/">`)
		p.t("nav_home")
		p.raw(`</a></p>`)
		return p.err
	}))
}
