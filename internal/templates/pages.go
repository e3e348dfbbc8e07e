// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"
	"strconv"

	"codeberg.org/oliverandrich/schoolhub/internal/models"
	"github.com/a-h/templ"
)

// Home lists schools with a search box. The list is swapped in place by
// htmx when searching.
func Home(schools []models.School, query string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(T(ctx, "home_title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			p := newWriter(ctx, w)
			p.raw(`<h1>`)
			p.t("home_title")
			p.raw(`</h1><form action="/" method="get" hx-get="/" hx-target="#school-list" hx-select="#school-list" hx-swap="outerHTML" hx-push-url="true"><input type="search" name="search" value="`)
			p.text(query)
			p.raw(`" placeholder="`)
			p.t("home_search_placeholder")
			p.raw(`"><button type="submit">`)
			p.t("home_search_button")
			p.raw(`</button></form>`)
			p.component(SchoolList(schools))
			return p.err
		})).Render(ctx, w)
	})
}

// SchoolList renders the school cards.
func SchoolList(schools []models.School) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := newWriter(ctx, w)
		p.raw(`<section id="school-list">`)
		if len(schools) == 0 {
			p.raw(`<p>`)
			p.t("home_empty")
			p.raw(`</p>`)
		}
		me := CurrentEmail(ctx)
		for i := range schools {
			s := &schools[i]
			p.raw(`<article class="school">`)
			if s.Image != nil && *s.Image != "" {
				p.raw(`<img src="`)
				p.url(*s.Image)
				p.raw(`" alt="`)
				p.text(s.Name)
				p.raw(`" loading="lazy">`)
			}
			p.raw(`<h2>`)
			p.text(s.Name)
			p.raw(`</h2><p>`)
			p.text(s.Address)
			p.raw(`<br>`)
			p.text(s.City + ", " + s.State)
			p.raw(`</p><p>`)
			p.text(s.Contact)
			p.raw(` · `)
			p.text(s.EmailID)
			p.raw(`</p>`)
			if me != "" && s.OwnedBy(me) {
				p.raw(`<a href="/edit-school/` + strconv.FormatInt(s.ID, 10) + `">`)
				p.t("school_edit_title")
				p.raw(`</a>`)
			}
			p.raw(`</article>`)
		}
		p.raw(`</section>`)
		return p.err
	})
}

// Login renders the two-step code login.
func Login() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(T(ctx, "login_title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			p := newWriter(ctx, w)
			p.raw(`<h1>`)
			p.t("login_title")
			p.raw(`</h1><p>`)
			p.t("login_intro")
			p.raw(`</p><form id="send-form" data-json data-reveal="#verify-form" action="/auth/send-otp" method="post">`)
			p.csrfField()
			p.input("email", "login_email_label", "email", "", true)
			p.raw(`<button type="submit">`)
			p.t("login_send_code")
			p.raw(`</button><p data-status role="status"></p></form>`)
			p.raw(`<form id="verify-form" data-json data-next="/" action="/auth/verify-otp" method="post" hidden>`)
			p.csrfField()
			p.raw(`<input type="hidden" name="email">`)
			p.raw(`<label>`)
			p.t("login_code_label")
			p.raw(`<input type="text" name="otp" inputmode="numeric" pattern="[0-9]{6}" maxlength="6" autocomplete="one-time-code" required></label><button type="submit">`)
			p.t("login_verify")
			p.raw(`</button><p data-status role="status"></p></form><p>`)
			p.t("login_no_account")
			p.raw(` <a href="/signup">`)
			p.t("nav_signup")
			p.raw(`</a></p>`)
			return p.err
		})).Render(ctx, w)
	})
}

// Signup renders the registration form.
func Signup() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(T(ctx, "signup_title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			p := newWriter(ctx, w)
			p.raw(`<h1>`)
			p.t("signup_title")
			p.raw(`</h1><form data-json data-next="/login" action="/signup" method="post">`)
			p.csrfField()
			p.input("name", "signup_name_label", "text", "", true)
			p.input("email", "signup_email_label", "email", "", true)
			p.input("phone", "signup_phone_label", "tel", "", true)
			p.raw(`<button type="submit">`)
			p.t("signup_submit")
			p.raw(`</button><p data-status role="status"></p></form><p>`)
			p.t("signup_have_account")
			p.raw(` <a href="/login">`)
			p.t("nav_login")
			p.raw(`</a></p>`)
			return p.err
		})).Render(ctx, w)
	})
}

// SchoolForm renders the add form, or the edit form when school is set.
func SchoolForm(school *models.School) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		titleID := "school_add_title"
		action, method := "/schools", "POST"
		var s models.School
		if school != nil {
			s = *school
			titleID = "school_edit_title"
			action, method = "/schools/"+strconv.FormatInt(s.ID, 10), "PUT"
		}
		image := ""
		if s.Image != nil {
			image = *s.Image
		}

		return Layout(T(ctx, titleID), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			p := newWriter(ctx, w)
			p.raw(`<h1>`)
			p.t(titleID)
			p.raw(`</h1><form data-json data-next="/" data-method="` + method + `" action="` + action + `" method="post">`)
			p.csrfField()
			p.input("name", "school_name_label", "text", s.Name, true)
			p.input("address", "school_address_label", "text", s.Address, true)
			p.input("city", "school_city_label", "text", s.City, true)
			p.input("state", "school_state_label", "text", s.State, true)
			p.input("contact", "school_contact_label", "tel", s.Contact, true)
			p.input("email_id", "school_email_label", "email", s.EmailID, true)
			p.input("image", "school_image_label", "url", image, false)
			p.raw(`<button type="submit">`)
			p.t("school_save")
			p.raw(`</button><p data-status role="status"></p></form>`)
			if school != nil {
				p.raw(`<form data-json data-next="/" data-method="DELETE" action="` + action + `" method="post">`)
				p.csrfField()
				p.raw(`<button type="submit">`)
				p.t("school_delete")
				p.raw(`</button><p data-status role="status"></p></form>`)
			}
			return p.err
		})).Render(ctx, w)
	})
}
