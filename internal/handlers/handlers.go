// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/schoolhub/internal/htmx"
	"codeberg.org/oliverandrich/schoolhub/internal/models"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	"codeberg.org/oliverandrich/schoolhub/internal/templates"
	"github.com/labstack/echo/v4"
)

// Handlers contains the health check and the public pages.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Home renders the school listing, filtered by ?search=.
func (h *Handlers) Home(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("search"))
	schools, err := listSchools(c, h.repo, query)
	if err != nil {
		return err
	}
	// Searches from the home page only swap the list.
	if hx := htmx.ParseRequest(c.Request()); hx.IsHtmx && !hx.IsBoosted && hx.Target == "school-list" {
		return Render(c, http.StatusOK, templates.SchoolList(schools))
	}
	return Render(c, http.StatusOK, templates.Home(schools, query))
}

func listSchools(c echo.Context, repo *repository.Repository, query string) ([]models.School, error) {
	if query == "" {
		return repo.ListSchools(c.Request().Context())
	}
	return repo.SearchSchools(c.Request().Context(), query)
}
