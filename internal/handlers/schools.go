// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/schoolhub/internal/apperr"
	"codeberg.org/oliverandrich/schoolhub/internal/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/models"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	"codeberg.org/oliverandrich/schoolhub/internal/templates"
	"github.com/labstack/echo/v4"
)

// SchoolHandlers contains the school API and pages.
type SchoolHandlers struct {
	repo *repository.Repository
}

// NewSchools creates a new SchoolHandlers instance.
func NewSchools(repo *repository.Repository) *SchoolHandlers {
	return &SchoolHandlers{repo: repo}
}

// SchoolRequest is the request body for creating and updating a school.
type SchoolRequest struct {
	Name    string `json:"name" form:"name" validate:"required,min=2,max=255"`
	Address string `json:"address" form:"address" validate:"required,min=5"`
	City    string `json:"city" form:"city" validate:"required,min=2,max=100"`
	State   string `json:"state" form:"state" validate:"required,min=2,max=100"`
	Contact string `json:"contact" form:"contact" validate:"required,min=10,max=20,phone"`
	EmailID string `json:"email_id" form:"email_id" validate:"required,email"`
	Image   string `json:"image" form:"image" validate:"omitempty,max=2048"`
}

func (r *SchoolRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.Contact = strings.TrimSpace(r.Contact)
	r.EmailID = strings.ToLower(strings.TrimSpace(r.EmailID))
	r.Image = strings.TrimSpace(r.Image)
}

func (r *SchoolRequest) input() repository.SchoolInput {
	in := repository.SchoolInput{
		Name:    r.Name,
		Address: r.Address,
		City:    r.City,
		State:   r.State,
		Contact: r.Contact,
		EmailID: r.EmailID,
	}
	if r.Image != "" {
		img := r.Image
		in.Image = &img
	}
	return in
}

type createdResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

// List returns all schools, or those matching ?search= on name, city or state.
func (h *SchoolHandlers) List(c echo.Context) error {
	schools, err := listSchools(c, h.repo, strings.TrimSpace(c.QueryParam("search")))
	if err != nil {
		return respondError(c, apperr.Internal("Failed to fetch schools", err))
	}
	return c.JSON(http.StatusOK, schools)
}

// Get returns a single school.
func (h *SchoolHandlers) Get(c echo.Context) error {
	id, err := schoolID(c)
	if err != nil {
		return respondError(c, err)
	}
	school, err := h.repo.GetSchoolByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, lookupError(err))
	}
	return c.JSON(http.StatusOK, school)
}

// Create adds a school owned by the logged-in user.
func (h *SchoolHandlers) Create(c echo.Context) error {
	req, err := bindSchool(c)
	if err != nil {
		return respondError(c, err)
	}

	school, err := h.repo.CreateSchool(c.Request().Context(), req.input(), auth.Email(c.Request().Context()))
	if err != nil {
		return respondError(c, apperr.Internal("Failed to create school", err))
	}
	return c.JSON(http.StatusOK, createdResponse{Success: true, ID: school.ID})
}

// Update changes a school. Schools of other users look like missing ones.
func (h *SchoolHandlers) Update(c echo.Context) error {
	id, err := schoolID(c)
	if err != nil {
		return respondError(c, err)
	}
	req, err := bindSchool(c)
	if err != nil {
		return respondError(c, err)
	}

	ok, err := h.repo.UpdateSchool(c.Request().Context(), id, req.input(), auth.Email(c.Request().Context()))
	if err != nil {
		return respondError(c, apperr.Internal("Failed to update school", err))
	}
	if !ok {
		return respondError(c, errUpdateDenied)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// Delete removes a school owned by the logged-in user.
func (h *SchoolHandlers) Delete(c echo.Context) error {
	id, err := schoolID(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx := c.Request().Context()
	email := auth.Email(ctx)

	school, err := h.repo.GetSchoolByID(ctx, id)
	if err != nil {
		return respondError(c, lookupError(err))
	}
	if !school.OwnedBy(email) {
		return respondError(c, errNotOwner)
	}

	ok, err := h.repo.DeleteSchool(ctx, id, email)
	if err != nil {
		return respondError(c, apperr.Internal("Failed to delete school", err))
	}
	if !ok {
		return respondError(c, errSchoolNotFound)
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// AddSchoolPage renders the empty school form.
func (h *SchoolHandlers) AddSchoolPage(c echo.Context) error {
	return Render(c, http.StatusOK, templates.SchoolForm(nil))
}

// EditSchoolPage renders the form for a school of the logged-in user.
func (h *SchoolHandlers) EditSchoolPage(c echo.Context) error {
	school, status, msg := h.editable(c)
	if school == nil {
		return Render(c, status, templates.ErrorPage(status, msg))
	}
	return Render(c, http.StatusOK, templates.SchoolForm(school))
}

func (h *SchoolHandlers) editable(c echo.Context) (*models.School, int, string) {
	id, err := schoolID(c)
	if err != nil {
		return nil, http.StatusNotFound, errSchoolNotFound.Message
	}
	school, err := h.repo.GetSchoolByID(c.Request().Context(), id)
	if err != nil {
		e, _ := apperr.As(lookupError(err))
		return nil, e.Status, e.Message
	}
	if !school.OwnedBy(auth.Email(c.Request().Context())) {
		return nil, http.StatusForbidden, "You can only edit schools you created"
	}
	return school, http.StatusOK, ""
}

func bindSchool(c echo.Context) (*SchoolRequest, error) {
	var req SchoolRequest
	if err := c.Bind(&req); err != nil {
		return nil, errInvalidBody
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return nil, apperr.Validation(validationMessage(err))
	}
	return &req, nil
}

func schoolID(c echo.Context) (int64, error) {
	id, ok := pathID(c)
	if !ok {
		return 0, errInvalidID
	}
	return id, nil
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errSchoolNotFound
	}
	return apperr.Internal("Failed to fetch school", err)
}
