// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"strings"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/models"
)

// SchoolInput holds the editable fields of a school.
type SchoolInput struct {
	Name    string
	Address string
	City    string
	State   string
	Contact string
	Image   *string
	EmailID string
}

// CreateSchool creates a school owned by createdBy.
func (r *Repository) CreateSchool(ctx context.Context, in SchoolInput, createdBy string) (*models.School, error) {
	now := time.Now().UTC()
	school := &models.School{
		Name:      in.Name,
		Address:   in.Address,
		City:      in.City,
		State:     in.State,
		Contact:   in.Contact,
		Image:     in.Image,
		EmailID:   in.EmailID,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.get(ctx, &school.ID,
		`INSERT INTO schools (name, address, city, state, contact, image, email_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		school.Name, school.Address, school.City, school.State, school.Contact,
		school.Image, school.EmailID, school.CreatedBy, school.CreatedAt, school.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return school, nil
}

// GetSchoolByID retrieves a school by ID.
func (r *Repository) GetSchoolByID(ctx context.Context, id int64) (*models.School, error) {
	var school models.School
	if err := r.get(ctx, &school, `SELECT * FROM schools WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// ListSchools returns all schools, newest first.
func (r *Repository) ListSchools(ctx context.Context) ([]models.School, error) {
	schools := []models.School{}
	if err := r.selectAll(ctx, &schools, `SELECT * FROM schools ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, err
	}
	return schools, nil
}

// SearchSchools returns schools whose name, city or state contains query
// (case-insensitive), newest first.
func (r *Repository) SearchSchools(ctx context.Context, query string) ([]models.School, error) {
	term := "%" + escapeLike(strings.ToLower(query)) + "%"
	schools := []models.School{}
	err := r.selectAll(ctx, &schools,
		`SELECT * FROM schools
		 WHERE LOWER(name) LIKE ? ESCAPE '\' OR LOWER(city) LIKE ? ESCAPE '\' OR LOWER(state) LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC`,
		term, term, term)
	if err != nil {
		return nil, err
	}
	return schools, nil
}

// UpdateSchool updates a school owned by owner. It reports false when no
// school with that ID belongs to owner.
func (r *Repository) UpdateSchool(ctx context.Context, id int64, in SchoolInput, owner string) (bool, error) {
	n, err := r.exec(ctx,
		`UPDATE schools
		 SET name = ?, address = ?, city = ?, state = ?, contact = ?, image = ?, email_id = ?, updated_at = ?
		 WHERE id = ? AND created_by = ?`,
		in.Name, in.Address, in.City, in.State, in.Contact, in.Image, in.EmailID, time.Now().UTC(),
		id, owner)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteSchool deletes a school owned by owner. It reports false when no
// school with that ID belongs to owner.
func (r *Repository) DeleteSchool(ctx context.Context, id int64, owner string) (bool, error) {
	n, err := r.exec(ctx, `DELETE FROM schools WHERE id = ? AND created_by = ?`, id, owner)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
