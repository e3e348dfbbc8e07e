// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/models"
)

// CreateUser creates a new user.
func (r *Repository) CreateUser(ctx context.Context, email, name, phone string) (*models.User, error) {
	user := &models.User{
		Email:     email,
		Name:      name,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	err := r.get(ctx, &user.ID,
		`INSERT INTO users (email, name, phone, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		user.Email, user.Name, user.Phone, user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.get(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user with the given email exists.
func (r *Repository) UserExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, err
}
