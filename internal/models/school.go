// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// School is a school record owned by the user who created it.
type School struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Contact   string    `db:"contact" json:"contact"`
	Image     *string   `db:"image" json:"image"`
	EmailID   string    `db:"email_id" json:"email_id"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether email created the school.
func (s *School) OwnedBy(email string) bool {
	return s.CreatedBy != "" && s.CreatedBy == email
}
