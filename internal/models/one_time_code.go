// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// OneTimeCode is a login code issued to an email address.
// Only the bcrypt hash of the code is stored.
type OneTimeCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CodeHash  string    `db:"code_hash" json:"-"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Consumed  bool      `db:"consumed" json:"consumed"`
	Attempts  int       `db:"attempts" json:"attempts"`
}

// IsExpired reports whether the code is past its expiry at now.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsActive reports whether the code can still be redeemed at now.
func (c *OneTimeCode) IsActive(now time.Time) bool {
	return !c.Consumed && !c.IsExpired(now)
}
