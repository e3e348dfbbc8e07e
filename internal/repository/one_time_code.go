// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/models"
)

// CreateCode stores a newly issued one-time code.
func (r *Repository) CreateCode(ctx context.Context, email, codeHash string, issuedAt, expiresAt time.Time) (*models.OneTimeCode, error) {
	code := &models.OneTimeCode{
		Email:     email,
		CodeHash:  codeHash,
		IssuedAt:  issuedAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	err := r.get(ctx, &code.ID,
		`INSERT INTO one_time_codes (email, code_hash, issued_at, expires_at, consumed, attempts)
		 VALUES (?, ?, ?, ?, ?, 0) RETURNING id`,
		code.Email, code.CodeHash, code.IssuedAt, code.ExpiresAt, false)
	if err != nil {
		return nil, err
	}
	return code, nil
}

// GetLatestActiveCode returns the most recently issued code for email that
// is unconsumed and not expired at now.
func (r *Repository) GetLatestActiveCode(ctx context.Context, email string, now time.Time) (*models.OneTimeCode, error) {
	var code models.OneTimeCode
	err := r.get(ctx, &code,
		`SELECT * FROM one_time_codes
		 WHERE email = ? AND expires_at > ? AND consumed = ?
		 ORDER BY issued_at DESC, id DESC
		 LIMIT 1`,
		email, now.UTC(), false)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// ListCodes returns every code of email, newest first.
func (r *Repository) ListCodes(ctx context.Context, email string) ([]models.OneTimeCode, error) {
	var codes []models.OneTimeCode
	err := r.selectAll(ctx, &codes,
		`SELECT * FROM one_time_codes WHERE email = ? ORDER BY issued_at DESC, id DESC`, email)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// ConsumeCode marks a code as consumed. It reports false when the code was
// already consumed, so only one caller can redeem it.
func (r *Repository) ConsumeCode(ctx context.Context, codeID int64) (bool, error) {
	n, err := r.exec(ctx,
		`UPDATE one_time_codes SET consumed = ? WHERE id = ? AND consumed = ?`,
		true, codeID, false)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ConsumeOutstandingCodes marks every unconsumed code of email as consumed.
func (r *Repository) ConsumeOutstandingCodes(ctx context.Context, email string) (int64, error) {
	return r.exec(ctx,
		`UPDATE one_time_codes SET consumed = ? WHERE email = ? AND consumed = ?`,
		true, email, false)
}

// IncrementCodeAttempts records a failed guess against a code.
func (r *Repository) IncrementCodeAttempts(ctx context.Context, codeID int64) error {
	_, err := r.exec(ctx, `UPDATE one_time_codes SET attempts = attempts + 1 WHERE id = ?`, codeID)
	return err
}

// DeleteCodesForEmail deletes all codes of email.
func (r *Repository) DeleteCodesForEmail(ctx context.Context, email string) (int64, error) {
	return r.exec(ctx, `DELETE FROM one_time_codes WHERE email = ?`, email)
}

// DeleteExpiredCodes deletes codes that expired before now.
func (r *Repository) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM one_time_codes WHERE expires_at <= ?`, now.UTC())
}

// DeleteExpiredCodesForEmail deletes the codes of email that expired before now.
func (r *Repository) DeleteExpiredCodesForEmail(ctx context.Context, email string, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM one_time_codes WHERE email = ? AND expires_at <= ?`, email, now.UTC())
}
