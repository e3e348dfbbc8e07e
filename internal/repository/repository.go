// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vinovest/sqlx"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// Repository provides database operations on top of sqlx.
type Repository struct {
	db *sqlx.DB
	q  querier
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, q: db}
}

// DB returns the underlying sqlx.DB for direct access.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// WithTx runs fn inside a transaction. The Repository handed to fn issues
// every statement on the transaction; fn must not use the outer Repository.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Repository{db: r.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, dest any, query string, args ...any) error {
	return wrapError(r.q.GetContext(ctx, dest, r.q.Rebind(query), args...))
}

func (r *Repository) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return r.q.SelectContext(ctx, dest, r.q.Rebind(query), args...)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// wrapError converts driver errors to repository errors
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
