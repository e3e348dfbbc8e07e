// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth registers users and runs the email one-time-code login.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/apperr"
	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/models"
	"codeberg.org/oliverandrich/schoolhub/internal/ratelimit"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	"codeberg.org/oliverandrich/schoolhub/internal/services/email"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields        = apperr.Validation("All fields are required")
	ErrInvalidEmail         = apperr.Validation("Invalid email format")
	ErrUserExists           = apperr.Validation("User already exists. Please login.")
	ErrEmailRequired        = apperr.Validation("Email is required")
	ErrUserNotFound         = apperr.NotFound("User not found, please signup first")
	ErrTooManyRequests      = apperr.RateLimited("Too many OTP requests, please try again later")
	ErrCodeRequired         = apperr.Validation("Email and OTP required")
	ErrInvalidOrExpiredCode = apperr.New(apperr.KindAuth, http.StatusBadRequest, "Invalid or expired OTP")
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Issuer mints session tokens for verified emails.
type Issuer interface {
	Issue(email string) (*token.Issued, error)
}

// Service runs signup and the code login sequence.
type Service struct {
	repo       *repository.Repository
	tokens     Issuer
	dispatcher email.Dispatcher
	limiter    ratelimit.Limiter
	cfg        config.OTPConfig
	hashCost   int
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLimiter throttles RequestCode per email.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithHashCost sets the bcrypt cost for stored codes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(repo *repository.Repository, tokens Issuer, dispatcher email.Dispatcher, cfg config.OTPConfig, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		tokens:     tokens,
		dispatcher: dispatcher,
		limiter:    ratelimit.Nop{},
		cfg:        cfg,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lowercases an address so lookups are stable.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignupParams holds the parameters for user registration
type SignupParams struct {
	Name  string
	Email string
	Phone string
}

// Signup creates a new user account.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*models.User, error) {
	name := strings.TrimSpace(params.Name)
	addr := NormalizeEmail(params.Email)
	phone := strings.TrimSpace(params.Phone)

	if name == "" || addr == "" || phone == "" {
		return nil, ErrMissingFields
	}
	if parsed, err := mail.ParseAddress(addr); err != nil || parsed.Address != addr {
		return nil, ErrInvalidEmail
	}

	exists, err := s.repo.UserExists(ctx, addr)
	if err != nil {
		return nil, apperr.Internal("Internal Server Error", fmt.Errorf("check existing user: %w", err))
	}
	if exists {
		return nil, ErrUserExists
	}

	user, err := s.repo.CreateUser(ctx, addr, name, phone)
	if err != nil {
		// Lost a race against a concurrent signup for the same address.
		if exists, _ := s.repo.UserExists(ctx, addr); exists {
			return nil, ErrUserExists
		}
		return nil, apperr.Internal("Internal Server Error", fmt.Errorf("create user: %w", err))
	}

	slog.InfoContext(ctx, "signup_success", "user_id", user.ID, "email", addr)
	return user, nil
}

// RequestCode issues a new login code for a registered email and hands it
// to the dispatcher. Outstanding codes are retired in the same transaction
// that stores the new one.
func (s *Service) RequestCode(ctx context.Context, rawEmail string) error {
	addr := NormalizeEmail(rawEmail)
	if addr == "" {
		return ErrEmailRequired
	}

	exists, err := s.repo.UserExists(ctx, addr)
	if err != nil {
		return apperr.Internal("Failed to send OTP", fmt.Errorf("check user: %w", err))
	}
	if !exists {
		slog.WarnContext(ctx, "otp_request_failed", "email", addr, "reason", "user_not_found")
		return ErrUserNotFound
	}

	// The limiter fails open: on error allowed is true.
	allowed, retryAfter, err := s.limiter.Allow(ctx, addr)
	if err != nil {
		slog.WarnContext(ctx, "otp_rate_limit_error", "email", addr, "error", err)
	}
	if !allowed {
		slog.WarnContext(ctx, "otp_rate_limited", "email", addr, "retry_after", retryAfter)
		return ErrTooManyRequests
	}

	code, err := generateCode()
	if err != nil {
		return apperr.Internal("Failed to send OTP", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return apperr.Internal("Failed to send OTP", fmt.Errorf("hash code: %w", err))
	}

	now := s.now().UTC()
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if s.cfg.InvalidatePrevious {
			if err := s.retire(ctx, tx, addr, now); err != nil {
				return err
			}
		}
		_, err := tx.CreateCode(ctx, addr, string(hash), now, now.Add(s.cfg.TTL))
		return err
	})
	if err != nil {
		return apperr.Internal("Failed to send OTP", fmt.Errorf("store code: %w", err))
	}

	if err := s.dispatcher.SendCode(ctx, addr, code, s.cfg.TTL); err != nil {
		slog.ErrorContext(ctx, "otp_dispatch_failed", "email", addr, "error", err)
		return apperr.Dispatch("Failed to send OTP", err)
	}

	slog.InfoContext(ctx, "otp_sent", "email", addr, "expires_at", now.Add(s.cfg.TTL))
	return nil
}

// retire invalidates the outstanding codes of addr and prunes its expired rows.
func (s *Service) retire(ctx context.Context, tx *repository.Repository, addr string, now time.Time) error {
	if s.cfg.Policy == config.PolicyDelete {
		if _, err := tx.DeleteCodesForEmail(ctx, addr); err != nil {
			return fmt.Errorf("delete previous codes: %w", err)
		}
		return nil
	}
	if _, err := tx.DeleteExpiredCodesForEmail(ctx, addr, now); err != nil {
		return fmt.Errorf("prune expired codes: %w", err)
	}
	if _, err := tx.ConsumeOutstandingCodes(ctx, addr); err != nil {
		return fmt.Errorf("consume previous codes: %w", err)
	}
	return nil
}

// VerifyCode redeems the latest live code of email and mints a session
// token. Every failure to match looks the same to the caller.
func (s *Service) VerifyCode(ctx context.Context, rawEmail, code string) (*token.Issued, error) {
	addr := NormalizeEmail(rawEmail)
	code = strings.TrimSpace(code)
	if addr == "" || code == "" {
		return nil, ErrCodeRequired
	}

	now := s.now().UTC()
	row, err := s.repo.GetLatestActiveCode(ctx, addr, now)
	if errors.Is(err, repository.ErrNotFound) {
		slog.WarnContext(ctx, "otp_verify_failed", "email", addr, "reason", "no_active_code")
		return nil, ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, apperr.Internal("Failed to verify OTP", fmt.Errorf("load code: %w", err))
	}

	if !row.IsActive(now) {
		slog.WarnContext(ctx, "otp_verify_failed", "email", addr, "reason", "inactive_code")
		return nil, ErrInvalidOrExpiredCode
	}
	if row.Attempts >= s.cfg.MaxAttempts {
		slog.WarnContext(ctx, "otp_verify_failed", "email", addr, "reason", "attempts_exhausted")
		return nil, ErrInvalidOrExpiredCode
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.CodeHash), []byte(code)); err != nil {
		if err := s.repo.IncrementCodeAttempts(ctx, row.ID); err != nil {
			return nil, apperr.Internal("Failed to verify OTP", fmt.Errorf("count attempt: %w", err))
		}
		slog.WarnContext(ctx, "otp_verify_failed", "email", addr, "reason", "mismatch")
		return nil, ErrInvalidOrExpiredCode
	}

	redeemed, err := s.redeem(ctx, row)
	if err != nil {
		return nil, apperr.Internal("Failed to verify OTP", err)
	}
	if !redeemed {
		slog.WarnContext(ctx, "otp_verify_failed", "email", addr, "reason", "already_redeemed")
		return nil, ErrInvalidOrExpiredCode
	}

	issued, err := s.tokens.Issue(addr)
	if err != nil {
		return nil, apperr.Internal("Failed to verify OTP", fmt.Errorf("issue token: %w", err))
	}

	slog.InfoContext(ctx, "login_success", "email", addr)
	return issued, nil
}

// redeem applies the invalidation policy to a matched code. It reports
// false when a concurrent request already redeemed it.
func (s *Service) redeem(ctx context.Context, row *models.OneTimeCode) (bool, error) {
	if s.cfg.Policy == config.PolicyDelete {
		n, err := s.repo.DeleteCodesForEmail(ctx, row.Email)
		if err != nil {
			return false, fmt.Errorf("delete codes: %w", err)
		}
		return n > 0, nil
	}
	ok, err := s.repo.ConsumeCode(ctx, row.ID)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return ok, nil
}

// generateCode returns a uniformly random six-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
