// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// OTP invalidation policies.
const (
	// PolicyConsume marks a verified code as consumed and keeps the row.
	PolicyConsume = "consume"
	// PolicyDelete removes every code of the email once one is verified.
	PolicyDelete = "delete"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Session   SessionConfig
	SMTP      SMTPConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int  // in MB
	DevMode     bool // allows an ephemeral token secret and logged OTP codes
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // SQLite path or postgres:// URL
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName     string   // Session cookie name
	MaxAge         int      // Token lifetime and cookie max age in seconds
	Secret         string   // HMAC secret for signing session tokens
	CookieSecure   bool     // HTTPS only cookie
	ProtectedPaths []string // Path prefixes guarded by the session check
	LoginPath      string   // Where the guard sends anonymous visitors
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type OTPConfig struct { //nolint:govet // fieldalignment not critical
	TTL                time.Duration
	Policy             string // consume, delete
	InvalidatePrevious bool   // retire outstanding codes when a new one is issued
	MaxAttempts        int
}

type RateLimitConfig struct { //nolint:govet // fieldalignment not critical
	RedisURL string // empty disables throttling
	Requests int
	Window   time.Duration
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			DevMode:     cmd.Bool("dev"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Session: SessionConfig{
			CookieName:     cmd.String("session-cookie-name"),
			MaxAge:         int(cmd.Int("session-max-age")),
			Secret:         cmd.String("session-secret"),
			CookieSecure:   cmd.Bool("session-cookie-secure"),
			ProtectedPaths: cmd.StringSlice("protected-paths"),
			LoginPath:      cmd.String("login-path"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		OTP: OTPConfig{
			TTL:                cmd.Duration("otp-ttl"),
			Policy:             strings.ToLower(cmd.String("otp-policy")),
			InvalidatePrevious: cmd.Bool("otp-invalidate-previous"),
			MaxAttempts:        int(cmd.Int("otp-max-attempts")),
		},
		RateLimit: RateLimitConfig{
			RedisURL: cmd.String("redis-url"),
			Requests: int(cmd.Int("otp-rate-limit")),
			Window:   cmd.Duration("otp-rate-window"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	// Behind TLS the cookie is always secure
	if strings.HasPrefix(cfg.Server.BaseURL, "https://") {
		cfg.Session.CookieSecure = true
	}

	// SMTP sender defaults to the relay account, like most hosted relays expect
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	return cfg
}

// Validate checks settings that cannot be expressed as flag defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.Secret == "" && !c.Server.DevMode {
		errs = append(errs, errors.New("session secret is required outside dev mode (set SESSION_SECRET)"))
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("session max age must be positive, got %d", c.Session.MaxAge))
	}
	switch c.OTP.Policy {
	case PolicyConsume, PolicyDelete:
	default:
		errs = append(errs, fmt.Errorf("unknown otp policy %q (want %s or %s)", c.OTP.Policy, PolicyConsume, PolicyDelete))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, fmt.Errorf("otp ttl must be positive, got %s", c.OTP.TTL))
	}
	if c.OTP.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("otp max attempts must be positive, got %d", c.OTP.MaxAttempts))
	}
	if c.RateLimit.RedisURL != "" && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("otp rate limit needs positive requests and window"))
	}

	return errors.Join(errs...)
}

// SessionDuration returns the token lifetime.
func (c *SessionConfig) SessionDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Second
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	if host == "" {
		host = "localhost"
	}
	if cfg.Server.Port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.BoolFlag{
			Name:    "dev",
			Usage:   "Development mode (ephemeral session secret, OTP codes logged when SMTP is not configured)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DEV"), toml.TOML("server.dev", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/schoolhub.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "token",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   3600, // 1 hour in seconds
			Usage:   "Session token lifetime in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-secret",
			Usage:   "Secret for signing session tokens (at least 32 bytes, required outside dev mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_SECRET"), cli.EnvVar("JWT_SECRET"), toml.TOML("session.secret", configFile)),
		},
		&cli.BoolFlag{
			Name:    "session-cookie-secure",
			Usage:   "HTTPS only session cookie (implied by an https base URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_SECURE"), toml.TOML("session.cookie_secure", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "protected-paths",
			Value:   []string{"/add-school", "/edit-school"},
			Usage:   "Page path prefixes that require a session",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PROTECTED_PATHS"), toml.TOML("session.protected_paths", configFile)),
		},
		&cli.StringFlag{
			Name:    "login-path",
			Value:   "/login",
			Usage:   "Login page anonymous visitors are redirected to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOGIN_PATH"), toml.TOML("session.login_path", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP relay host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP relay port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), cli.EnvVar("EMAIL_USER"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), cli.EnvVar("EMAIL_PASS"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address (defaults to the SMTP username)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "SchoolHub",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS towards the SMTP relay",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// OTP flags
		&cli.DurationFlag{
			Name:    "otp-ttl",
			Value:   5 * time.Minute,
			Usage:   "Lifetime of a one-time code",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_TTL"), toml.TOML("otp.ttl", configFile)),
		},
		&cli.StringFlag{
			Name:    "otp-policy",
			Value:   PolicyConsume,
			Usage:   "What happens to codes after a successful login (consume, delete)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_POLICY"), toml.TOML("otp.policy", configFile)),
		},
		&cli.BoolFlag{
			Name:    "otp-invalidate-previous",
			Value:   true,
			Usage:   "Retire outstanding codes when a new one is requested",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_INVALIDATE_PREVIOUS"), toml.TOML("otp.invalidate_previous", configFile)),
		},
		&cli.IntFlag{
			Name:    "otp-max-attempts",
			Value:   5,
			Usage:   "Wrong guesses allowed per code",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_MAX_ATTEMPTS"), toml.TOML("otp.max_attempts", configFile)),
		},
		// Rate limit flags
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for throttling code requests (disabled if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("ratelimit.redis_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "otp-rate-limit",
			Value:   3,
			Usage:   "Code requests allowed per email and window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_RATE_LIMIT"), toml.TOML("ratelimit.requests", configFile)),
		},
		&cli.DurationFlag{
			Name:    "otp-rate-window",
			Value:   time.Minute,
			Usage:   "Window for the code request limit",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OTP_RATE_WINDOW"), toml.TOML("ratelimit.window", configFile)),
		},
	}
}
