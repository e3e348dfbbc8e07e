// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/database"
	"codeberg.org/oliverandrich/schoolhub/internal/handlers"
	"codeberg.org/oliverandrich/schoolhub/internal/i18n"
	"codeberg.org/oliverandrich/schoolhub/internal/middleware"
	"codeberg.org/oliverandrich/schoolhub/internal/ratelimit"
	"codeberg.org/oliverandrich/schoolhub/internal/repository"
	authsvc "codeberg.org/oliverandrich/schoolhub/internal/services/auth"
	"codeberg.org/oliverandrich/schoolhub/internal/services/email"
	"codeberg.org/oliverandrich/schoolhub/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// App bundles the services the HTTP layer depends on.
type App struct {
	Repo     *repository.Repository
	Tokens   *token.Service
	Auth     *authsvc.Service
	ReturnTo *middleware.ReturnTo
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"dev", cfg.Server.DevMode,
	)

	// Database, migrations run on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)
	if n, purgeErr := repo.DeleteExpiredCodes(ctx, time.Now()); purgeErr != nil {
		slog.Warn("failed to purge expired codes", "error", purgeErr)
	} else if n > 0 {
		slog.Info("purged expired codes", "count", n)
	}

	tokens, err := token.New(&cfg.Session, cfg.Server.DevMode)
	if err != nil {
		return fmt.Errorf("failed to set up session tokens: %w", err)
	}

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up mailer: %w", err)
	}

	opts := []authsvc.Option{}
	if cfg.RateLimit.RedisURL != "" {
		client, redisErr := ratelimit.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if redisErr != nil {
			return fmt.Errorf("failed to connect to redis: %w", redisErr)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Error("failed to close redis client", "error", closeErr)
			}
		}()
		opts = append(opts, authsvc.WithLimiter(ratelimit.NewRedis(client, cfg.RateLimit.Requests, cfg.RateLimit.Window)))
		slog.Info("otp throttle enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	}

	app := &App{
		Repo:     repo,
		Tokens:   tokens,
		Auth:     authsvc.NewService(repo, tokens, dispatcher, cfg.OTP, opts...),
		ReturnTo: middleware.NewReturnTo(nil, cfg.Session.CookieSecure),
	}

	return startWithGracefulShutdown(ctx, New(cfg, app), cfg)
}

// New builds the Echo instance with middleware and routes.
func New(cfg *config.Config, app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, app)
	setupRoutes(e, app)
	return e
}

// newDispatcher picks the SMTP relay, or the log in dev mode without one.
func newDispatcher(cfg *config.Config) (email.Dispatcher, error) {
	if cfg.SMTP.Host == "" && cfg.Server.DevMode {
		slog.Warn("no smtp host configured, login codes are written to the log")
		return email.LogDispatcher{Logger: slog.Default()}, nil
	}
	return email.NewService(&cfg.SMTP)
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
