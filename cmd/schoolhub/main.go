// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/oliverandrich/schoolhub/internal/config"
	"codeberg.org/oliverandrich/schoolhub/internal/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// A missing .env is fine, the environment may be set elsewhere.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:    "schoolhub",
		Usage:   "School directory with email code login",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web server (default)",
				Action: server.Run,
			},
			migrateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
