// Package main is the entry point for the wishlist server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// One-off helper:
//
//	server -hash-password 's3cret'   # prints a bcrypt hash for DEMO_PASSWORD_HASH
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/wishlist/internal/auth"
	"github.com/sakif/wishlist/internal/config"
	"github.com/sakif/wishlist/internal/server"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash of the given demo password and exit")
	envFile := flag.String("env-file", ".env", "optional file of KEY=value pairs loaded before the environment is read")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.NewPasswordService().Hash(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// === 1. CONFIGURATION ===
	// Values already in the environment win over the .env file.
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := config.LoadDotEnv(*envFile); err != nil {
		bootLogger.Error("failed to read env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the threshold; the default is Info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.DemoAuth && cfg.DemoPasswordHash == "" {
		logger.Warn("demo sign-in is open to anyone; set DEMO_PASSWORD_HASH to require a password")
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
