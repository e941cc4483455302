package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/worksync/internal/config"
	"github.com/iudanet/worksync/internal/server"
	"github.com/iudanet/worksync/internal/server/jwt"
	"github.com/iudanet/worksync/internal/server/storage/sqlite"
	"github.com/iudanet/worksync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	noAuth := flag.Bool("no-auth", false, "Disable token authentication")
	issueToken := flag.String("issue-token", "", "Print an access token for the workspace ('*' for all) and exit")
	subject := flag.String("subject", "cli", "Token subject (device name) for -issue-token")
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *noAuth {
		cfg.RequireAuth = false
	}
	// Секрет из окружения, чтобы не хранить его в файле
	if secret := os.Getenv("WORKSYNC_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var tokens *jwt.Service
	if cfg.JWTSecret != "" {
		tokens = jwt.NewService(cfg.JWTSecret, cfg.TokenTTL)
	}

	if *issueToken != "" {
		return printToken(tokens, *issueToken, *subject)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	srv, err := server.New(cfg, store, tokens, logger, Version)
	if err != nil {
		return err
	}

	logger.Info("Starting worksync server", "version", Version, "db", cfg.DBPath)
	return srv.Run(ctx)
}

func printToken(tokens *jwt.Service, workspace, subject string) error {
	if tokens == nil {
		return fmt.Errorf("jwt_secret is required to issue tokens")
	}
	if workspace != jwt.AllWorkspaces {
		if err := validation.ValidateWorkspaceKey(workspace); err != nil {
			return err
		}
	}

	token, err := tokens.IssueToken(workspace, subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func printVersion() {
	fmt.Printf("Worksync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
