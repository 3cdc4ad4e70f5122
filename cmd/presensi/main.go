package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/perbu/presensi/internal/cli"
	"github.com/perbu/presensi/internal/config"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	var c cli.CLI
	kctx := kong.Parse(&c,
		kong.Name("presensi"),
		kong.Description("KKN attendance bot: verification checks, advisory questions and task history."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	if c.Debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := slog.LevelWarn
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case c.Verbose:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cctx := &cli.Context{
		Ctx:     ctx,
		Config:  cfg,
		Logger:  logger,
		Out:     os.Stdout,
		Verbose: c.Verbose,
		Quiet:   c.Quiet,
	}
	defer cctx.Close()

	return kctx.Run(cctx)
}
