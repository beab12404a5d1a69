package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/app"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

func main() {
	// Load configuration from flags, environment and config file
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		switch {
		case errors.Is(err, pflag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, config.ErrFlags):
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Debug)
	logger.Debug("Starting xstatic-server...",
		"addr", cfg.Addr(),
		"root", cfg.Root,
		"tls_mode", cfg.TLSMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Startup failed", "error", err)
	}

	// Start serving (blocking)
	if err := a.Serve(ctx); err != nil {
		logger.Fatal("Server error", "error", err)
	}
	logger.Info("Shutdown complete")
}
