package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"compliance-rag/internal/app"
	"compliance-rag/internal/cli"
	"compliance-rag/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command output goes to stdout, logs to stderr.
	slog.SetDefault(cfg.NewLogger(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (*app.App, error) {
		return app.New(ctx, cfg)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
