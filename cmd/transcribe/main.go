package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"localscribe/internal/cli"
	"localscribe/internal/config"
)

func main() {
	// Load .env (skipped when missing) and the environment
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.NewRunner(cli.ModeTranscribe, cfg).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
