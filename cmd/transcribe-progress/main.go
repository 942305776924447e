package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"localscribe/internal/cli"
	"localscribe/internal/config"
)

// Same as transcribe, with an in-place progress line while decoding
func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.NewRunner(cli.ModeProgress, cfg).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
