package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesm/gcg/cmd/gcg/cmd"
)

const (
	exitCodeNoMatches   = 1
	exitCodeError       = 2
	exitCodeInterrupted = 130 // 128 + SIGINT, mirrors shell convention
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case isSignalCanceled(err, ctx):
		return exitCodeInterrupted
	case errors.Is(err, cmd.ErrNoMatches):
		return exitCodeNoMatches
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}
}

func isSignalCanceled(err error, ctx context.Context) bool {
	return errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled
}
