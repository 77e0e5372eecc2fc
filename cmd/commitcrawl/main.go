package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
)

const (
	exitFatal    = 1
	exitUsage    = 2
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := App().RunContext(ctx, os.Args); err != nil {
		logger.Get().Error().Err(err).Stringer("code", perr.CodeOf(err)).Msg("commitcrawl failed")
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to a process status
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitCanceled
	case perr.IsCode(err, perr.ErrorCodeInvalidArgument):
		return exitUsage
	default:
		return exitFatal
	}
}
