package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kdice/kdice/cli"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/options"
	"github.com/kdice/kdice/pkg/log"
)

// The main entrypoint for kdice
func main() {
	opts := options.NewKdiceOptions()

	defer errors.Recover(checkForErrorsAndExit(opts.Logger))

	ctx, stop := signal.NotifyContext(log.ContextWithLogger(context.Background(), opts.Logger), os.Interrupt, syscall.SIGTERM)

	app := cli.NewApp(opts)
	err := app.RunContext(ctx, os.Args)

	stop()
	checkForErrorsAndExit(opts.Logger)(err)
}

// If there is an error, display it in the console and exit with its exit code. Otherwise, exit 0.
func checkForErrorsAndExit(logger log.Logger) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(0)
		}

		logger.Error(err.Error())

		if errStack := errors.ErrorStack(err); errStack != "" {
			logger.Trace(errStack)
		}

		os.Exit(errors.ExitCode(err, 1))
	}
}
