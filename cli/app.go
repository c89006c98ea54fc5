// Package cli configures the kdice CLI app and its commands.
package cli

import (
	"context"
	"time"

	"github.com/kdice/kdice/cli/commands"
	"github.com/kdice/kdice/cli/commands/run"
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/options"
	"github.com/kdice/kdice/pkg/log"
	"github.com/urfave/cli/v2"
)

const (
	AppName = "kdice"

	telemetryShutdownTimeout = 5 * time.Second
)

// App is the kdice CLI app together with the telemeter created by its Before hook.
type App struct {
	*cli.App
	opts     *options.KdiceOptions
	tlm      *telemetry.Telemeter
	logLevel string
}

// NewApp creates the kdice CLI App.
func NewApp(opts *options.KdiceOptions) *App {
	app := &App{App: cli.NewApp(), opts: opts}

	app.Name = AppName
	app.Usage = "Shrinks a Linux kernel configuration to the options a workload needs to build, boot and pass its tests."
	app.UsageText = "kdice <command> [options]"
	app.Version = Version
	app.Writer = opts.Writer
	app.ErrWriter = opts.ErrWriter
	app.Flags = flags.NewGlobalFlags(opts, &app.logLevel)
	app.Commands = commands.NewCommands(opts)
	app.DefaultCommand = run.CommandName
	app.Before = app.before
	app.After = app.after
	app.OsExiter = func(int) {}
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.EnableBashCompletion = true

	return app
}

// RunContext runs the app and flushes the telemetry, whatever the outcome.
func (app *App) RunContext(ctx context.Context, args []string) error {
	err := app.App.RunContext(ctx, args)

	if shutdownErr := app.shutdownTelemetry(); shutdownErr != nil {
		app.opts.Logger.Debugf("Telemetry shutdown: %v", shutdownErr)
	}

	return err
}

func (app *App) before(ctx *cli.Context) error {
	opts := app.opts

	if app.logLevel != "" {
		level, err := log.ParseLevel(app.logLevel)
		if err != nil {
			return err
		}

		opts.LogLevel = level
	}

	formatter, err := log.FormatterByName(opts.LogFormat, opts.ErrWriter)
	if err != nil {
		return errors.New(err)
	}

	opts.Logger.SetOptions(log.WithLevel(opts.LogLevel), log.WithOutput(opts.ErrWriter), log.WithFormatter(formatter))
	opts.Logger.Debugf("kdice version %s", app.Version)

	tlm, err := telemetry.NewTelemeter(ctx.Context, app.Name, app.Version, opts.ErrWriter, &telemetry.Options{
		TraceExporter:  opts.TelemetryExporter,
		MetricExporter: opts.TelemetryExporter,
	})
	if err != nil {
		return err
	}

	app.tlm = tlm

	ctx.Context = log.ContextWithLogger(ctx.Context, opts.Logger)
	ctx.Context = telemetry.ContextWithTelemeter(ctx.Context, tlm)
	ctx.Context = context.WithValue(ctx.Context, options.ContextKey, opts)

	return nil
}

func (app *App) after(*cli.Context) error {
	return app.shutdownTelemetry()
}

func (app *App) shutdownTelemetry() error {
	if app.tlm == nil {
		return nil
	}

	tlm := app.tlm
	app.tlm = nil

	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()

	return tlm.Shutdown(ctx)
}
