// Package graph provides the `kdice graph` command that prints the option dependency graph
// in DOT format.
package graph

import (
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "graph"

	EnabledOnlyFlagName = "enabled-only"
)

// Options of the graph command.
type Options struct {
	*options.KdiceOptions
	EnabledOnly bool
}

func NewFlags(opts *Options) []cli.Flag {
	cmdFlags := []cli.Flag{
		flags.NewBaselineFlag(opts.KdiceOptions, "Color the graph by the options enabled in this .config.", false),
		&cli.BoolFlag{
			Name:        EnabledOnlyFlagName,
			EnvVars:     flags.Prefix{flags.KdicePrefix}.EnvVars(EnabledOnlyFlagName),
			Destination: &opts.EnabledOnly,
			Usage:       "Only draw the options enabled in the --config file.",
		},
	}
	cmdFlags = append(cmdFlags, flags.NewKernelFlags(opts.KdiceOptions)...)

	return append(cmdFlags, flags.NewWorkloadFlags(opts.KdiceOptions)...)
}

func NewCommand(opts *options.KdiceOptions) *cli.Command {
	cmdOpts := &Options{KdiceOptions: opts}

	return &cli.Command{
		Name:  CommandName,
		Usage: "Print the Kconfig dependency graph in DOT format.",
		Flags: NewFlags(cmdOpts),
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, cmdOpts)
		},
	}
}
