// Package validate provides the `kdice validate` command that runs the oracle on .config files.
package validate

import (
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "validate"
)

func NewFlags(opts *options.KdiceOptions) []cli.Flag {
	cmdFlags := flags.NewKernelFlags(opts)
	cmdFlags = append(cmdFlags, flags.NewWorkloadFlags(opts)...)

	return append(cmdFlags, flags.NewValidateTimeoutFlag(opts), flags.NewParallelismFlag(opts))
}

func NewCommand(opts *options.KdiceOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Build, boot and test .config files with the workload descriptor's commands.",
		UsageText: "kdice validate [options] CONFIG...",
		Flags:     NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.ShowSubcommandHelp(ctx)
			}

			return Run(ctx.Context, opts, ctx.Args().Slice())
		},
	}
}
