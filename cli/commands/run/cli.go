// Package run provides the `kdice run` command, the debloating search itself.
package run

import (
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "run"
)

func NewFlags(opts *options.KdiceOptions) []cli.Flag {
	cmdFlags := []cli.Flag{flags.NewBaselineFlag(opts, "The .config to debloat.", true)}
	cmdFlags = append(cmdFlags, flags.NewKernelFlags(opts)...)
	cmdFlags = append(cmdFlags, flags.NewWorkloadFlags(opts)...)

	return append(cmdFlags, flags.NewSearchFlags(opts)...)
}

func NewCommand(opts *options.KdiceOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Disable every option of a kernel configuration the workload does not need.",
		UsageText: "kdice run --baseline .config [--workload kdice.hcl] [--kernel-src DIR] [options]",
		Flags:     NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, opts)
		},
	}
}
