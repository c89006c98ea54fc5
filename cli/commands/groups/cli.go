// Package groups provides the `kdice groups` command, a dry run listing the groups the next
// round would try to disable.
package groups

import (
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "groups"

	JSONFlagName = "json"
)

type Options struct {
	*options.KdiceOptions
	JSON bool
}

func NewFlags(opts *Options) []cli.Flag {
	cmdFlags := []cli.Flag{
		flags.NewBaselineFlag(opts.KdiceOptions, "The .config to group.", true),
		&cli.BoolFlag{
			Name:        JSONFlagName,
			EnvVars:     flags.Prefix{flags.KdicePrefix}.EnvVars("groups-json"),
			Destination: &opts.JSON,
			Usage:       "Print the groups as JSON.",
		},
		&cli.IntFlag{
			Name:        flags.GroupSizeFlagName,
			Destination: &opts.Search.MaxGroupSize,
			Usage:       "Skip SCC and menu groups with more options, 0 means no limit. Leaf and single groups are never skipped.",
		},
	}
	cmdFlags = append(cmdFlags, flags.NewKernelFlags(opts.KdiceOptions)...)

	return append(cmdFlags, flags.NewWorkloadFlags(opts.KdiceOptions)...)
}

func NewCommand(opts *options.KdiceOptions) *cli.Command {
	cmdOpts := &Options{KdiceOptions: opts}

	return &cli.Command{
		Name:  CommandName,
		Usage: "List the groups of options the next round would try to disable.",
		Flags: NewFlags(cmdOpts),
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, cmdOpts)
		},
	}
}
