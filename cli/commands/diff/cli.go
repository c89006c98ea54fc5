// Package diff provides the `kdice diff` command that compares the enabled options of two
// .config files.
package diff

import (
	"github.com/kdice/kdice/cli/flags"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	CommandName = "diff"
)

func NewFlags(opts *options.KdiceOptions) []cli.Flag {
	return append(flags.NewKernelFlags(opts), flags.NewWorkloadFlags(opts)...)
}

func NewCommand(opts *options.KdiceOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Show the options enabled in only one of two .config files.",
		UsageText: "kdice diff [options] OLD NEW",
		Flags:     NewFlags(opts),
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return cli.ShowSubcommandHelp(ctx)
			}

			return Run(ctx.Context, opts, ctx.Args().Get(0), ctx.Args().Get(1))
		},
	}
}
