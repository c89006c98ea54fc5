// Package commands represents the kdice commands.
package commands

import (
	"github.com/kdice/kdice/cli/commands/diff"
	"github.com/kdice/kdice/cli/commands/graph"
	"github.com/kdice/kdice/cli/commands/groups"
	"github.com/kdice/kdice/cli/commands/run"
	"github.com/kdice/kdice/cli/commands/validate"
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

// NewCommands returns the kdice commands in the order they are listed in the help.
func NewCommands(opts *options.KdiceOptions) []*cli.Command {
	return []*cli.Command{
		run.NewCommand(opts),
		validate.NewCommand(opts),
		groups.NewCommand(opts),
		graph.NewCommand(opts),
		diff.NewCommand(opts),
	}
}
