package graph

import (
	"context"

	"github.com/kdice/kdice/cli/commands/common"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
)

func Run(_ context.Context, opts *Options) error {
	if _, err := common.LoadWorkload(opts.KdiceOptions, false); err != nil {
		return err
	}

	g, _, err := common.LoadGraph(opts.KdiceOptions)
	if err != nil {
		return err
	}

	var a *kconfig.Assignment

	if opts.BaselinePath != "" {
		if a, err = common.LoadConfig(g, opts.BaselinePath); err != nil {
			return err
		}
	} else if opts.EnabledOnly {
		return errors.Errorf("--%s requires --config", EnabledOnlyFlagName)
	}

	return kconfig.WriteDot(opts.Writer, g, a, opts.EnabledOnly)
}
