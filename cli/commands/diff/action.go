package diff

import (
	"context"
	"fmt"

	"github.com/kdice/kdice/cli/commands/common"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/options"
)

// Run prints `-NAME` for options only enabled in oldPath and `+NAME` for options only enabled
// in newPath, in Kconfig order.
func Run(_ context.Context, opts *options.KdiceOptions, oldPath, newPath string) error {
	if _, err := common.LoadWorkload(opts, false); err != nil {
		return err
	}

	g, _, err := common.LoadGraph(opts)
	if err != nil {
		return err
	}

	oldConfig, err := common.LoadConfig(g, oldPath)
	if err != nil {
		return err
	}

	newConfig, err := common.LoadConfig(g, newPath)
	if err != nil {
		return err
	}

	return Write(opts, g, oldConfig, newConfig)
}

// Write prints the difference of two assignments.
func Write(opts *options.KdiceOptions, g *kconfig.Graph, oldConfig, newConfig *kconfig.Assignment) error {
	removed, added := 0, 0

	for _, id := range kconfig.Diff(oldConfig, newConfig) {
		sign := "+"
		if oldConfig.Enabled(id) {
			sign = "-"
			removed++
		} else {
			added++
		}

		if _, err := fmt.Fprintf(opts.Writer, "%s%s\n", sign, g.Option(id).Name); err != nil {
			return errors.New(err)
		}
	}

	opts.Logger.Infof("%d removed, %d added", removed, added)

	return nil
}
