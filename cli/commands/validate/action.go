package validate

import (
	"context"
	"fmt"
	"os"

	"github.com/kdice/kdice/cli/commands/common"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/state"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/options"
	"golang.org/x/sync/errgroup"
)

// Run validates every config file, up to Parallelism at the same time.
func Run(ctx context.Context, opts *options.KdiceOptions, paths []string) error {
	desc, err := common.LoadWorkload(opts, true)
	if err != nil {
		return err
	}

	store, err := state.Open(opts.Logger, opts.StateDir, nil)
	if err != nil {
		return err
	}

	defer store.Close() //nolint:errcheck

	slots := min(opts.Search.Parallelism, len(paths))

	oracle, err := common.NewOracle(opts, desc, store.WorkDir(), store.LogDir(), slots)
	if err != nil {
		return err
	}

	return Validate(ctx, opts, oracle, paths, slots)
}

// Validate runs v on every file and prints one verdict line per file in argument order.
func Validate(ctx context.Context, opts *options.KdiceOptions, v validator.Validator, paths []string, parallelism int) error {
	verdicts := make([]validator.Verdict, len(paths))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(max(parallelism, 1))

	for i, path := range paths {
		group.Go(func() error {
			text, err := os.ReadFile(path)
			if err != nil {
				return errors.New(err)
			}

			verdict, err := v.Validate(ctx, string(text))
			if err != nil {
				return err
			}

			verdicts[i] = verdict

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0

	for i, verdict := range verdicts {
		if !verdict.Pass {
			failed++
		}

		line := fmt.Sprintf("%s: %s (%s)", paths[i], verdict, verdict.Duration.Round(1e6))
		if verdict.LogRef != "" {
			line += " " + verdict.LogRef
		}

		if _, err := fmt.Fprintln(opts.Writer, line); err != nil {
			return errors.New(err)
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d configurations failed validation", failed, len(paths))
	}

	return nil
}
