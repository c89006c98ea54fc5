package run

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kdice/kdice/cli/commands/common"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/search"
	"github.com/kdice/kdice/internal/state"
	"github.com/kdice/kdice/internal/summary"
	"github.com/kdice/kdice/options"
)

// Run debloats the baseline configuration. The accepted configuration and the ledger are
// written to the state directory also when the search stops early.
func Run(ctx context.Context, opts *options.KdiceOptions) error {
	desc, err := common.LoadWorkload(opts, true)
	if err != nil {
		return err
	}

	g, ver, err := common.LoadGraph(opts)
	if err != nil {
		return err
	}

	baseline, err := common.LoadConfig(g, opts.BaselinePath)
	if err != nil {
		return err
	}

	baseline = kconfig.Normalize(g, baseline)

	store, err := state.Open(opts.Logger, opts.StateDir, g)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			opts.Logger.Warnf("Failed to unlock %s: %v", opts.StateDir, err)
		}
	}()

	info := state.RunInfo{
		ID:           uuid.NewString(),
		Started:      time.Now().UTC(),
		KernelSrc:    opts.KernelSrc,
		Arch:         opts.Arch,
		BaselineHash: kconfig.Hash(kconfig.Materialize(g, baseline)),
	}

	if ver != nil {
		info.KernelVersion = ver.String()
	}

	run, err := store.Init(info, opts.Fresh)
	if err != nil {
		return err
	}

	searchOpts := search.Options{
		MaxRounds:    opts.Search.MaxRounds,
		TimeBudget:   opts.Search.TimeBudget,
		MaxGroupSize: opts.Search.MaxGroupSize,
		Parallelism:  opts.Search.Parallelism,
	}

	start := baseline

	round, latest, err := store.Latest()
	if err != nil {
		return err
	}

	if latest != nil {
		opts.Logger.Infof("Resuming after round %d with %d enabled options", round, latest.EnabledCount())

		start = latest
		searchOpts.StartRound = round + 1
		searchOpts.SkipBaselineCheck = true
	}

	oracle, err := common.NewOracle(opts, desc, store.WorkDir(), store.LogDir(), opts.Search.Parallelism)
	if err != nil {
		return err
	}

	opts.Logger.Infof("Debloating %s: %d options, %d enabled", opts.BaselinePath, g.Len(), baseline.EnabledCount())

	driver := search.NewDriver(opts.Logger, g, oracle, store, searchOpts)

	report, runErr := driver.Run(ctx, start)

	results, err := store.SaveFinal(run, baseline, report)
	if err != nil {
		var errs *errors.MultiError

		return errs.Append(runErr, err).ErrorOrNil()
	}

	opts.Logger.Infof("%s: %d -> %d enabled options (%.2f%% removed) after %d validations, see %s",
		report.State, results.BaseSize, results.FinalSize, results.ReductionPercent, results.TotalTests, store.FinalConfigPath())

	if err := summary.New(opts.Writer, report, results).Write(opts.Writer); err != nil {
		opts.Logger.Warnf("Failed to write the run summary: %v", err)
	}

	return runErr
}
