// Package search drives the pruning rounds until the configuration stops shrinking.
//
// Every round groups the enabled options of the current configuration and prunes the groups
// one after the other, each against the configuration left by the previous commits. A round
// without any commit is a fixpoint and ends the search.
package search

import (
	"context"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/pruner"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/pkg/log"
)

// Options of a search.
type Options struct {
	// MaxRounds of 0 means unlimited.
	MaxRounds int
	// TimeBudget of 0 means unlimited.
	TimeBudget   time.Duration
	MaxGroupSize int
	// Parallelism above 1 probes independent groups speculatively.
	Parallelism int
	// StartRound is the number of the first round, rounds before it were persisted by an
	// earlier run.
	StartRound int
	// SkipBaselineCheck is set when resuming from a configuration that already passed.
	SkipBaselineCheck bool
}

// Persister saves the accepted configuration at the end of every round.
type Persister interface {
	SaveRound(round *RoundReport, accepted *kconfig.Assignment) error
}

// Driver runs the search state machine.
type Driver struct {
	logger    log.Logger
	graph     *kconfig.Graph
	cache     *validator.Cache
	pruner    *pruner.Pruner
	persister Persister
	state     State
	opts      Options
}

// NewDriver returns a driver validating through v. Verdicts are cached for the whole run.
// persister may be nil.
func NewDriver(l log.Logger, g *kconfig.Graph, v validator.Validator, persister Persister, opts Options) *Driver {
	cache, ok := v.(*validator.Cache)
	if !ok {
		cache = validator.NewCache(v)
	}

	if opts.StartRound <= 0 {
		opts.StartRound = 1
	}

	return &Driver{
		logger:    l,
		graph:     g,
		cache:     cache,
		pruner:    pruner.New(l, g, cache),
		persister: persister,
		state:     StateStart,
		opts:      opts,
	}
}

// State returns the current state of the driver.
func (driver *Driver) State() State {
	return driver.state
}

// Run searches from the baseline until convergence or a terminal error. The returned report
// is never nil and holds the last accepted configuration, also when an error is returned.
func (driver *Driver) Run(ctx context.Context, baseline *kconfig.Assignment) (*Report, error) {
	started := time.Now()

	report := &Report{
		Final:           baseline,
		BaselineEnabled: baseline.EnabledCount(),
	}

	budgetCtx := ctx

	if driver.opts.TimeBudget > 0 {
		var cancel context.CancelFunc

		budgetCtx, cancel = context.WithTimeout(ctx, driver.opts.TimeBudget)
		defer cancel()
	}

	err := driver.run(ctx, budgetCtx, baseline, report)

	report.State = driver.state
	report.FinalEnabled = report.Final.EnabledCount()
	report.Duration = time.Since(started)
	report.OracleCalls = driver.cache.Misses()
	report.CacheHits = driver.cache.Hits()

	return report, err
}

func (driver *Driver) run(ctx, budgetCtx context.Context, baseline *kconfig.Assignment, report *Report) error {
	driver.state = StateStart

	if !driver.opts.SkipBaselineCheck {
		verdict, err := driver.cache.Validate(budgetCtx, kconfig.Materialize(driver.graph, baseline))
		if err != nil {
			driver.state = StateAborted
			return err
		}

		report.BaselineVerdict = &verdict

		if stop := driver.interrupted(ctx, budgetCtx, 0); stop != nil {
			return stop
		}

		if !verdict.Pass {
			driver.state = StateInvalidBaseline
			return errors.New(InvalidBaselineError{Verdict: verdict})
		}

		driver.logger.Infof("Baseline passes with %d enabled options", baseline.EnabledCount())
	}

	current := baseline

	for round := driver.opts.StartRound; ; round++ {
		done := round - driver.opts.StartRound

		if driver.opts.MaxRounds > 0 && done >= driver.opts.MaxRounds {
			driver.state = StateBudgetExhausted
			return errors.New(BudgetExhaustedError{Rounds: done, Reason: "round budget used"})
		}

		if stop := driver.interrupted(ctx, budgetCtx, done); stop != nil {
			return stop
		}

		roundReport := &RoundReport{Round: round, Started: time.Now(), EnabledBefore: current.EnabledCount()}

		var err error

		telemErr := telemetry.TelemeterFromContext(ctx).Collect(budgetCtx, "round", map[string]any{
			"round":   round,
			"enabled": roundReport.EnabledBefore,
		}, func(roundCtx context.Context) error {
			current, err = driver.round(roundCtx, current, roundReport)
			return err
		})
		if err == nil {
			err = telemErr
		}

		roundReport.EnabledAfter = current.EnabledCount()
		roundReport.Duration = time.Since(roundReport.Started)
		roundReport.Interrupted = budgetCtx.Err() != nil

		report.Rounds = append(report.Rounds, roundReport)
		report.Final = current

		if saveErr := driver.save(roundReport, current); saveErr != nil {
			driver.state = StateAborted
			return saveErr
		}

		if err != nil {
			driver.state = StateAborted
			return err
		}

		driver.logger.WithField(log.FieldKeyRound, round).Infof(
			"Round %d: %d groups, %d committed, %d exhausted, %d unsatisfiable, %d -> %d enabled options",
			round, roundReport.Groups, roundReport.Committed, roundReport.Exhausted, roundReport.Unsatisfiable,
			roundReport.EnabledBefore, roundReport.EnabledAfter)

		if stop := driver.interrupted(ctx, budgetCtx, done+1); stop != nil {
			return stop
		}

		if roundReport.Committed == 0 {
			driver.state = StateConverged
			driver.logger.Infof("Converged after %d round(s)", done+1)

			return nil
		}
	}
}

// round prunes every group of the current configuration and returns the configuration
// accepted at the end of the round.
func (driver *Driver) round(ctx context.Context, current *kconfig.Assignment, report *RoundReport) (*kconfig.Assignment, error) {
	driver.state = StateGroupingRound
	groups := grouper.Groups(driver.graph, current, grouper.Options{MaxGroupSize: driver.opts.MaxGroupSize})

	driver.state = StatePruningRound

	if driver.opts.Parallelism > 1 {
		return driver.speculate(ctx, current, groups, report)
	}

	for group := range groups {
		if ctx.Err() != nil {
			break
		}

		var err error

		current, err = driver.prune(ctx, current, group, report)
		if err != nil {
			return current, err
		}
	}

	return current, nil
}

func (driver *Driver) prune(ctx context.Context, current *kconfig.Assignment, group grouper.Group, report *RoundReport) (*kconfig.Assignment, error) {
	result, err := driver.pruner.Prune(ctx, current, group)
	if err != nil {
		return current, err
	}

	report.add(result.Record)

	return result.Accepted, nil
}

// interrupted returns the error of a context that ended the search, nil when both are alive.
func (driver *Driver) interrupted(ctx, budgetCtx context.Context, rounds int) error {
	if err := ctx.Err(); err != nil {
		driver.state = StateAborted
		return errors.New(err)
	}

	if budgetCtx.Err() != nil {
		driver.state = StateBudgetExhausted
		return errors.New(BudgetExhaustedError{Rounds: rounds, Reason: "time budget used"})
	}

	return nil
}

func (driver *Driver) save(round *RoundReport, accepted *kconfig.Assignment) error {
	if driver.persister == nil {
		return nil
	}

	return driver.persister.SaveRound(round, accepted)
}
