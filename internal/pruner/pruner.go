// Package pruner disables one group of options at a time, bisecting groups the oracle rejects.
package pruner

import (
	"context"
	"slices"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/queue"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/pkg/log"
)

// Result of pruning one group.
type Result struct {
	// Accepted is the baseline with every committed part of the group disabled. It is the
	// baseline itself when nothing was committed.
	Accepted *kconfig.Assignment
	// Verdict passes when at least one option was disabled.
	Verdict validator.Verdict
	Record  Record
}

// Pruner tries to disable groups of options against a validator.
type Pruner struct {
	logger    log.Logger
	graph     *kconfig.Graph
	validator validator.Validator
}

// New returns a Pruner for the given graph.
func New(l log.Logger, g *kconfig.Graph, v validator.Validator) *Pruner {
	return &Pruner{logger: l, graph: g, validator: v}
}

// Candidate returns the baseline with the group's still enabled members disabled and the
// consequences propagated, together with those members. The error is an
// UnsatisfiableDisableError when the group cannot be disabled as a whole.
func (pruner *Pruner) Candidate(baseline *kconfig.Assignment, group grouper.Group) (*kconfig.Assignment, []int, error) {
	members := enabled(baseline, group.Members)
	if len(members) == 0 {
		return baseline, nil, nil
	}

	candidate, err := kconfig.Propagate(pruner.graph, baseline, members)

	return candidate, members, err
}

// Prune disables as much of the group as the validator accepts. The whole group is proposed
// first; when it fails, the members are bisected breadth-first and every half is validated
// against the group's working assignment, that is the baseline plus the halves already
// committed. An error is returned only when the validator cannot be used.
func (pruner *Pruner) Prune(ctx context.Context, baseline *kconfig.Assignment, group grouper.Group) (*Result, error) {
	var result *Result

	err := telemetry.TelemeterFromContext(ctx).Collect(ctx, "prune", map[string]any{
		"group": group.Name,
		"size":  len(group.Members),
	}, func(ctx context.Context) error {
		var err error

		result, err = pruner.prune(ctx, baseline, group)

		return err
	})

	return result, err
}

func (pruner *Pruner) prune(ctx context.Context, baseline *kconfig.Assignment, group grouper.Group) (*Result, error) {
	logger := pruner.logger.WithField(log.FieldKeyGroup, group.Name)

	result := &Result{
		Accepted: baseline,
		Record: Record{
			Group:   group.Name,
			Kind:    group.Kind,
			Members: pruner.graph.Names(group.Members),
		},
	}

	candidate, members, err := pruner.Candidate(baseline, group)

	switch {
	case len(members) == 0:
		result.Record.Outcome = OutcomeSkipped
		logger.Debugf("Skipping group, all members are already disabled")

		return result, nil
	case err != nil:
		var unsat kconfig.UnsatisfiableDisableError
		if !errors.As(err, &unsat) {
			return nil, err
		}

		result.Record.Outcome = OutcomeUnsatisfiable
		result.Record.Reason = unsat.Error()
		result.Record.Kept = pruner.graph.Names(members)
		logger.Debugf("Skipping group: %v", unsat)

		return result, nil
	}

	verdict, err := pruner.probe(ctx, logger, result, baseline, candidate, members)
	if err != nil {
		return nil, err
	}

	result.Verdict = verdict

	switch {
	case verdict.Pass:
		result.Accepted = candidate
		result.Record.Outcome = OutcomeCommitted
	case ctx.Err() != nil:
		result.Record.Outcome = OutcomeCancelled
		result.Record.Reason = ctx.Err().Error()
	case len(members) == 1:
		result.Record.Outcome = OutcomeExhausted
	default:
		if err := pruner.bisect(ctx, logger, result, members); err != nil {
			return nil, err
		}
	}

	result.Record.Disabled = pruner.graph.Names(kconfig.Diff(baseline, result.Accepted))

	for _, id := range members {
		if result.Accepted.Enabled(id) {
			result.Record.Kept = append(result.Record.Kept, pruner.graph.Option(id).Name)
		}
	}

	logger.Debugf("Group %s: %d disabled, %d kept, %d oracle calls",
		result.Record.Outcome, len(result.Record.Disabled), len(result.Record.Kept), result.Record.OracleCalls)

	return result, nil
}

// bisect explores the halves of a failed group in FIFO order.
func (pruner *Pruner) bisect(ctx context.Context, l log.Logger, result *Result, members []int) error {
	failed := result.Verdict
	working := result.Accepted
	committed := false

	work := queue.New(split(members)...)

	for !work.Empty() && ctx.Err() == nil {
		half, _ := work.PopFront()

		// Earlier commits of this group may have propagated some members off already.
		half = enabled(working, half)
		if len(half) == 0 {
			continue
		}

		candidate, err := kconfig.Propagate(pruner.graph, working, half)
		if err != nil {
			var unsat kconfig.UnsatisfiableDisableError
			if !errors.As(err, &unsat) {
				return err
			}

			result.Record.Probes = append(result.Record.Probes, Probe{
				Requested: pruner.graph.Names(half),
				Reason:    unsat.Error(),
			})

			if len(half) > 1 {
				work.PushBack(split(half)...)
			}

			continue
		}

		verdict, err := pruner.probe(ctx, l, result, working, candidate, half)
		if err != nil {
			return err
		}

		switch {
		case verdict.Pass:
			working = candidate
			committed = true
			result.Verdict = verdict
		case len(half) > 1 && ctx.Err() == nil:
			work.PushBack(split(half)...)
		}
	}

	result.Accepted = working

	switch {
	case committed:
		result.Record.Outcome = OutcomePartial
	case ctx.Err() != nil:
		result.Record.Outcome = OutcomeCancelled
		result.Record.Reason = ctx.Err().Error()
		result.Verdict = failed
	default:
		result.Record.Outcome = OutcomeExhausted
		result.Verdict = failed
	}

	return nil
}

// probe validates the candidate and records the proposal.
func (pruner *Pruner) probe(ctx context.Context, l log.Logger, result *Result, from, candidate *kconfig.Assignment, requested []int) (validator.Verdict, error) {
	result.Record.OracleCalls++

	verdict, err := pruner.validator.Validate(ctx, kconfig.Materialize(pruner.graph, candidate))
	if err != nil {
		return verdict, err
	}

	if !verdict.Pass && ctx.Err() != nil {
		verdict = validator.Cancelled()
	}

	disabled := kconfig.Diff(from, candidate)

	result.Record.Probes = append(result.Record.Probes, Probe{
		Requested: pruner.graph.Names(requested),
		Disabled:  pruner.graph.Names(disabled),
		Verdict:   verdict,
		Accepted:  verdict.Pass,
	})

	l.Debugf("Probe %v (%d options off): %s", pruner.graph.Names(requested), len(disabled), verdict)

	return verdict, nil
}

// split halves ids in order, the first half gets the extra element.
func split(ids []int) [][]int {
	mid := (len(ids) + 1) / 2

	return [][]int{slices.Clone(ids[:mid]), slices.Clone(ids[mid:])}
}

func enabled(a *kconfig.Assignment, ids []int) []int {
	var out []int

	for _, id := range ids {
		if a.Enabled(id) {
			out = append(out, id)
		}
	}

	return out
}
