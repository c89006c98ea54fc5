package search

import (
	"context"
	"iter"
	"slices"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/pruner"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/internal/worker"
	"github.com/kdice/kdice/pkg/log"
)

// speculation is the whole-group probe of one group of a batch.
type speculation struct {
	candidate *kconfig.Assignment
	group     grouper.Group
	members   []int
	verdict   validator.Verdict
}

// speculate prunes the round's groups in batches of mutually independent groups. The
// whole-group candidates of a batch are validated concurrently against the same
// configuration. When two or more pass, their union is validated and committed on PASS;
// every other group of the batch goes through the sequential pruner, which finds the
// speculative verdicts in the cache.
func (driver *Driver) speculate(ctx context.Context, current *kconfig.Assignment, groups iter.Seq[grouper.Group], report *RoundReport) (*kconfig.Assignment, error) {
	pool := worker.NewWorkerPool(driver.opts.Parallelism)
	defer pool.Stop()

	next, stop := iter.Pull(groups)
	defer stop()

	var pending []grouper.Group

	for ctx.Err() == nil {
		batch, more := driver.nextBatch(current, &pending, next)
		if len(batch) == 0 {
			break
		}

		var err error

		current, err = driver.runBatch(ctx, pool, current, batch, report)
		if err != nil {
			return current, err
		}

		if !more && len(pending) == 0 {
			break
		}
	}

	return current, nil
}

// nextBatch takes up to Parallelism groups in grouper order that are pairwise independent.
// A group adjacent to a group of the batch ends the batch and is kept for the next one.
func (driver *Driver) nextBatch(current *kconfig.Assignment, pending *[]grouper.Group, next func() (grouper.Group, bool)) ([]grouper.Group, bool) {
	var (
		batch     []grouper.Group
		neighbors = make(map[int]bool)
	)

	for len(batch) < driver.opts.Parallelism {
		var (
			group grouper.Group
			ok    bool
		)

		if len(*pending) > 0 {
			group, *pending = (*pending)[0], (*pending)[1:]
			ok = true
		} else {
			group, ok = next()
		}

		if !ok {
			return batch, false
		}

		if slices.ContainsFunc(group.Members, func(id int) bool { return neighbors[id] }) {
			*pending = append(*pending, group)
			break
		}

		batch = append(batch, group)

		for _, id := range group.Members {
			neighbors[id] = true

			for _, edge := range driver.graph.Needs(id) {
				neighbors[edge.To] = true
			}

			for _, edge := range driver.graph.Dependents(id) {
				if current.Enabled(edge.From) {
					neighbors[edge.From] = true
				}
			}
		}
	}

	return batch, true
}

func (driver *Driver) runBatch(ctx context.Context, pool *worker.Pool, current *kconfig.Assignment, batch []grouper.Group, report *RoundReport) (*kconfig.Assignment, error) {
	if len(batch) == 1 {
		return driver.prune(ctx, current, batch[0], report)
	}

	specs := make([]*speculation, 0, len(batch))

	for _, group := range batch {
		candidate, members, err := driver.pruner.Candidate(current, group)
		if err != nil || len(members) == 0 {
			// Skipped and unsatisfiable groups are recorded by the sequential pruner.
			continue
		}

		specs = append(specs, &speculation{group: group, candidate: candidate, members: members})
	}

	for _, spec := range specs {
		pool.Submit(ctx, func(ctx context.Context, slot int) error {
			verdict, err := driver.cache.Validate(ctx, kconfig.Materialize(driver.graph, spec.candidate))
			if err != nil {
				return err
			}

			driver.logger.WithFields(log.Fields{
				log.FieldKeyGroup: spec.group.Name,
				log.FieldKeySlot:  slot,
			}).Debugf("Speculative probe: %s", verdict)

			spec.verdict = verdict

			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return current, err
	}

	var passed []*speculation

	for _, spec := range specs {
		if spec.verdict.Pass {
			passed = append(passed, spec)
		}
	}

	merged := make(map[string]bool)

	if len(passed) > 1 {
		accepted, err := driver.merge(ctx, current, passed, report)
		if err != nil {
			return current, err
		}

		if accepted != nil {
			current = accepted

			for _, spec := range passed {
				merged[spec.group.Name] = true
			}
		}
	}

	for _, group := range batch {
		if merged[group.Name] || ctx.Err() != nil {
			continue
		}

		var err error

		current, err = driver.prune(ctx, current, group, report)
		if err != nil {
			return current, err
		}
	}

	return current, nil
}

// merge validates the union of the passing candidates. It returns nil when the union fails
// or cannot be propagated.
func (driver *Driver) merge(ctx context.Context, current *kconfig.Assignment, passed []*speculation, report *RoundReport) (*kconfig.Assignment, error) {
	var members []int
	for _, spec := range passed {
		members = append(members, spec.members...)
	}

	union, err := kconfig.Propagate(driver.graph, current, members)
	if err != nil {
		var unsat kconfig.UnsatisfiableDisableError
		if errors.As(err, &unsat) {
			return nil, nil
		}

		return nil, err
	}

	report.BatchCalls++

	verdict, err := driver.cache.Validate(ctx, kconfig.Materialize(driver.graph, union))
	if err != nil {
		return nil, err
	}

	if !verdict.Pass || ctx.Err() != nil {
		driver.logger.Debugf("Merged batch of %d groups fails: %s", len(passed), verdict)
		return nil, nil
	}

	for _, spec := range passed {
		report.add(pruner.Record{
			Group:    spec.group.Name,
			Kind:     spec.group.Kind,
			Outcome:  pruner.OutcomeCommitted,
			Members:  driver.graph.Names(spec.group.Members),
			Disabled: driver.graph.Names(kconfig.Diff(current, spec.candidate)),
			Probes: []pruner.Probe{{
				Requested: driver.graph.Names(spec.members),
				Disabled:  driver.graph.Names(kconfig.Diff(current, spec.candidate)),
				Verdict:   spec.verdict,
				Accepted:  true,
			}},
			OracleCalls: 1,
		})
	}

	return union, nil
}
