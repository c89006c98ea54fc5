package pruner_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/pruner"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOracle passes a config when accept returns true for its enabled symbols.
type fakeOracle struct {
	accept func(enabled map[string]bool) bool
	calls  [][]string
}

func (oracle *fakeOracle) Validate(ctx context.Context, text string) (validator.Verdict, error) {
	enabled := make(map[string]bool)

	var names []string

	for _, line := range strings.Split(text, "\n") {
		name, val, ok := strings.Cut(line, "=")
		if !ok || strings.HasPrefix(line, "#") || val == "n" {
			continue
		}

		name = strings.TrimPrefix(name, "CONFIG_")
		enabled[name] = true
		names = append(names, name)
	}

	oracle.calls = append(oracle.calls, names)

	if ctx.Err() != nil {
		return validator.Cancelled(), nil
	}

	if oracle.accept(enabled) {
		return validator.Passed(), nil
	}

	return validator.Failed(validator.StageTest), nil
}

func setup(t *testing.T, src string, enabled ...string) (*kconfig.Graph, *kconfig.Assignment) {
	t.Helper()

	g, err := kconfig.Parse(log.New(), "Kconfig", []byte(src))
	require.NoError(t, err)

	values := make(map[string]string, len(enabled))
	for _, name := range enabled {
		values[name] = "y"
	}

	return g, kconfig.NewAssignment(g, values)
}

func independent(names ...string) string {
	var sb strings.Builder

	for _, name := range names {
		fmt.Fprintf(&sb, "config %s\n\tbool \"%s\"\n", name, strings.ToLower(name))
	}

	return sb.String()
}

func group(g *kconfig.Graph, names ...string) grouper.Group {
	return grouper.Group{Name: "test", Kind: grouper.KindMenu, Members: g.IDs(names...)}
}

func probeRequests(record pruner.Record) [][]string {
	requests := make([][]string, 0, len(record.Probes))
	for _, probe := range record.Probes {
		requests = append(requests, probe.Requested)
	}

	return requests
}

func TestPruneBisectsUnsafeMember(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B", "C"), "A", "B", "C")
	oracle := &fakeOracle{accept: func(enabled map[string]bool) bool { return enabled["A"] }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "A", "B", "C"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomePartial, result.Record.Outcome)
	assert.True(t, result.Verdict.Pass)
	assert.Equal(t, []string{"A"}, g.Names(result.Accepted.EnabledIDs()))
	assert.Equal(t, []string{"B", "C"}, result.Record.Disabled)
	assert.Equal(t, []string{"A"}, result.Record.Kept)
	assert.Equal(t, 5, result.Record.OracleCalls)
	assert.Equal(t, [][]string{{"A", "B", "C"}, {"A", "B"}, {"C"}, {"A"}, {"B"}}, probeRequests(result.Record))

	// Every probe after the commit of C is validated with C already off.
	assert.Equal(t, []string{"B"}, oracle.calls[3])
	assert.Equal(t, []string{"A"}, oracle.calls[4])
}

func TestPruneCommitsWholeGroup(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B", "C"), "A", "B", "C")
	oracle := &fakeOracle{accept: func(map[string]bool) bool { return true }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "A", "B", "C"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeCommitted, result.Record.Outcome)
	assert.Equal(t, 1, result.Record.OracleCalls)
	assert.Empty(t, result.Accepted.EnabledIDs())
	assert.Equal(t, 3, baseline.EnabledCount(), "baseline must not change")
}

func TestPruneBisectionDisablesExactlySafeSubset(t *testing.T) {
	t.Parallel()

	all := []string{"O1", "O2", "O3", "O4", "O5", "O6", "O7", "O8"}

	testCases := []struct {
		name string
		safe []string
	}{
		{name: "none", safe: nil},
		{name: "one", safe: []string{"O5"}},
		{name: "all but one", safe: []string{"O1", "O2", "O3", "O4", "O6", "O7", "O8"}},
		{name: "alternating", safe: []string{"O1", "O3", "O5", "O7"}},
		{name: "first half", safe: []string{"O1", "O2", "O3", "O4"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g, baseline := setup(t, independent(all...), all...)

			safe := make(map[string]bool, len(tc.safe))
			for _, name := range tc.safe {
				safe[name] = true
			}

			oracle := &fakeOracle{accept: func(enabled map[string]bool) bool {
				for _, name := range all {
					if !safe[name] && !enabled[name] {
						return false
					}
				}

				return true
			}}

			result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, all...))
			require.NoError(t, err)

			assert.ElementsMatch(t, tc.safe, result.Record.Disabled)
			assert.LessOrEqual(t, result.Record.OracleCalls, 2*len(all)-1)
			assert.Len(t, oracle.calls, result.Record.OracleCalls)
			assert.Equal(t, len(tc.safe) > 0, result.Verdict.Pass)
		})
	}
}

func TestPruneSingletonFailure(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A"), "A")
	oracle := &fakeOracle{accept: func(enabled map[string]bool) bool { return enabled["A"] }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "A"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeExhausted, result.Record.Outcome)
	assert.False(t, result.Verdict.Pass)
	assert.Equal(t, validator.StageTest, result.Verdict.Stage)
	assert.Same(t, baseline, result.Accepted)
	assert.Equal(t, 1, result.Record.OracleCalls)
}

func TestPruneSkipsDisabledMembers(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B"), "A")
	oracle := &fakeOracle{accept: func(map[string]bool) bool { return true }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "B"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeSkipped, result.Record.Outcome)
	assert.Zero(t, result.Record.OracleCalls)
	assert.Empty(t, oracle.calls)
}

func TestPruneUnsatisfiableGroup(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, `
config SEL
	bool "sel"
	select T
config T
	bool "t"
`, "SEL", "T")
	oracle := &fakeOracle{accept: func(map[string]bool) bool { return true }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "T"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeUnsatisfiable, result.Record.Outcome)
	assert.Contains(t, result.Record.Reason, "selected by SEL")
	assert.Zero(t, result.Record.OracleCalls)
	assert.Equal(t, []string{"T"}, result.Record.Kept)
}

func TestPruneUnsatisfiableHalfCountsAsFailure(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, `
config T
	bool "t"
config R
	bool "r"
	select T
`, "T", "R")
	oracle := &fakeOracle{accept: func(enabled map[string]bool) bool { return enabled["R"] }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "T", "R"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeExhausted, result.Record.Outcome)
	assert.Equal(t, 2, result.Record.OracleCalls)
	require.Len(t, result.Record.Probes, 3)
	assert.NotEmpty(t, result.Record.Probes[1].Reason)
	assert.Equal(t, []string{"R"}, result.Record.Probes[2].Requested)
}

func TestPruneSkipsHalvesAlreadyPropagatedOff(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, `
config C
	bool "c"
	depends on P
config X
	bool "x"
config P
	bool "p"
`, "C", "X", "P")
	oracle := &fakeOracle{accept: func(enabled map[string]bool) bool { return enabled["X"] }}

	result, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "C", "X", "P"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomePartial, result.Record.Outcome)
	assert.ElementsMatch(t, []string{"C", "P"}, result.Record.Disabled)
	assert.Equal(t, []string{"X"}, result.Record.Kept)
	assert.Equal(t, [][]string{{"C", "X", "P"}, {"C", "X"}, {"P"}, {"X"}}, probeRequests(result.Record))
	assert.Equal(t, 4, result.Record.OracleCalls)
}

func TestPruneCancelledContext(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B"), "A", "B")
	oracle := &fakeOracle{accept: func(map[string]bool) bool { return true }}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := pruner.New(log.New(), g, oracle).Prune(ctx, baseline, group(g, "A", "B"))
	require.NoError(t, err)

	assert.Equal(t, pruner.OutcomeCancelled, result.Record.Outcome)
	assert.Same(t, baseline, result.Accepted)
	assert.Equal(t, validator.StageCancelled, result.Verdict.Stage)
	assert.Equal(t, 1, result.Record.OracleCalls)
}

func TestPruneOracleUnavailable(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A"), "A")
	oracle := validator.Func(func(context.Context, string) (validator.Verdict, error) {
		return validator.Verdict{}, errors.New(validator.OracleUnavailableError{Reason: "qemu missing"})
	})

	_, err := pruner.New(log.New(), g, oracle).Prune(context.Background(), baseline, group(g, "A"))

	var unavailable validator.OracleUnavailableError
	require.True(t, errors.As(err, &unavailable))
}
