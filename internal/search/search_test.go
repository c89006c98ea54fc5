package search_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/pruner"
	"github.com/kdice/kdice/internal/search"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeOracle passes a config when accept returns true for its enabled symbols.
type fakeOracle struct {
	accept func(ctx context.Context, enabled map[string]bool) (validator.Verdict, error)
	passed map[string]bool
	calls  int
	mu     sync.Mutex
}

func newOracle(accept func(enabled map[string]bool) bool) *fakeOracle {
	return &fakeOracle{accept: func(_ context.Context, enabled map[string]bool) (validator.Verdict, error) {
		if accept(enabled) {
			return validator.Passed(), nil
		}

		return validator.Failed(validator.StageBoot), nil
	}}
}

func (oracle *fakeOracle) Validate(ctx context.Context, text string) (validator.Verdict, error) {
	enabled := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		if name, _, ok := strings.Cut(line, "="); ok && !strings.HasPrefix(line, "#") {
			enabled[strings.TrimPrefix(name, "CONFIG_")] = true
		}
	}

	verdict, err := oracle.accept(ctx, enabled)

	oracle.mu.Lock()
	defer oracle.mu.Unlock()

	oracle.calls++

	if verdict.Pass {
		if oracle.passed == nil {
			oracle.passed = make(map[string]bool)
		}

		oracle.passed[text] = true
	}

	return verdict, err
}

func (oracle *fakeOracle) Calls() int {
	oracle.mu.Lock()
	defer oracle.mu.Unlock()

	return oracle.calls
}

type memPersister struct {
	rounds  []*search.RoundReport
	configs []*kconfig.Assignment
}

func (persister *memPersister) SaveRound(round *search.RoundReport, accepted *kconfig.Assignment) error {
	persister.rounds = append(persister.rounds, round)
	persister.configs = append(persister.configs, accepted)

	return nil
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

const scenarioKconfig = `
config A
	bool "a"
config B
	bool "b"
config C
	bool "c"
config D
	bool "d"
	depends on B
`

// scenarioOracle passes iff B and D are both present or both absent.
func scenarioOracle() *fakeOracle {
	return newOracle(func(enabled map[string]bool) bool { return enabled["B"] == enabled["D"] })
}

func TestRunScenarioConverges(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, scenarioKconfig, "A", "B", "C", "D")
	oracle := scenarioOracle()
	persister := &memPersister{}

	driver := search.NewDriver(log.New(), g, oracle, persister, search.Options{})

	report, err := driver.Run(context.Background(), baseline)
	require.NoError(t, err)

	assert.Equal(t, search.StateConverged, report.State)
	assert.Equal(t, search.StateConverged, driver.State())
	assert.Empty(t, report.Final.EnabledIDs())
	assert.Equal(t, 4, report.BaselineEnabled)
	assert.Equal(t, 0, report.FinalEnabled)

	require.Len(t, report.Rounds, 2)

	first := report.Rounds[0]
	require.Len(t, first.Records, 4)

	outcomes := make(map[string]pruner.Outcome, len(first.Records))
	for _, record := range first.Records {
		outcomes[record.Group] = record.Outcome
	}

	assert.Equal(t, map[string]pruner.Outcome{
		"leaf:A":   pruner.OutcomeCommitted,
		"leaf:C":   pruner.OutcomeCommitted,
		"leaf:D":   pruner.OutcomeExhausted,
		"single:B": pruner.OutcomeCommitted,
	}, outcomes)
	assert.Equal(t, []string{"B", "D"}, first.Records[3].Disabled)

	assert.Empty(t, report.Rounds[1].Records)
	assert.Equal(t, 3, first.Committed)
	assert.Equal(t, 1, first.Exhausted)

	assert.Equal(t, int64(5), report.OracleCalls)
	assert.Equal(t, 5, oracle.Calls())

	require.Len(t, persister.rounds, 2)
	assert.Equal(t, 1, persister.rounds[0].Round)
	assert.Equal(t, 2, persister.rounds[1].Round)
}

func TestRunCommitsOnlyValidatedConfigs(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, scenarioKconfig, "A", "B", "C", "D")
	oracle := scenarioOracle()
	persister := &memPersister{}

	_, err := search.NewDriver(log.New(), g, oracle, persister, search.Options{}).Run(context.Background(), baseline)
	require.NoError(t, err)

	previous := baseline

	for _, accepted := range persister.configs {
		assert.True(t, oracle.passed[kconfig.Materialize(g, accepted)], "accepted config was never validated")
		assert.True(t, accepted.SubsetOf(previous), "a round enabled an option")

		previous = accepted
	}
}

func TestRunInvalidBaseline(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, scenarioKconfig, "A", "B", "C")
	oracle := scenarioOracle()

	report, err := search.NewDriver(log.New(), g, oracle, nil, search.Options{}).Run(context.Background(), baseline)
	require.Error(t, err)

	var invalid search.InvalidBaselineError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, search.ExitCodeInvalidBaseline, errors.ExitCode(err, 1))

	assert.Equal(t, search.StateInvalidBaseline, report.State)
	assert.Same(t, baseline, report.Final)
	assert.Empty(t, report.Rounds)
	assert.Equal(t, 1, oracle.Calls())
}

func TestRunRoundBudget(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, scenarioKconfig, "A", "B", "C", "D")

	report, err := search.NewDriver(log.New(), g, scenarioOracle(), nil, search.Options{MaxRounds: 1}).Run(context.Background(), baseline)
	require.Error(t, err)

	var exhausted search.BudgetExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, exhausted.Rounds)
	assert.Equal(t, search.ExitCodeBudgetExhausted, errors.ExitCode(err, 1))
	assert.Equal(t, search.StateBudgetExhausted, report.State)
	assert.Len(t, report.Rounds, 1)
}

func TestRunTimeBudgetNeverCommitsCancelledCandidates(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B"), "A", "B")

	var mu sync.Mutex

	calls := 0
	oracle := &fakeOracle{accept: func(ctx context.Context, _ map[string]bool) (validator.Verdict, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			return validator.Passed(), nil
		}

		<-ctx.Done()

		return validator.Cancelled(), nil
	}}

	report, err := search.NewDriver(log.New(), g, oracle, nil, search.Options{TimeBudget: 100 * time.Millisecond}).
		Run(context.Background(), baseline)

	var exhausted search.BudgetExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, search.StateBudgetExhausted, report.State)
	assert.Equal(t, 2, report.Final.EnabledCount())
	require.Len(t, report.Rounds, 1)
	assert.True(t, report.Rounds[0].Interrupted)
}

func TestRunOracleUnavailableAborts(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B"), "A", "B")

	var mu sync.Mutex

	calls := 0
	oracle := &fakeOracle{accept: func(context.Context, map[string]bool) (validator.Verdict, error) {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls == 3 {
			return validator.Verdict{}, errors.New(validator.OracleUnavailableError{Reason: "emulator crashed"})
		}

		return validator.Passed(), nil
	}}
	persister := &memPersister{}

	report, err := search.NewDriver(log.New(), g, oracle, persister, search.Options{}).Run(context.Background(), baseline)

	var unavailable validator.OracleUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, search.StateAborted, report.State)

	// The commit of A before the failure is kept and persisted.
	assert.Equal(t, []string{"B"}, g.Names(report.Final.EnabledIDs()))
	require.Len(t, persister.configs, 1)
	assert.Equal(t, 1, persister.configs[0].EnabledCount())
}

func TestRunResumeSkipsBaselineCheck(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A"), "A")
	oracle := newOracle(func(map[string]bool) bool { return true })
	persister := &memPersister{}

	report, err := search.NewDriver(log.New(), g, oracle, persister, search.Options{SkipBaselineCheck: true, StartRound: 3}).
		Run(context.Background(), baseline)
	require.NoError(t, err)

	assert.Nil(t, report.BaselineVerdict)
	assert.Equal(t, 1, oracle.Calls())
	require.Len(t, persister.rounds, 2)
	assert.Equal(t, 3, persister.rounds[0].Round)
	assert.Equal(t, 4, persister.rounds[1].Round)
}

func TestRunParallelBatches(t *testing.T) {
	t.Parallel()

	names := []string{"A", "B", "C", "D", "E", "F"}
	g, baseline := setup(t, independent(names...), names...)
	oracle := newOracle(func(enabled map[string]bool) bool { return enabled["C"] })

	report, err := search.NewDriver(log.New(), g, oracle, nil, search.Options{Parallelism: 3}).Run(context.Background(), baseline)
	require.NoError(t, err)

	assert.Equal(t, search.StateConverged, report.State)
	assert.Equal(t, []string{"C"}, g.Names(report.Final.EnabledIDs()))
	assert.Equal(t, 2, report.Rounds[0].BatchCalls)
	assert.Equal(t, 5, report.Rounds[0].Committed)
	assert.True(t, oracle.passed[kconfig.Materialize(g, report.Final)])
}

func TestRunParallelMergedBatchFails(t *testing.T) {
	t.Parallel()

	g, baseline := setup(t, independent("A", "B"), "A", "B")

	// Each option alone may go, not both.
	oracle := newOracle(func(enabled map[string]bool) bool { return enabled["A"] || enabled["B"] })

	report, err := search.NewDriver(log.New(), g, oracle, nil, search.Options{Parallelism: 2}).Run(context.Background(), baseline)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FinalEnabled)
	assert.Equal(t, 1, report.Rounds[0].BatchCalls)
	assert.Equal(t, 1, report.Rounds[0].Committed)

	// The sequential fallback finds the speculative and merged verdicts in the cache.
	assert.Positive(t, report.CacheHits)
}
