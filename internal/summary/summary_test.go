package summary_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/kdice/kdice/internal/search"
	"github.com/kdice/kdice/internal/state"
	"github.com/kdice/kdice/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryWrite(t *testing.T) {
	t.Parallel()

	report := &search.Report{
		State:       search.StateConverged,
		Duration:    90 * time.Second,
		OracleCalls: 5,
		CacheHits:   1,
		Rounds: []*search.RoundReport{
			{Round: 1, Committed: 1, Exhausted: 1},
			{Round: 2, Committed: 1, Skipped: 2},
		},
	}

	results := &state.Results{BaseSize: 3, FinalSize: 1, ReductionPercent: 66.67}

	var out bytes.Buffer

	s := summary.New(&out, report, results)
	assert.Equal(t, 2, s.Committed)
	assert.Equal(t, 1, s.Exhausted)
	assert.Equal(t, 2, s.Skipped)

	require.NoError(t, s.Write(&out))

	expected := "❯❯ Run Summary  converged  1m30s\n" +
		"   ────────────────────────────────────\n" +
		"   Committed ....... 2\n" +
		"   Kept ............ 1\n" +
		"   Skipped ......... 2\n" +
		"   Enabled options . 3 -> 1 (66.67% removed)\n" +
		"   Validations ..... 5 (1 cached)\n" +
		"   Rounds .......... 2\n"

	assert.Equal(t, expected, out.String())
}

func TestSummaryColors(t *testing.T) {
	t.Parallel()

	report := &search.Report{State: search.StateBudgetExhausted, Rounds: []*search.RoundReport{{Committed: 1}}}

	var out bytes.Buffer

	require.NoError(t, summary.New(&out, report, nil, summary.WithColor(true)).Write(&out))
	assert.Contains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "budget_exhausted")
}
