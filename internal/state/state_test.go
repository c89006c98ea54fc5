package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/search"
	"github.com/kdice/kdice/internal/state"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKconfig = `
config A
	bool "a"
config B
	bool "b"
config C
	bool "c"
	depends on B
`

func graph(t *testing.T) *kconfig.Graph {
	t.Helper()

	g, err := kconfig.Parse(log.New(), "Kconfig", []byte(testKconfig))
	require.NoError(t, err)

	return g
}

func runInfo(hash, ver string) state.RunInfo {
	return state.RunInfo{
		ID:            "run-1",
		Started:       time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		KernelSrc:     "/src/linux",
		KernelVersion: ver,
		BaselineHash:  hash,
	}
}

func TestOpenLocksDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := graph(t)

	store, err := state.Open(log.New(), dir, g)
	require.NoError(t, err)

	_, err = state.Open(log.New(), dir, g)

	var locked state.LockedError
	require.True(t, errors.As(err, &locked))

	require.NoError(t, store.Close())

	store, err = state.Open(log.New(), dir, g)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.DirExists(t, filepath.Join(dir, state.LogsDirName))
	assert.DirExists(t, filepath.Join(dir, state.WorkDirName))
}

func TestRoundsAndResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := graph(t)

	store, err := state.Open(log.New(), dir, g)
	require.NoError(t, err)

	defer store.Close() //nolint:errcheck

	_, err = store.Init(runInfo("abc", "6.8.0"), false)
	require.NoError(t, err)

	round, latest, err := store.Latest()
	require.NoError(t, err)
	assert.Zero(t, round)
	assert.Nil(t, latest)

	first := kconfig.NewAssignment(g, map[string]string{"A": "y", "B": "y"})
	second := kconfig.NewAssignment(g, map[string]string{"B": "y"})

	require.NoError(t, store.SaveRound(&search.RoundReport{Round: 1, Committed: 1}, first))
	require.NoError(t, store.SaveRound(&search.RoundReport{Round: 2, Committed: 1}, second))

	round, latest, err = store.Latest()
	require.NoError(t, err)
	assert.Equal(t, 2, round)
	assert.True(t, latest.Equal(second))

	assert.FileExists(t, store.RoundLedgerPath(2))
	assert.FileExists(t, filepath.Join(dir, state.RoundsDirName, "round-0001.config"))

	// The same inputs resume the persisted run.
	resumed, err := store.Init(runInfo("abc", "6.8"), false)
	require.NoError(t, err)
	assert.Equal(t, "run-1", resumed.ID)

	_, err = store.Init(runInfo("def", "6.8.0"), false)

	var mismatch state.ResumeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "baseline", mismatch.Field)

	_, err = store.Init(runInfo("abc", "6.9.0"), false)
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "kernel version", mismatch.Field)

	// A fresh start discards the rounds.
	_, err = store.Init(runInfo("def", "6.9.0"), true)
	require.NoError(t, err)

	round, _, err = store.Latest()
	require.NoError(t, err)
	assert.Zero(t, round)
}

func TestSaveFinal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := graph(t)

	store, err := state.Open(log.New(), dir, g)
	require.NoError(t, err)

	defer store.Close() //nolint:errcheck

	baseline := kconfig.NewAssignment(g, map[string]string{"A": "y", "B": "y", "C": "y"})
	final := kconfig.NewAssignment(g, map[string]string{"B": "y"})

	info := runInfo("abc", "")

	results, err := store.SaveFinal(&info, baseline, &search.Report{
		State:       search.StateConverged,
		Final:       final,
		Rounds:      []*search.RoundReport{{Round: 1}, {Round: 2}},
		OracleCalls: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, results.Removed)
	assert.Equal(t, 3, results.BaseSize)
	assert.Equal(t, 1, results.FinalSize)
	assert.InDelta(t, 66.67, results.ReductionPercent, 0.001)
	assert.Equal(t, int64(7), results.TotalTests)
	assert.True(t, store.HasFinal())

	text, err := os.ReadFile(store.FinalConfigPath())
	require.NoError(t, err)
	assert.Equal(t, kconfig.Materialize(g, final), string(text))

	data, err := os.ReadFile(filepath.Join(dir, state.LedgerName))
	require.NoError(t, err)

	var ledger map[string]any
	require.NoError(t, json.Unmarshal(data, &ledger))
	assert.Contains(t, ledger, "results")
	assert.Contains(t, ledger, "report")
}
