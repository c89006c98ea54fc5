package state

import (
	"math"
	"os"
	"path/filepath"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/search"
)

// Results summarizes a run.
type Results struct {
	State   search.State `json:"state"`
	Removed []string     `json:"removed"`
	// BaseSize and FinalSize count the enabled options.
	BaseSize         int     `json:"base_size"`
	FinalSize        int     `json:"final_size"`
	ReductionPercent float64 `json:"reduction_percent"`
	// TotalTests is the number of validations that ran the oracle.
	TotalTests int64 `json:"total_tests"`
	Rounds     int   `json:"rounds"`
}

// Ledger is the content of ledger.json.
type Ledger struct {
	Run     *RunInfo       `json:"run,omitempty"`
	Results Results        `json:"results"`
	Report  *search.Report `json:"report"`
}

// SaveRound writes the configuration accepted in a round and the round's ledger.
func (store *Store) SaveRound(round *search.RoundReport, accepted *kconfig.Assignment) error {
	if store.graph == nil {
		return errors.New("state store opened without a graph")
	}

	if err := writeFile(store.RoundConfigPath(round.Round), []byte(kconfig.Materialize(store.graph, accepted))); err != nil {
		return err
	}

	return writeJSON(store.RoundLedgerPath(round.Round), round)
}

// SaveFinal writes final.config and ledger.json.
func (store *Store) SaveFinal(run *RunInfo, baseline *kconfig.Assignment, report *search.Report) (*Results, error) {
	results := Summarize(store.graph, baseline, report)

	if err := writeFile(store.FinalConfigPath(), []byte(kconfig.Materialize(store.graph, report.Final))); err != nil {
		return nil, err
	}

	if err := writeJSON(filepath.Join(store.dir, LedgerName), Ledger{Run: run, Results: results, Report: report}); err != nil {
		return nil, err
	}

	return &results, nil
}

// FinalConfigPath returns the path of the final configuration.
func (store *Store) FinalConfigPath() string {
	return filepath.Join(store.dir, FinalConfigName)
}

// HasFinal reports whether a run already finished in this directory.
func (store *Store) HasFinal() bool {
	_, err := os.Stat(store.FinalConfigPath())
	return err == nil
}

// Summarize compares the baseline with the final configuration of the report.
func Summarize(g *kconfig.Graph, baseline *kconfig.Assignment, report *search.Report) Results {
	results := Results{
		State:      report.State,
		Removed:    g.Names(kconfig.Diff(baseline, report.Final)),
		BaseSize:   baseline.EnabledCount(),
		FinalSize:  report.Final.EnabledCount(),
		TotalTests: report.OracleCalls,
		Rounds:     len(report.Rounds),
	}

	if results.Removed == nil {
		results.Removed = []string{}
	}

	if results.BaseSize > 0 {
		reduction := 100 * float64(results.BaseSize-results.FinalSize) / float64(results.BaseSize)
		results.ReductionPercent = math.Round(reduction*100) / 100
	}

	return results
}
