package search

import (
	"time"

	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/pruner"
	"github.com/kdice/kdice/internal/validator"
)

// State of the search driver.
type State string

const (
	StateStart           State = "start"
	StateGroupingRound   State = "grouping_round"
	StatePruningRound    State = "pruning_round"
	StateConverged       State = "converged"
	StateInvalidBaseline State = "invalid_baseline"
	StateBudgetExhausted State = "budget_exhausted"
	StateAborted         State = "aborted"
)

// Terminal reports whether the driver stops in this state.
func (state State) Terminal() bool {
	switch state {
	case StateConverged, StateInvalidBaseline, StateBudgetExhausted, StateAborted:
		return true
	case StateStart, StateGroupingRound, StatePruningRound:
	}

	return false
}

// RoundReport is the ledger of one round.
type RoundReport struct {
	Started time.Time `json:"started"`
	// Records holds one entry per group, in the order the groups were pruned.
	Records       []pruner.Record `json:"records"`
	Duration      time.Duration   `json:"duration"`
	Round         int             `json:"round"`
	Groups        int             `json:"groups"`
	Committed     int             `json:"committed"`
	Exhausted     int             `json:"exhausted"`
	Unsatisfiable int             `json:"unsatisfiable"`
	Skipped       int             `json:"skipped"`
	// BatchCalls counts the validations of merged speculative batches.
	BatchCalls int `json:"batch_calls,omitempty"`
	// EnabledBefore and EnabledAfter count the enabled options around the round.
	EnabledBefore int `json:"enabled_before"`
	EnabledAfter  int `json:"enabled_after"`
	// Interrupted is set when the round ended early.
	Interrupted bool `json:"interrupted,omitempty"`
}

func (round *RoundReport) add(record pruner.Record) {
	round.Records = append(round.Records, record)
	round.Groups++

	switch record.Outcome {
	case pruner.OutcomeCommitted, pruner.OutcomePartial:
		round.Committed++
	case pruner.OutcomeExhausted:
		round.Exhausted++
	case pruner.OutcomeUnsatisfiable:
		round.Unsatisfiable++
	case pruner.OutcomeSkipped:
		round.Skipped++
	case pruner.OutcomeCancelled:
	}
}

// Report is the outcome of a search.
type Report struct {
	// Final is the last accepted configuration.
	Final           *kconfig.Assignment `json:"-"`
	BaselineVerdict *validator.Verdict  `json:"baseline_verdict,omitempty"`
	State           State               `json:"state"`
	Rounds          []*RoundReport      `json:"rounds"`
	Duration        time.Duration       `json:"duration"`
	BaselineEnabled int                 `json:"baseline_enabled"`
	FinalEnabled    int                 `json:"final_enabled"`
	OracleCalls     int64               `json:"oracle_calls"`
	CacheHits       int64               `json:"cache_hits"`
}
