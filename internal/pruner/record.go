package pruner

import (
	"github.com/kdice/kdice/internal/grouper"
	"github.com/kdice/kdice/internal/validator"
)

// Outcome is the result of pruning one group.
type Outcome string

const (
	// OutcomeCommitted means the whole group was disabled by the first probe.
	OutcomeCommitted Outcome = "committed"
	// OutcomePartial means bisection disabled a part of the group.
	OutcomePartial Outcome = "partial"
	// OutcomeExhausted means no member of the group could be disabled this round.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeUnsatisfiable means the group cannot be disabled as a whole without breaking a select or a choice.
	OutcomeUnsatisfiable Outcome = "unsatisfiable"
	// OutcomeSkipped means every member was already disabled.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCancelled means the context ended before anything was committed.
	OutcomeCancelled Outcome = "cancelled"
)

// Committed reports whether the outcome disabled at least one option.
func (outcome Outcome) Committed() bool {
	return outcome == OutcomeCommitted || outcome == OutcomePartial
}

// Probe is one proposal made while pruning a group.
type Probe struct {
	// Reason is set when the proposal was rejected without asking the oracle.
	Reason string `json:"reason,omitempty"`
	// Requested are the group members the proposal turned off.
	Requested []string `json:"requested"`
	// Disabled are all options the proposal turned off, requested ones included.
	Disabled []string          `json:"disabled,omitempty"`
	Verdict  validator.Verdict `json:"verdict"`
	Accepted bool              `json:"accepted"`
}

// Record is the ledger entry of one group.
type Record struct {
	Group   string       `json:"group"`
	Kind    grouper.Kind `json:"kind"`
	Outcome Outcome      `json:"outcome"`
	// Reason explains an unsatisfiable or cancelled outcome.
	Reason  string   `json:"reason,omitempty"`
	Members []string `json:"members"`
	// Disabled lists every option the group committed, propagated ones included.
	Disabled    []string `json:"disabled,omitempty"`
	Kept        []string `json:"kept,omitempty"`
	Probes      []Probe  `json:"probes,omitempty"`
	OracleCalls int      `json:"oracle_calls"`
}
