package search

import (
	"fmt"

	"github.com/kdice/kdice/internal/validator"
)

const (
	// ExitCodeInvalidBaseline is the process exit status of a run whose baseline fails.
	ExitCodeInvalidBaseline = 2
	// ExitCodeBudgetExhausted is the process exit status of a run stopped by a budget.
	ExitCodeBudgetExhausted = 3
)

// InvalidBaselineError is returned when the untouched baseline does not pass the oracle.
type InvalidBaselineError struct {
	Verdict validator.Verdict
}

func (err InvalidBaselineError) Error() string {
	msg := fmt.Sprintf("Baseline configuration does not pass validation: %s", err.Verdict)
	if err.Verdict.LogRef != "" {
		msg += ", see " + err.Verdict.LogRef
	}

	return msg
}

func (err InvalidBaselineError) ExitStatus() int {
	return ExitCodeInvalidBaseline
}

// BudgetExhaustedError is returned when the round or time budget ends the search before it converges.
type BudgetExhaustedError struct {
	Reason string
	Rounds int
}

func (err BudgetExhaustedError) Error() string {
	return fmt.Sprintf("Search stopped before convergence after %d round(s): %s", err.Rounds, err.Reason)
}

func (err BudgetExhaustedError) ExitStatus() int {
	return ExitCodeBudgetExhausted
}
