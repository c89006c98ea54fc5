// Package validator runs candidate configurations through the build, boot and test oracle.
//
// A Validator answers PASS or FAIL for one configuration text. A FAIL verdict is an ordinary
// answer and carries the stage that failed. An error means the oracle itself could not be
// used and the search must stop.
package validator

import (
	"context"
	"fmt"
	"time"
)

// Stage names the validation step that decided a verdict.
type Stage string

const (
	StageBuild     Stage = "build"
	StageBoot      Stage = "boot"
	StageTest      Stage = "test"
	StageCancelled Stage = "cancelled"
)

// Verdict is the outcome of one validation.
type Verdict struct {
	// Stage is the failing stage, or the last stage that ran when the verdict passed.
	Stage Stage `json:"stage,omitempty"`
	// LogRef points to the log of the deciding stage.
	LogRef   string        `json:"log,omitempty"`
	Duration time.Duration `json:"duration"`
	Pass     bool          `json:"pass"`
}

func (verdict Verdict) String() string {
	if verdict.Pass {
		return "PASS"
	}

	if verdict.Stage == "" {
		return "FAIL"
	}

	return fmt.Sprintf("FAIL(%s)", verdict.Stage)
}

// Passed returns a passing verdict.
func Passed() Verdict {
	return Verdict{Pass: true}
}

// Failed returns a failing verdict for the given stage.
func Failed(stage Stage) Verdict {
	return Verdict{Stage: stage}
}

// Cancelled is the verdict of a validation interrupted by its context.
func Cancelled() Verdict {
	return Verdict{Stage: StageCancelled}
}

// Validator validates a materialized configuration. Implementations must return a cancelled
// FAIL verdict, not an error, when ctx is done.
type Validator interface {
	Validate(ctx context.Context, configText string) (Verdict, error)
}

// Func adapts a function to the Validator interface.
type Func func(ctx context.Context, configText string) (Verdict, error)

func (fn Func) Validate(ctx context.Context, configText string) (Verdict, error) {
	return fn(ctx, configText)
}
