package summary

import (
	"fmt"
	"time"

	"github.com/kdice/kdice/internal/search"
	"github.com/mgutz/ansi"
)

// Colorizer colors the parts of the run summary.
type Colorizer struct {
	headingTitleColorizer func(string) string
	headingStateColorizer map[search.State]func(string) string
	committedColorizer    func(string) string
	keptColorizer         func(string) string
	neutralColorizer      func(string) string
	secondColorizer       func(string) string
	minuteColorizer       func(string) string
	hourColorizer         func(string) string
	defaultColorizer      func(string) string
}

// NewColorizer creates a new Colorizer, a pass-through one when shouldColor is false.
func NewColorizer(shouldColor bool) *Colorizer {
	if !shouldColor {
		plain := func(s string) string { return s }

		return &Colorizer{
			headingTitleColorizer: plain,
			headingStateColorizer: map[search.State]func(string) string{},
			committedColorizer:    plain,
			keptColorizer:         plain,
			neutralColorizer:      plain,
			secondColorizer:       plain,
			minuteColorizer:       plain,
			hourColorizer:         plain,
			defaultColorizer:      plain,
		}
	}

	return &Colorizer{
		headingTitleColorizer: ansi.ColorFunc("yellow+bh"),
		headingStateColorizer: map[search.State]func(string) string{
			search.StateConverged:       ansi.ColorFunc("green+bh"),
			search.StateBudgetExhausted: ansi.ColorFunc("yellow+bh"),
			search.StateInvalidBaseline: ansi.ColorFunc("red+bh"),
			search.StateAborted:         ansi.ColorFunc("red+bh"),
		},
		committedColorizer: ansi.ColorFunc("green+bh"),
		keptColorizer:      ansi.ColorFunc("red+bh"),
		neutralColorizer:   ansi.ColorFunc("blue+bh"),
		secondColorizer:    ansi.ColorFunc("green+bh"),
		minuteColorizer:    ansi.ColorFunc("yellow+bh"),
		hourColorizer:      ansi.ColorFunc("red+bh"),
		defaultColorizer:   ansi.ColorFunc("white+bh"),
	}
}

func (c *Colorizer) colorState(state search.State) string {
	if fn, ok := c.headingStateColorizer[state]; ok {
		return fn(string(state))
	}

	return c.defaultColorizer(string(state))
}

// colorDuration returns the duration rounded to its largest unit, colored by magnitude.
func (c *Colorizer) colorDuration(duration time.Duration) string {
	switch {
	case duration < 0:
		return c.defaultColorizer("N/A")
	case duration < time.Second:
		return c.secondColorizer(fmt.Sprintf("%dms", duration.Milliseconds()))
	case duration < time.Minute:
		return c.secondColorizer(fmt.Sprintf("%ds", int(duration.Seconds())))
	case duration < time.Hour:
		return c.minuteColorizer(fmt.Sprintf("%dm%ds", int(duration.Minutes()), int(duration.Seconds())%60))
	}

	return c.hourColorizer(fmt.Sprintf("%dh%dm", int(duration.Hours()), int(duration.Minutes())%60))
}
