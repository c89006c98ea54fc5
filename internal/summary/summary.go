// Package summary writes the human readable summary printed at the end of a run.
package summary

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/kdice/kdice/internal/search"
	"github.com/kdice/kdice/internal/state"
	"github.com/mattn/go-isatty"
)

const (
	prefix              = "   "
	runSummaryHeader    = "❯❯ Run Summary"
	separatorLineLength = 36
	labelWidth          = 18
	padder              = "."

	committedLabel     = "Committed"
	exhaustedLabel     = "Kept"
	unsatisfiableLabel = "Unsatisfiable"
	skippedLabel       = "Skipped"
	optionsLabel       = "Enabled options"
	validationsLabel   = "Validations"
	roundsLabel        = "Rounds"
)

// ansiRegex removes ANSI escape codes when measuring strings.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Summary aggregates the rounds of a report.
type Summary struct {
	report        *search.Report
	results       *state.Results
	Committed     int
	Exhausted     int
	Unsatisfiable int
	Skipped       int
	shouldColor   bool
}

// Option configures a Summary.
type Option func(*Summary)

// WithColor forces colored output on or off.
func WithColor(shouldColor bool) Option {
	return func(s *Summary) {
		s.shouldColor = shouldColor
	}
}

// New summarizes the report. Colors are used when w is a terminal unless an option says
// otherwise.
func New(w io.Writer, report *search.Report, results *state.Results, opts ...Option) *Summary {
	s := &Summary{report: report, results: results, shouldColor: isTerminal(w)}

	for _, opt := range opts {
		opt(s)
	}

	for _, round := range report.Rounds {
		s.Committed += round.Committed
		s.Exhausted += round.Exhausted
		s.Unsatisfiable += round.Unsatisfiable
		s.Skipped += round.Skipped
	}

	return s
}

// Write writes the summary to a writer.
func (s *Summary) Write(w io.Writer) error {
	colorizer := NewColorizer(s.shouldColor)

	header := fmt.Sprintf("%s  %s  %s",
		colorizer.headingTitleColorizer(runSummaryHeader),
		colorizer.colorState(s.report.State),
		colorizer.colorDuration(s.report.Duration),
	)

	lines := []string{header, prefix + strings.Repeat("─", separatorLineLength)}

	entries := []struct {
		colorizer func(string) string
		label     string
		value     int
	}{
		{colorizer.committedColorizer, committedLabel, s.Committed},
		{colorizer.keptColorizer, exhaustedLabel, s.Exhausted},
		{colorizer.neutralColorizer, unsatisfiableLabel, s.Unsatisfiable},
		{colorizer.neutralColorizer, skippedLabel, s.Skipped},
	}

	for _, entry := range entries {
		if entry.value == 0 {
			continue
		}

		lines = append(lines, entryLine(colorizer.defaultColorizer(entry.label), entry.colorizer(strconv.Itoa(entry.value))))
	}

	if s.results != nil {
		lines = append(lines, entryLine(optionsLabel, fmt.Sprintf("%d -> %d (%.2f%% removed)",
			s.results.BaseSize, s.results.FinalSize, s.results.ReductionPercent)))
	}

	validations := strconv.FormatInt(s.report.OracleCalls, 10)
	if s.report.CacheHits > 0 {
		validations += fmt.Sprintf(" (%d cached)", s.report.CacheHits)
	}

	lines = append(lines,
		entryLine(validationsLabel, validations),
		entryLine(roundsLabel, strconv.Itoa(len(s.report.Rounds))),
	)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

func entryLine(label, value string) string {
	return prefix + label + padding(label) + value
}

// padding aligns the values of the entries, dotted so the eye can follow the row.
func padding(label string) string {
	needed := labelWidth - visualLength(label)
	if needed < 3 { //nolint:mnd
		return "  "
	}

	return " " + strings.Repeat(padder, needed-2) + " "
}

func visualLength(text string) int {
	return len([]rune(ansiRegex.ReplaceAllString(text, "")))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
