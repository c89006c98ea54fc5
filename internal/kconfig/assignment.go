package kconfig

import (
	"bufio"
	"bytes"
	"maps"
	"slices"
	"strings"

	"github.com/kdice/kdice/internal/errors"
)

const (
	configPrefix = "CONFIG_"
	notSetSuffix = " is not set"
)

// Assignment is an immutable set of option values, the snapshot of one configuration.
// Values are indexed by option ID. An empty value means the option is off.
type Assignment struct {
	values []string
	// extra keeps the lines of the source .config for symbols the graph does not know.
	extra   map[string]string
	version int
}

// NewAssignment returns an assignment of the given values indexed by option ID.
func NewAssignment(g *Graph, values map[string]string) *Assignment {
	a := &Assignment{values: make([]string, g.Len()), extra: make(map[string]string)}

	for name, val := range values {
		if id, ok := g.Lookup(name); ok {
			a.values[id] = normalizeValue(val)
			continue
		}

		a.extra[strings.TrimPrefix(name, configPrefix)] = val
	}

	return a
}

// ParseDotConfig reads a .config file. Lines that are neither comments nor CONFIG_ assignments
// are reported as ParseError.
func ParseDotConfig(g *Graph, name string, src []byte) (*Assignment, error) {
	a := &Assignment{values: make([]string, g.Len()), extra: make(map[string]string)}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())

		symbol, val, ok, err := parseDotConfigLine(line)
		if err != nil {
			return nil, errors.New(ParseError{Loc: SourceLoc{File: name, Line: lineNum}, Msg: err.Error()})
		}

		if !ok {
			continue
		}

		if id, known := g.Lookup(symbol); known {
			a.values[id] = normalizeValue(val)
			continue
		}

		a.extra[symbol] = val
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.New(ParseError{Loc: SourceLoc{File: name}, Msg: err.Error()})
	}

	return a, nil
}

func parseDotConfigLine(line string) (symbol, val string, ok bool, err error) {
	if line == "" {
		return "", "", false, nil
	}

	if strings.HasPrefix(line, "#") {
		rest := strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if strings.HasPrefix(rest, configPrefix) && strings.HasSuffix(rest, notSetSuffix) {
			symbol = strings.TrimSuffix(strings.TrimPrefix(rest, configPrefix), notSetSuffix)
			return symbol, "", true, nil
		}

		return "", "", false, nil
	}

	name, val, found := strings.Cut(line, "=")
	if !found || !strings.HasPrefix(name, configPrefix) || len(name) == len(configPrefix) {
		return "", "", false, errors.Errorf("malformed line %q", line)
	}

	return strings.TrimPrefix(name, configPrefix), val, true, nil
}

func normalizeValue(val string) string {
	if val == "n" {
		return ""
	}

	return val
}

// Version counts the edits since the baseline was read.
func (a *Assignment) Version() int {
	return a.version
}

// Len returns the number of options the assignment covers.
func (a *Assignment) Len() int {
	return len(a.values)
}

// Value returns the raw value of the option, empty when off.
func (a *Assignment) Value(id int) string {
	return a.values[id]
}

// Tristate returns the option value in tristate logic.
func (a *Assignment) Tristate(id int) Tristate {
	return triFromValue(a.values[id])
}

// Enabled reports whether the option is on.
func (a *Assignment) Enabled(id int) bool {
	return a.values[id] != ""
}

// EnabledIDs returns the enabled options in graph order.
func (a *Assignment) EnabledIDs() []int {
	var ids []int

	for id, val := range a.values {
		if val != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

// EnabledCount returns the number of enabled options.
func (a *Assignment) EnabledCount() int {
	count := 0

	for _, val := range a.values {
		if val != "" {
			count++
		}
	}

	return count
}

// With returns a copy of the assignment with the given values replaced.
func (a *Assignment) With(changes map[int]string) *Assignment {
	values := slices.Clone(a.values)
	for id, val := range changes {
		values[id] = normalizeValue(val)
	}

	return &Assignment{values: values, extra: a.extra, version: a.version + 1}
}

// Without returns a copy of the assignment with the given options turned off, without any propagation.
func (a *Assignment) Without(ids ...int) *Assignment {
	changes := make(map[int]string, len(ids))
	for _, id := range ids {
		changes[id] = ""
	}

	return a.With(changes)
}

// Equal reports whether both assignments hold the same values.
func (a *Assignment) Equal(other *Assignment) bool {
	return slices.Equal(a.values, other.values) && maps.Equal(a.extra, other.extra)
}

// SubsetOf reports whether every option enabled in a is also enabled in other.
func (a *Assignment) SubsetOf(other *Assignment) bool {
	for id, val := range a.values {
		if val != "" && other.values[id] == "" {
			return false
		}
	}

	return true
}

type assignmentValues struct {
	graph  *Graph
	values []string
}

// lookup implements valuer.
func (v assignmentValues) lookup(name string) (string, bool) {
	id, ok := v.graph.byName[name]
	if !ok {
		return "", false
	}

	return v.values[id], true
}

// Eval evaluates the expression against the assignment.
func Eval(g *Graph, a *Assignment, e Expr) Tristate {
	if e == nil {
		return Yes
	}

	return e.eval(assignmentValues{graph: g, values: a.values})
}
