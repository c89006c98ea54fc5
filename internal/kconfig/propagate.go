package kconfig

import (
	"slices"

	"github.com/kdice/kdice/internal/errors"
)

// Propagate turns the given options off and then every option that can no longer stay on, until
// nothing changes. An option goes off when its dependency evaluates to n, a y tristate drops to m
// when its dependency evaluates to m. An option that is still selected by an enabled option keeps
// the selected level, select overrides dependencies. Propagate never turns anything on.
//
// UnsatisfiableDisableError is returned when a requested option is still selected by an enabled
// option, or when a mandatory choice that had an enabled member would be left without one.
func Propagate(g *Graph, a *Assignment, disabled []int) (*Assignment, error) {
	return propagate(g, a, disabled, false)
}

// Normalize applies the forced consequences of the assignment's own values: options whose
// dependencies are not met go off, the same way the kernel build would drop them.
func Normalize(g *Graph, a *Assignment) *Assignment {
	normalized, err := propagate(g, a, nil, true)
	if err != nil {
		return a
	}

	return normalized
}

func propagate(g *Graph, a *Assignment, disabled []int, all bool) (*Assignment, error) {
	values := slices.Clone(a.values)
	lookup := assignmentValues{graph: g, values: values}
	requested := make(map[int]bool, len(disabled))

	var queue []int

	// changed schedules the options whose state may depend on id.
	changed := func(id int) {
		for _, edgeID := range g.in[id] {
			if edge := g.Edges[edgeID]; edge.Kind != EdgeSelects {
				queue = append(queue, edge.From)
			}
		}

		for _, sel := range g.Options[id].Selects {
			queue = append(queue, sel.Target)
		}
	}

	for _, id := range disabled {
		requested[id] = true

		if values[id] != "" {
			values[id] = ""
			changed(id)
		}
	}

	if all {
		queue = append(queue, a.EnabledIDs()...)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if values[id] == "" || requested[id] {
			continue
		}

		opt := g.Options[id]
		dep := evalOrYes(opt.DependsOn, lookup)
		selected := selectLevel(opt, lookup)
		current := triFromValue(values[id])

		level := max(min(current, dep), selected)

		switch {
		case level == No:
			values[id] = ""
		case level == Mod && current == Yes && opt.Kind == KindTristate:
			values[id] = "m"
		default:
			continue
		}

		changed(id)
	}

	for _, id := range disabled {
		if selectors := activeSelectors(g, g.Options[id], lookup); len(selectors) > 0 {
			return nil, errors.New(UnsatisfiableDisableError{Option: g.Options[id].Name, SelectedBy: selectors})
		}
	}

	for _, choice := range g.Choices {
		if err := checkChoice(g, choice, a, values, lookup, disabled); err != nil {
			return nil, err
		}
	}

	return &Assignment{values: values, extra: a.extra, version: a.version + 1}, nil
}

func evalOrYes(e Expr, values valuer) Tristate {
	if e == nil {
		return Yes
	}

	return e.eval(values)
}

// selectLevel returns the strongest level any enabled selector forces on the option.
func selectLevel(opt *Option, values assignmentValues) Tristate {
	level := No

	for _, sel := range opt.SelectedBy {
		selector := triFromValue(values.values[sel.Target])
		level = max(level, min(selector, evalOrYes(sel.Cond, values)))
	}

	return level
}

func activeSelectors(g *Graph, opt *Option, values assignmentValues) []string {
	var names []string

	for _, sel := range opt.SelectedBy {
		if min(triFromValue(values.values[sel.Target]), evalOrYes(sel.Cond, values)) > No {
			names = append(names, g.Options[sel.Target].Name)
		}
	}

	return names
}

func checkChoice(g *Graph, choice *Choice, before *Assignment, after []string, values assignmentValues, disabled []int) error {
	if choice.Optional || len(choice.Members) == 0 || evalOrYes(choice.Depends, values) == No {
		return nil
	}

	hadMember := false

	for _, id := range choice.Members {
		if after[id] != "" {
			return nil
		}

		if before.values[id] != "" {
			hadMember = true
		}
	}

	if !hadMember {
		return nil
	}

	option := ""

	for _, id := range disabled {
		if slices.Contains(choice.Members, id) {
			option = g.Options[id].Name
			break
		}
	}

	if option == "" && len(disabled) > 0 {
		option = g.Options[disabled[0]].Name
	}

	name := choice.Prompt
	if name == "" {
		name = choice.Name
	}

	if name == "" {
		name = choice.Loc.String()
	}

	return errors.New(UnsatisfiableDisableError{Option: option, Choice: name})
}
