// Package kconfig models a kernel configuration: the option dependency graph read from a Kconfig
// tree, immutable value assignments read from .config files, and the propagation of disables
// through the graph.
//
// The graph is an index arena. Options, menus and choices are addressed by their position in
// the corresponding slice, edges are kept in adjacency lists of edge indices. Cycles are allowed.
package kconfig

import (
	"slices"
	"strings"
)

// EdgeKind tells why an edge exists.
type EdgeKind uint8

const (
	// EdgeRequires means From depends on To.
	EdgeRequires EdgeKind = iota
	// EdgeSelects means From selects To, To must stay on while From is on.
	EdgeSelects
	// EdgeParent means From is only visible under the menuconfig To.
	EdgeParent
)

func (kind EdgeKind) String() string {
	switch kind {
	case EdgeSelects:
		return "selects"
	case EdgeParent:
		return "parent"
	}

	return "requires"
}

// Edge is a directed "From needs To" relation.
type Edge struct {
	// Cond is the `if` clause of a select, nil otherwise.
	Cond Expr
	From int
	To   int
	Kind EdgeKind
}

// Graph is the option dependency graph of one kernel tree. It never changes once loaded.
type Graph struct {
	byName   map[string]int
	MainMenu string
	Options  []*Option
	Menus    []*Menu
	Choices  []*Choice
	Edges    []Edge
	out      [][]int
	in       [][]int
}

func newGraph() *Graph {
	return &Graph{byName: make(map[string]int)}
}

// Len returns the number of options.
func (g *Graph) Len() int {
	return len(g.Options)
}

// Lookup returns the index of the named option.
func (g *Graph) Lookup(name string) (int, bool) {
	id, ok := g.byName[strings.TrimPrefix(name, "CONFIG_")]
	return id, ok
}

// Option returns the option at index id.
func (g *Graph) Option(id int) *Option {
	return g.Options[id]
}

// Needs returns the edges leaving the option, the options it needs.
func (g *Graph) Needs(id int) []Edge {
	return g.edges(g.out[id])
}

// Dependents returns the edges entering the option, the options that need it.
func (g *Graph) Dependents(id int) []Edge {
	return g.edges(g.in[id])
}

func (g *Graph) edges(ids []int) []Edge {
	edges := make([]Edge, len(ids))
	for i, id := range ids {
		edges[i] = g.Edges[id]
	}

	return edges
}

// Names returns the names of the given options in the given order.
func (g *Graph) Names(ids []int) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.Options[id].Name
	}

	return names
}

// IDs resolves option names, unknown names are skipped.
func (g *Graph) IDs(names ...string) []int {
	ids := make([]int, 0, len(names))

	for _, name := range names {
		if id, ok := g.Lookup(name); ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// MenuPath returns the titles of the menus enclosing the option, outermost first.
func (g *Graph) MenuPath(id int) []string {
	var path []string

	for menu := g.Options[id].Menu; menu >= 0; menu = g.Menus[menu].Parent {
		path = append(path, g.Menus[menu].Title)
	}

	slices.Reverse(path)

	return path
}

// MenuOptions returns every option declared in the menu or any menu nested in it, in graph order.
func (g *Graph) MenuOptions(menu int) []int {
	var ids []int

	for id, opt := range g.Options {
		for m := opt.Menu; m >= 0; m = g.Menus[m].Parent {
			if m == menu {
				ids = append(ids, id)
				break
			}
		}
	}

	return ids
}

func (g *Graph) addOption(name string, loc SourceLoc) *Option {
	opt := &Option{
		ID:     len(g.Options),
		Name:   name,
		Loc:    loc,
		Parent: -1,
		Menu:   -1,
		Choice: -1,
	}

	g.Options = append(g.Options, opt)
	g.byName[name] = opt.ID

	return opt
}

func (g *Graph) addEdge(edge Edge) {
	for _, id := range g.out[edge.From] {
		if existing := g.Edges[id]; existing.To == edge.To && existing.Kind == edge.Kind {
			return
		}
	}

	id := len(g.Edges)
	g.Edges = append(g.Edges, edge)
	g.out[edge.From] = append(g.out[edge.From], id)
	g.in[edge.To] = append(g.in[edge.To], id)
}

// buildEdges derives the edge set from the options' dependencies, parents and selects.
func (g *Graph) buildEdges() {
	g.Edges = nil
	g.out = make([][]int, len(g.Options))
	g.in = make([][]int, len(g.Options))

	for _, opt := range g.Options {
		if opt.Parent >= 0 {
			g.addEdge(Edge{From: opt.ID, To: opt.Parent, Kind: EdgeParent})
		}

		References(opt.DependsOn, func(name string, positive bool) {
			to, ok := g.byName[name]
			if !ok || !positive || to == opt.ID || to == opt.Parent {
				return
			}

			g.addEdge(Edge{From: opt.ID, To: to, Kind: EdgeRequires})
		})

		for _, sel := range opt.Selects {
			if sel.Target != opt.ID {
				g.addEdge(Edge{From: opt.ID, To: sel.Target, Kind: EdgeSelects, Cond: sel.Cond})
			}
		}
	}
}

func (g *Graph) finish() {
	for _, opt := range g.Options {
		for _, sel := range opt.Selects {
			target := g.Options[sel.Target]
			target.SelectedBy = append(target.SelectedBy, Select{Target: opt.ID, Cond: sel.Cond})
		}
	}

	g.buildEdges()
}
