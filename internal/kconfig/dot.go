package kconfig

import (
	"fmt"
	"io"
)

var edgeStyles = map[EdgeKind]string{
	EdgeRequires: "",
	EdgeSelects:  " [style=bold]",
	EdgeParent:   " [style=dashed]",
}

// WriteDot is used to emit a GraphViz compatible definition of the dependency graph.
// Options disabled in the assignment are drawn gray, a nil assignment draws every option plainly.
// With onlyEnabled set, edges touching a disabled option are left out.
func WriteDot(w io.Writer, g *Graph, a *Assignment, onlyEnabled bool) error {
	if _, err := io.WriteString(w, "digraph {\n"); err != nil {
		return err
	}

	for id, opt := range g.Options {
		enabled := a == nil || a.Enabled(id)
		if onlyEnabled && !enabled {
			continue
		}

		style := ""
		if !enabled {
			style = " [color=gray]"
		}

		if _, err := fmt.Fprintf(w, "\t%q%s;\n", opt.Name, style); err != nil {
			return err
		}

		for _, edge := range g.Needs(id) {
			if onlyEnabled && a != nil && !a.Enabled(edge.To) {
				continue
			}

			if _, err := fmt.Fprintf(w, "\t%q -> %q%s;\n", opt.Name, g.Options[edge.To].Name, edgeStyles[edge.Kind]); err != nil {
				return err
			}
		}
	}

	_, err := io.WriteString(w, "}\n")

	return err
}
