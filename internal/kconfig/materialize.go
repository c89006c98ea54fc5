package kconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

const dotConfigHeader = "#\n# Automatically generated by kdice; DO NOT EDIT.\n#\n"

// Materialize renders the assignment as .config text. The output only depends on the graph and
// the values: options in graph order, then unknown symbols of the source file sorted by name.
// Disabled bool and tristate options are written as `# CONFIG_X is not set` so that the kernel
// build does not turn their defaults back on.
func Materialize(g *Graph, a *Assignment) string {
	var sb strings.Builder

	sb.WriteString(dotConfigHeader)

	for id, opt := range g.Options {
		writeLine(&sb, opt.Name, a.values[id], opt.Prunable())
	}

	names := make([]string, 0, len(a.extra))
	for name := range a.extra {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		writeLine(&sb, name, a.extra[name], true)
	}

	return sb.String()
}

func writeLine(sb *strings.Builder, name, val string, writeNotSet bool) {
	switch {
	case val != "":
		sb.WriteString(configPrefix + name + "=" + val + "\n")
	case writeNotSet:
		sb.WriteString("# " + configPrefix + name + notSetSuffix + "\n")
	}
}

// Hash returns the hex encoded SHA-256 of the config text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Diff returns the options whose enabled state differs between a and b, in graph order.
func Diff(a, b *Assignment) []int {
	var ids []int

	for id := range a.values {
		if (a.values[id] != "") != (b.values[id] != "") {
			ids = append(ids, id)
		}
	}

	return ids
}
