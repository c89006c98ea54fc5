package kconfig

import (
	"fmt"
	"strconv"
)

// Kind is the value domain of an option.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBool
	KindTristate
	KindInt
	KindHex
	KindString
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindBool:     "bool",
	KindTristate: "tristate",
	KindInt:      "int",
	KindHex:      "hex",
	KindString:   "string",
}

func (kind Kind) String() string {
	return kindNames[kind]
}

// Tristate is the Kconfig three-valued logic: n < m < y.
type Tristate uint8

const (
	No Tristate = iota
	Mod
	Yes
)

func (tri Tristate) String() string {
	switch tri {
	case Yes:
		return "y"
	case Mod:
		return "m"
	}

	return "n"
}

// triFromValue converts a raw option value into a tristate. Any set non-boolean value counts as y.
func triFromValue(val string) Tristate {
	switch val {
	case "", "n":
		return No
	case "m":
		return Mod
	}

	return Yes
}

// SourceLoc points at a line of a Kconfig or .config file.
type SourceLoc struct {
	File string
	Line int
}

func (loc SourceLoc) String() string {
	if loc.Line == 0 {
		return loc.File
	}

	return loc.File + ":" + strconv.Itoa(loc.Line)
}

// Select is a `select` or reverse dependency of an option.
type Select struct {
	// Cond is the `if` clause, nil when unconditional.
	Cond   Expr
	Target int
}

// Option is one configuration symbol. Its identity is its index in Graph.Options.
type Option struct {
	// DependsOn is the full visibility condition: the option's own `depends on` clauses
	// combined with every enclosing `if`, menu and choice condition. Nil means always visible.
	DependsOn Expr
	Name      string
	Prompt    string
	Loc       SourceLoc
	Selects   []Select
	// SelectedBy holds the reverse of Selects, indexed by selector.
	SelectedBy []Select
	ID         int
	// Parent is the enclosing menuconfig option, -1 if none.
	Parent int
	// Menu is the innermost enclosing menu, -1 for the main menu.
	Menu int
	// Choice is the enclosing choice block, -1 if none.
	Choice int
	Kind   Kind
}

// Prunable reports whether the option can be disabled on its own, only bool and tristate options can.
func (opt *Option) Prunable() bool {
	return opt.Kind == KindBool || opt.Kind == KindTristate
}

func (opt *Option) String() string {
	return fmt.Sprintf("%s (%s, %s)", opt.Name, opt.Kind, opt.Loc)
}

// Menu is a `menu` block, or the subtree of a `menuconfig` option.
type Menu struct {
	Title string
	Loc   SourceLoc
	// Options are the options declared directly in this menu.
	Options []int
	// Config is the menuconfig option, -1 for plain menus.
	Config int
	// Parent is the enclosing menu, -1 for top level menus.
	Parent int
	ID     int
}

// Choice is a `choice` block: at most one of its bool members can be y.
type Choice struct {
	Depends  Expr
	Name     string
	Prompt   string
	Loc      SourceLoc
	Members  []int
	ID       int
	Optional bool
}
