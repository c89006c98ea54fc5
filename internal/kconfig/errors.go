package kconfig

import (
	"fmt"
	"strings"
)

// ParseError is returned when a Kconfig or .config file cannot be read.
type ParseError struct {
	Loc SourceLoc
	Msg string
}

func (err ParseError) Error() string {
	return fmt.Sprintf("%s: %s", err.Loc, err.Msg)
}

// UnsatisfiableDisableError is returned by Propagate when the requested options cannot be turned off.
type UnsatisfiableDisableError struct {
	// Option is the option that stays on.
	Option string
	// SelectedBy lists the enabled options that still select Option.
	SelectedBy []string
	// Choice is set when disabling would leave a mandatory choice without any member.
	Choice string
}

func (err UnsatisfiableDisableError) Error() string {
	if err.Choice != "" {
		return fmt.Sprintf("disabling %s leaves choice %q without any enabled member", err.Option, err.Choice)
	}

	return fmt.Sprintf("%s cannot be disabled, it is selected by %s", err.Option, strings.Join(err.SelectedBy, ", "))
}
