package workload

import (
	"fmt"
	"reflect"
)

type PanicWhileParsingError struct {
	RecoveredValue any
	File           string
}

func (err PanicWhileParsingError) Error() string {
	return fmt.Sprintf("Recovering panic while parsing '%s'. Got error of type '%v': %v", err.File, reflect.TypeOf(err.RecoveredValue), err.RecoveredValue)
}

// InvalidCommandError is returned for a stage command that is neither a string nor a list of strings.
type InvalidCommandError struct {
	Stage  string
	Reason string
}

func (err InvalidCommandError) Error() string {
	return fmt.Sprintf("Invalid command in %s block: %s", err.Stage, err.Reason)
}

// MissingBlockError is returned when a required block is absent.
type MissingBlockError struct {
	File  string
	Block string
}

func (err MissingBlockError) Error() string {
	return fmt.Sprintf("%s: a %s block is required", err.File, err.Block)
}
