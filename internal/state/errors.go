package state

import "fmt"

// LockedError is returned when another run holds the state directory.
type LockedError struct {
	Dir string
}

func (err LockedError) Error() string {
	return fmt.Sprintf("State directory %s is locked by another kdice run", err.Dir)
}

// ResumeMismatchError is returned when the state directory belongs to a run with different inputs.
type ResumeMismatchError struct {
	Field     string
	Persisted string
	Current   string
}

func (err ResumeMismatchError) Error() string {
	return fmt.Sprintf("State directory was created for %s %q, not %q; use --fresh to start over", err.Field, err.Persisted, err.Current)
}
