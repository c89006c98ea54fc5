package validator

import "fmt"

// OracleUnavailableError is returned when the oracle could not be run at all.
type OracleUnavailableError struct {
	Err    error
	Reason string
}

func (err OracleUnavailableError) Error() string {
	if err.Err == nil {
		return "Oracle unavailable: " + err.Reason
	}

	return fmt.Sprintf("Oracle unavailable: %s: %v", err.Reason, err.Err)
}

func (err OracleUnavailableError) Unwrap() error {
	return err.Err
}

// ExitStatus keeps the exit status of a failed stage command from becoming the app's.
func (err OracleUnavailableError) ExitStatus() int {
	return 1
}
