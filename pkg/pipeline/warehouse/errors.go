package warehouse

import "fmt"

// LoadError reports a constraint violation or type coercion failure while
// loading a target table. Fatal; there is no partial-success mode.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
