package quality

import "fmt"

// InvalidInputError reports a precondition violation on the input table.
type InvalidInputError struct {
	Table  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("quality: invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("quality: invalid input: table %q: %s", e.Table, e.Reason)
}
