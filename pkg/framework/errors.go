package framework

import (
	"fmt"
	"strings"
)

// AggregatedError collects the failures of the tasks of one run.
type AggregatedError struct {
	Errors []error

	// names of the failed tasks, parallel to Errors when set by Runner.
	names []string
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.describe(0)
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = fmt.Sprintf("%d tasks failed:", len(e.Errors))
	for n := range e.Errors {
		msg[n+1] = "  " + e.describe(n)
	}
	return strings.Join(msg, "\n")
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *AggregatedError) describe(n int) string {
	if n < len(e.names) && e.names[n] != "" {
		return e.names[n] + ": " + e.Errors[n].Error()
	}
	return e.Errors[n].Error()
}
