package errortypes

import (
	"strconv"
	"strings"
)

// AggregateError represents one or more errors rolled up under a single message.
type AggregateError struct {
	Message string
	Errors  []error
}

// NewAggregateError builds an AggregateError struct.
func NewAggregateError(msg string, errs []error) AggregateError {
	return AggregateError{
		Message: msg,
		Errors:  errs,
	}
}

// Error implements the standard error interface.
func (e AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(len(e.Errors)))
	if len(e.Errors) == 1 {
		b.WriteString(" error):\n")
	} else {
		b.WriteString(" errors):\n")
	}

	for i, err := range e.Errors {
		b.WriteString("  ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}

	return b.String()
}
