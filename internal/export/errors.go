package export

import (
	"errors"
	"fmt"
	"strings"

	"pkt.systems/measurements/internal/loader"
)

// CollectionError ties a failure to the collection it came from.
type CollectionError struct {
	Source string
	Err    error
}

func (e *CollectionError) Error() string {
	var se *loader.SourceError
	if errors.As(e.Err, &se) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// LoadAggregateError is the terminal error of a run in which at least one
// collection failed. Causes holds every underlying failure in report order.
type LoadAggregateError struct {
	Causes []error
}

func (e *LoadAggregateError) Error() string {
	return "Loading of collection TSV was unsuccessful. See detailed errors above."
}

func (e *LoadAggregateError) Unwrap() []error { return e.Causes }

// ConcatError is the terminal error of a failed concat run.
type ConcatError struct {
	Causes []error
}

func (e *ConcatError) Error() string {
	return "Concatenation of measurements JSON files was unsuccessful. See detailed errors above."
}

func (e *ConcatError) Unwrap() []error { return e.Causes }

// UnknownDefaultCollectionError reports a default collection that names no
// collection of the document.
type UnknownDefaultCollectionError struct {
	Key       string
	Available []string
}

func (e *UnknownDefaultCollectionError) Error() string {
	return fmt.Sprintf("Default collection %q does not match any collection key (available: %s).",
		e.Key, strings.Join(e.Available, ", "))
}

// SchemaViolationError reports a document that does not match the
// measurements JSON schema.
type SchemaViolationError struct {
	Source  string
	Pointer string
	Reason  string
}

func (e *SchemaViolationError) Error() string {
	where := e.Pointer
	if where == "" {
		where = "/"
	}
	if e.Source != "" {
		return fmt.Sprintf("%s does not match the measurements schema at %q: %s", e.Source, where, e.Reason)
	}
	return fmt.Sprintf("output does not match the measurements schema at %q: %s", where, e.Reason)
}
