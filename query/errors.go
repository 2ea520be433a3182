package query

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gridstream/schema"
)

var (
	// ErrQueryAlreadyComplete is returned when a complete query is
	// submitted again.
	ErrQueryAlreadyComplete = errors.New("query already complete")

	// ErrQueryClosed is returned when a closed query is used.
	ErrQueryClosed = errors.New("query closed")

	// ErrQueryNotSubmitted is returned by Resume before the first Submit.
	ErrQueryNotSubmitted = errors.New("query not submitted")

	// ErrRowTooLarge is returned when a single row cannot fit in a buffer
	// even at the maximum byte budget.
	ErrRowTooLarge = errors.New("row exceeds maximum buffer budget")

	// ErrSelectionFrozen is returned when columns, selections or the
	// predicate are changed after the first submission.
	ErrSelectionFrozen = errors.New("selection cannot change after submit")
)

// ErrUnknownColumn indicates a column name absent from the array schema.
type ErrUnknownColumn struct {
	Name string
}

func (e *ErrUnknownColumn) Error() string {
	return fmt.Sprintf("unknown column: %q", e.Name)
}

// ErrUnknownDimension indicates a selection on a name that is not a
// dimension of the array.
type ErrUnknownDimension struct {
	Name string
}

func (e *ErrUnknownDimension) Error() string {
	return fmt.Sprintf("unknown dimension: %q", e.Name)
}

// ErrTypeMismatch indicates a selection value incompatible with the
// dimension's type.
type ErrTypeMismatch struct {
	Dimension string
	Expected  schema.Type
	Actual    schema.ValueKind
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch on dimension %q: expected %s, got %s", e.Dimension, e.Expected, e.Actual)
}

// ErrInvalidPredicate indicates a predicate that failed schema validation.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidPredicate struct {
	Reason string
	cause  error
}

func (e *ErrInvalidPredicate) Error() string {
	return fmt.Sprintf("invalid predicate: %s", e.Reason)
}

func (e *ErrInvalidPredicate) Unwrap() error { return e.cause }
