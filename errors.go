package gridstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/gridstream/buffer"
	"github.com/hupe1980/gridstream/engine"
	"github.com/hupe1980/gridstream/query"
	"github.com/hupe1980/gridstream/schema"
)

var (
	// ErrNotFound is returned when a URI does not resolve to a readable array.
	ErrNotFound = errors.New("array not found")

	// ErrRowTooLarge is returned when a single row cannot fit in a column
	// buffer even at the maximum byte budget.
	ErrRowTooLarge = errors.New("row exceeds maximum buffer budget")

	// ErrResourceExhausted is returned when a buffer allocation is denied by
	// the shared memory budget.
	ErrResourceExhausted = errors.New("resource budget exhausted")

	// ErrQueryAlreadyComplete is returned when reading past a completed query
	// through anything other than ReadNext, which reports io.EOF instead.
	ErrQueryAlreadyComplete = errors.New("query already complete")

	// ErrQueryClosed is returned when a closed reader is used.
	ErrQueryClosed = errors.New("reader closed")

	// ErrInvalidTimestampRange is returned when a timestamp range has
	// start > end.
	ErrInvalidTimestampRange = errors.New("invalid timestamp range")
)

// ErrUnknownColumn indicates a column name absent from the array schema.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnknownColumn struct {
	Name  string
	cause error
}

func (e *ErrUnknownColumn) Error() string {
	return fmt.Sprintf("unknown column: %q", e.Name)
}

func (e *ErrUnknownColumn) Unwrap() error { return e.cause }

// ErrUnknownDimension indicates a selection on a name that is not a dimension
// of the array.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrUnknownDimension struct {
	Name  string
	cause error
}

func (e *ErrUnknownDimension) Error() string {
	return fmt.Sprintf("unknown dimension: %q", e.Name)
}

func (e *ErrUnknownDimension) Unwrap() error { return e.cause }

// ErrTypeMismatch indicates a selection value incompatible with the
// dimension's type.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrTypeMismatch struct {
	Dimension string
	Expected  schema.Type
	Actual    schema.ValueKind
	cause     error
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch on dimension %q: expected %s, got %s", e.Dimension, e.Expected, e.Actual)
}

func (e *ErrTypeMismatch) Unwrap() error { return e.cause }

// ErrInvalidPredicate indicates a predicate that failed schema validation.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidPredicate struct {
	Reason string
	cause  error
}

func (e *ErrInvalidPredicate) Error() string {
	return fmt.Sprintf("invalid predicate: %s", e.Reason)
}

func (e *ErrInvalidPredicate) Unwrap() error { return e.cause }

// EngineError wraps a storage-engine failure that has no more specific public
// kind.
//
// The original underlying error can be accessed via errors.Unwrap.
type EngineError struct {
	cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s", e.cause)
}

func (e *EngineError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Lifecycle normalization.
	if errors.Is(err, query.ErrQueryAlreadyComplete) {
		return fmt.Errorf("%w: %w", ErrQueryAlreadyComplete, err)
	}
	if errors.Is(err, query.ErrQueryClosed) || errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrQueryClosed, err)
	}

	// Budget normalization.
	if errors.Is(err, query.ErrRowTooLarge) {
		return fmt.Errorf("%w: %w", ErrRowTooLarge, err)
	}
	if errors.Is(err, buffer.ErrResourceExhausted) {
		return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}

	// Selection argument normalization.
	var uc *query.ErrUnknownColumn
	if errors.As(err, &uc) {
		return &ErrUnknownColumn{Name: uc.Name, cause: err}
	}
	var ud *query.ErrUnknownDimension
	if errors.As(err, &ud) {
		return &ErrUnknownDimension{Name: ud.Name, cause: err}
	}
	var tm *query.ErrTypeMismatch
	if errors.As(err, &tm) {
		return &ErrTypeMismatch{Dimension: tm.Dimension, Expected: tm.Expected, Actual: tm.Actual, cause: err}
	}
	var ip *query.ErrInvalidPredicate
	if errors.As(err, &ip) {
		return &ErrInvalidPredicate{Reason: ip.Reason, cause: err}
	}

	return err
}

// translateEngineError additionally wraps errors with no public kind in
// EngineError, leaving io.EOF and context errors untouched.
func translateEngineError(err error) error {
	translated := translateError(err)
	if translated == nil || translated != err {
		return translated
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &EngineError{cause: err}
}
