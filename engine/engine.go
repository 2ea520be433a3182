// Package engine defines the storage-engine contract the query layer
// consumes (open an array by URI, submit an encoded request against a set
// of column buffers, get back COMPLETE or INCOMPLETE) and provides the
// in-memory fragment-based reference engine together with snapshot
// persistence over blob storage.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gridstream/buffer"
	"github.com/hupe1980/gridstream/filter"
	"github.com/hupe1980/gridstream/schema"
)

var (
	// ErrNotFound is returned when a URI does not resolve to a readable
	// array.
	ErrNotFound = errors.New("engine: array not found")

	// ErrClosed is returned when an operation is attempted on a closed
	// array handle or query.
	ErrClosed = errors.New("engine: closed")
)

// Status reports whether a submission delivered the remainder of the result.
type Status uint8

const (
	// StatusComplete means the engine has no further rows for this query.
	StatusComplete Status = iota
	// StatusIncomplete means more rows remain; resubmit with the same
	// buffers to continue.
	StatusIncomplete
)

func (s Status) String() string {
	if s == StatusIncomplete {
		return "incomplete"
	}
	return "complete"
}

// ResultOrder is the requested row ordering of query results.
type ResultOrder uint8

const (
	// OrderUnordered lets the engine return rows in its native order. This
	// is the default and the only order the engine never has to sort for.
	OrderUnordered ResultOrder = iota
	// OrderRowMajor sorts rows by dimension values in schema order.
	OrderRowMajor
	// OrderColMajor sorts rows by dimension values in reversed schema order.
	OrderColMajor
)

func (o ResultOrder) String() string {
	switch o {
	case OrderRowMajor:
		return "row-major"
	case OrderColMajor:
		return "column-major"
	default:
		return "unordered"
	}
}

// TimestampRange restricts a query to fragments written within [Start, End].
type TimestampRange struct {
	Start uint64
	End   uint64
}

// Intersects reports whether the fragment interval [s, e] overlaps the range.
func (t TimestampRange) Intersects(s, e uint64) bool {
	return s <= t.End && e >= t.Start
}

// Contains reports whether [s, e] lies fully within the range.
func (t TimestampRange) Contains(s, e uint64) bool {
	return s >= t.Start && e <= t.End
}

// Request is the encoded form of one logical query. It is built once by the
// query layer and never re-encoded on resume; the engine tracks resumption
// state internally.
type Request struct {
	// Columns are the output columns, in batch order.
	Columns []string

	// Points and Ranges are per-dimension selections, unioned within a
	// dimension and intersected across dimensions. A dimension absent from
	// both maps is unconstrained.
	Points map[string][]schema.Value
	Ranges map[string][]schema.Range

	// Predicate is an optional pushdown filter over attribute columns. It
	// must have been validated against the array schema.
	Predicate filter.Condition

	// Order is the requested result order.
	Order ResultOrder

	// Timestamp optionally restricts the read to a write-timestamp range.
	Timestamp *TimestampRange
}

// Result reports the outcome of one submission.
type Result struct {
	Status Status

	// Cells is the per-column row count delivered by this submission. The
	// engine guarantees row correspondence: the same index in every
	// column's buffer refers to the same logical row.
	Cells map[string]int

	// Starved lists columns whose buffer could not hold even one row's
	// payload. Only set on an incomplete submission that delivered zero
	// rows; the caller is expected to grow these buffers and retry.
	Starved []string
}

// FragmentInfo describes one immutable write batch of an array.
type FragmentInfo struct {
	CellCount      uint64
	TimestampStart uint64
	TimestampEnd   uint64

	// Domain0 is the non-empty domain on the first dimension.
	Domain0 schema.Range
}

// Engine resolves URIs to array handles.
type Engine interface {
	// Open opens the array at uri for reading. The returned handle is owned
	// by the caller and must be closed exactly once.
	Open(ctx context.Context, uri string) (Array, error)
}

// Array is an opened, read-only handle to a dimensioned array.
type Array interface {
	// URI returns the URI the array was opened from.
	URI() string

	// Schema returns the array's immutable schema.
	Schema() *schema.Schema

	// Kind reports whether the array is sparse or dense.
	Kind() schema.ArrayKind

	// Fragments returns metadata for the array's write batches, in write
	// order.
	Fragments() []FragmentInfo

	// NewQuery prepares a query for this array. The request is captured by
	// reference and must not be mutated afterwards.
	NewQuery(req *Request) (Query, error)

	// Close releases the handle.
	Close() error
}

// Query is one prepared query with engine-managed resumption state.
type Query interface {
	// Submit fills the given buffers with the next stretch of result rows.
	// Buffers are reset and refilled from scratch on every call; the engine
	// continues from where the previous submission left off.
	Submit(ctx context.Context, bufs map[string]*buffer.ColumnBuffer) (Result, error)

	// Close discards the query's resumption state.
	Close() error
}

func validateRequest(s *schema.Schema, req *Request) error {
	if len(req.Columns) == 0 {
		return fmt.Errorf("engine: request selects no columns")
	}
	for _, name := range req.Columns {
		if _, ok := s.Column(name); !ok {
			return fmt.Errorf("engine: request references unknown column %q", name)
		}
	}
	for dim := range req.Points {
		if !s.HasDimension(dim) {
			return fmt.Errorf("engine: point selection on unknown dimension %q", dim)
		}
	}
	for dim := range req.Ranges {
		if !s.HasDimension(dim) {
			return fmt.Errorf("engine: range selection on unknown dimension %q", dim)
		}
	}
	if req.Timestamp != nil && req.Timestamp.Start > req.Timestamp.End {
		return fmt.Errorf("engine: timestamp range start %d > end %d", req.Timestamp.Start, req.Timestamp.End)
	}
	return nil
}
