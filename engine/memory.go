package engine

import (
	"fmt"
	"sync"

	"github.com/hupe1980/gridstream/schema"
)

// MemArray is the in-memory reference array: an immutable schema plus an
// append-only sequence of fragments. Safe for concurrent readers; writes and
// reads must not overlap (arrays are written fully before being queried).
type MemArray struct {
	uri    string
	schema *schema.Schema
	kind   schema.ArrayKind

	mu    sync.RWMutex
	frags []*fragment
}

// fragment is one immutable write batch, stored column-major.
type fragment struct {
	tsStart uint64
	tsEnd   uint64
	cols    map[string][]schema.Value
	n       int
	domain0 schema.Range
}

// NewMemArray creates an empty in-memory array.
func NewMemArray(s *schema.Schema, kind schema.ArrayKind) *MemArray {
	return &MemArray{schema: s, kind: kind}
}

// Schema returns the array schema.
func (a *MemArray) Schema() *schema.Schema { return a.schema }

// Kind returns the array kind.
func (a *MemArray) Kind() schema.ArrayKind { return a.kind }

// WriteFragment appends one write batch at a single timestamp. cols must
// contain every schema column with equal lengths; nulls are allowed only in
// nullable attributes.
func (a *MemArray) WriteFragment(ts uint64, cols map[string][]schema.Value) error {
	return a.WriteFragmentAt(ts, ts, cols)
}

// WriteFragmentAt appends one write batch covering a timestamp interval.
// Intervals wider than a single instant arise from consolidating fragments
// written at different times.
func (a *MemArray) WriteFragmentAt(tsStart, tsEnd uint64, cols map[string][]schema.Value) error {
	if tsStart > tsEnd {
		return fmt.Errorf("engine: fragment timestamp start %d > end %d", tsStart, tsEnd)
	}

	frag := &fragment{
		tsStart: tsStart,
		tsEnd:   tsEnd,
		cols:    make(map[string][]schema.Value, len(cols)),
		n:       -1,
	}

	for _, name := range a.schema.ColumnNames() {
		col, _ := a.schema.Column(name)
		values, ok := cols[name]
		if !ok {
			return fmt.Errorf("engine: fragment missing column %q", name)
		}
		if frag.n >= 0 && len(values) != frag.n {
			return fmt.Errorf("engine: fragment column %q has %d cells, want %d", name, len(values), frag.n)
		}
		frag.n = len(values)

		for i, v := range values {
			if v.IsNull() {
				if !col.Nullable {
					return fmt.Errorf("engine: null in non-nullable column %q at cell %d", name, i)
				}
				continue
			}
			if !v.AssignableTo(col.Type) {
				return fmt.Errorf("engine: column %q cell %d: %s not assignable to %s", name, i, v.GoString(), col.Type)
			}
		}

		frag.cols[name] = append([]schema.Value(nil), values...)
	}

	if frag.n <= 0 {
		return fmt.Errorf("engine: empty fragment")
	}

	dim0 := a.schema.Dimensions()[0].Name
	values := frag.cols[dim0]
	frag.domain0 = schema.Range{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		if schema.Compare(v, frag.domain0.Min) < 0 {
			frag.domain0.Min = v
		}
		if schema.Compare(v, frag.domain0.Max) > 0 {
			frag.domain0.Max = v
		}
	}

	a.mu.Lock()
	a.frags = append(a.frags, frag)
	a.mu.Unlock()
	return nil
}

// Fragments returns metadata for all fragments in write order.
func (a *MemArray) Fragments() []FragmentInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	infos := make([]FragmentInfo, len(a.frags))
	for i, f := range a.frags {
		infos[i] = FragmentInfo{
			CellCount:      uint64(f.n),
			TimestampStart: f.tsStart,
			TimestampEnd:   f.tsEnd,
			Domain0:        f.domain0,
		}
	}
	return infos
}

func (a *MemArray) fragments() []*fragment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*fragment(nil), a.frags...)
}

// arrayHandle is one opened reference to a MemArray. Closing the handle does
// not affect the underlying array or other handles.
type arrayHandle struct {
	uri    string
	arr    *MemArray
	closed bool
}

var _ Array = (*arrayHandle)(nil)

func (h *arrayHandle) URI() string { return h.uri }

func (h *arrayHandle) Schema() *schema.Schema { return h.arr.schema }

func (h *arrayHandle) Kind() schema.ArrayKind { return h.arr.kind }

func (h *arrayHandle) Fragments() []FragmentInfo { return h.arr.Fragments() }

func (h *arrayHandle) NewQuery(req *Request) (Query, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if err := validateRequest(h.arr.schema, req); err != nil {
		return nil, err
	}
	return &memQuery{arr: h.arr, req: req}, nil
}

func (h *arrayHandle) Close() error {
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	return nil
}
