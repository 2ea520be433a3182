package engine

import (
	"fmt"

	"github.com/hupe1980/gridstream/schema"
)

// ArrayBuilder accumulates rows and flushes them into an in-memory array as
// fragments. It is a convenience over calling WriteFragment with column-major
// data directly.
type ArrayBuilder struct {
	arr     *MemArray
	pending map[string][]schema.Value
	rows    int
}

// NewArrayBuilder creates a builder over a fresh array.
func NewArrayBuilder(s *schema.Schema, kind schema.ArrayKind) *ArrayBuilder {
	return &ArrayBuilder{
		arr:     NewMemArray(s, kind),
		pending: make(map[string][]schema.Value),
	}
}

// AppendRow buffers one row. Every schema column must be present; nullable
// attributes may carry the null value.
func (b *ArrayBuilder) AppendRow(cells map[string]schema.Value) error {
	for _, name := range b.arr.schema.ColumnNames() {
		if _, ok := cells[name]; !ok {
			return fmt.Errorf("engine: row missing column %q", name)
		}
	}
	for _, name := range b.arr.schema.ColumnNames() {
		b.pending[name] = append(b.pending[name], cells[name])
	}
	b.rows++
	return nil
}

// Pending returns the number of buffered rows not yet flushed.
func (b *ArrayBuilder) Pending() int { return b.rows }

// Flush writes the buffered rows as one fragment at the given timestamp. A
// flush with no buffered rows is a no-op.
func (b *ArrayBuilder) Flush(ts uint64) error {
	return b.FlushAt(ts, ts)
}

// FlushAt writes the buffered rows as one fragment covering a timestamp
// interval.
func (b *ArrayBuilder) FlushAt(tsStart, tsEnd uint64) error {
	if b.rows == 0 {
		return nil
	}
	if err := b.arr.WriteFragmentAt(tsStart, tsEnd, b.pending); err != nil {
		return err
	}
	b.pending = make(map[string][]schema.Value)
	b.rows = 0
	return nil
}

// Array returns the built array. The builder remains usable; further flushes
// append fragments to the same array.
func (b *ArrayBuilder) Array() *MemArray { return b.arr }
