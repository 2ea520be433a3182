// Package buffer owns the typed result memory for one column of a query:
// a data segment, an optional variable-length offset segment and an optional
// validity bitmap. Buffers are filled from scratch by the storage engine on
// every submission and exported to Arrow without copying the data segment.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow/bitutil"

	"github.com/hupe1980/gridstream/internal/mem"
	"github.com/hupe1980/gridstream/resource"
	"github.com/hupe1980/gridstream/schema"
)

var (
	// ErrResourceExhausted is returned when the memory budget denies an
	// allocation.
	ErrResourceExhausted = errors.New("buffer: resource exhausted")

	// ErrTypeMismatch is returned when a written value's type disagrees with
	// the column's declared type.
	ErrTypeMismatch = errors.New("buffer: type mismatch")

	// ErrNotNullable is returned when a null is written to a non-nullable
	// column.
	ErrNotNullable = errors.New("buffer: column is not nullable")

	// ErrShrink is returned when a grow would reduce capacity. Capacity is
	// monotonic for the lifetime of a query.
	ErrShrink = errors.New("buffer: capacity must not shrink")
)

// DefaultAvgCellBytes is the expected average payload size used to derive
// the offset-segment capacity of variable-length columns. If the estimate is
// too small the buffer simply fills earlier and the query resumes; nothing
// is lost.
const DefaultAvgCellBytes = 32

// ColumnBuffer owns one column's result memory for the lifetime of a query.
//
// A buffer is one of four closed variants, expressed by the column flags
// rather than a type hierarchy: fixed, variable-length, nullable-fixed and
// nullable-variable.
type ColumnBuffer struct {
	col  schema.Column
	ctrl *resource.Controller

	avgCellBytes int

	data     []byte
	offsets  []int64 // var-len only; occupied length is cells+1
	validity []byte  // nullable only; bitmap, one bit per cell

	capacityBytes int // data segment capacity
	capacityCells int

	cells     int // occupied cells, set during engine fill
	dataLen   int // occupied data bytes
	nullCount int

	reserved int64 // bytes acquired from the controller
}

// New creates an unallocated buffer for the given column. ctrl may be nil.
func New(col schema.Column, ctrl *resource.Controller) *ColumnBuffer {
	return &ColumnBuffer{
		col:          col,
		ctrl:         ctrl,
		avgCellBytes: DefaultAvgCellBytes,
	}
}

// SetAvgCellBytes overrides the average payload size hint for variable-length
// columns. Only meaningful before Allocate.
func (b *ColumnBuffer) SetAvgCellBytes(n int) {
	if n > 0 {
		b.avgCellBytes = n
	}
}

// Column returns the column descriptor this buffer serves.
func (b *ColumnBuffer) Column() schema.Column { return b.col }

// Allocate reserves memory for the data, offset and validity segments, sized
// from the column type and the given data-segment byte budget. Any previous
// contents are discarded.
func (b *ColumnBuffer) Allocate(capacityBytes int) error {
	if capacityBytes <= 0 {
		return fmt.Errorf("buffer: column %q: non-positive capacity %d", b.col.Name, capacityBytes)
	}
	if capacityBytes < b.capacityBytes {
		return fmt.Errorf("%w: column %q: %d < %d", ErrShrink, b.col.Name, capacityBytes, b.capacityBytes)
	}

	var capacityCells int
	if b.col.Type.VarLen() {
		capacityCells = capacityBytes / b.avgCellBytes
	} else {
		capacityCells = capacityBytes / b.col.Type.FixedSize()
	}
	if capacityCells < 1 {
		capacityCells = 1
	}

	total := int64(capacityBytes)
	if b.col.Type.VarLen() {
		total += int64(capacityCells+1) * 8
	}
	if b.col.Nullable {
		total += int64(bitmapBytes(capacityCells))
	}

	if !b.ctrl.TryAcquireMemory(total) {
		return fmt.Errorf("%w: column %q: %d bytes denied by memory budget", ErrResourceExhausted, b.col.Name, total)
	}

	// Release the previous reservation only after the new one is granted, so
	// a failed grow leaves the old buffer intact and accounted.
	if b.reserved > 0 {
		b.ctrl.ReleaseMemory(b.reserved)
	}
	b.reserved = total

	b.data = mem.AllocAligned(capacityBytes)
	if b.col.Type.VarLen() {
		b.offsets = mem.AllocAlignedInt64(capacityCells + 1)
	} else {
		b.offsets = nil
	}
	if b.col.Nullable {
		b.validity = mem.AllocAligned(bitmapBytes(capacityCells))
	} else {
		b.validity = nil
	}

	b.capacityBytes = capacityBytes
	b.capacityCells = capacityCells
	b.Reset()

	return nil
}

// Grow reallocates to factor times the current data capacity. Contents are
// discarded; the engine refills the buffer from scratch on resubmission.
func (b *ColumnBuffer) Grow(factor float64) error {
	if b.capacityBytes == 0 {
		return fmt.Errorf("buffer: column %q: grow before allocate", b.col.Name)
	}
	if factor <= 1 {
		return fmt.Errorf("%w: column %q: growth factor %v", ErrShrink, b.col.Name, factor)
	}
	return b.Allocate(int(float64(b.capacityBytes) * factor))
}

// Reset clears occupancy for the next engine fill. Capacity is untouched.
func (b *ColumnBuffer) Reset() {
	b.cells = 0
	b.dataLen = 0
	b.nullCount = 0
	if b.offsets != nil {
		b.offsets[0] = 0
	}
	for i := range b.validity {
		b.validity[i] = 0
	}
}

// Release frees the buffer's memory reservation. The buffer must not be used
// afterwards.
func (b *ColumnBuffer) Release() {
	if b.reserved > 0 {
		b.ctrl.ReleaseMemory(b.reserved)
		b.reserved = 0
	}
	b.data = nil
	b.offsets = nil
	b.validity = nil
	b.capacityBytes = 0
	b.capacityCells = 0
	b.cells = 0
	b.dataLen = 0
	b.nullCount = 0
}

// Cells returns the number of occupied cells.
func (b *ColumnBuffer) Cells() int { return b.cells }

// DataLen returns the occupied data-segment length in bytes.
func (b *ColumnBuffer) DataLen() int { return b.dataLen }

// CapacityBytes returns the data-segment capacity in bytes.
func (b *ColumnBuffer) CapacityBytes() int { return b.capacityBytes }

// CapacityCells returns the cell capacity.
func (b *ColumnBuffer) CapacityCells() int { return b.capacityCells }

// NullCount returns the number of null cells.
func (b *ColumnBuffer) NullCount() int { return b.nullCount }

// Fits reports whether one more cell with the given value would fit.
func (b *ColumnBuffer) Fits(v schema.Value) bool {
	if b.cells >= b.capacityCells {
		return false
	}
	return b.dataLen+v.PayloadSize(b.col.Type) <= b.capacityBytes
}

// WriteCell appends one cell. The caller must have checked Fits for the whole
// row first; WriteCell returns an error, not a partial write, on overflow.
func (b *ColumnBuffer) WriteCell(v schema.Value) error {
	if v.IsNull() {
		if !b.col.Nullable {
			return fmt.Errorf("%w: column %q", ErrNotNullable, b.col.Name)
		}
		return b.writeNull()
	}

	if v.Kind != schema.KindForType(b.col.Type) {
		return fmt.Errorf("%w: column %q: cannot store %s in %s", ErrTypeMismatch, b.col.Name, v.GoString(), b.col.Type)
	}
	if !b.Fits(v) {
		return fmt.Errorf("buffer: column %q: write past capacity", b.col.Name)
	}

	if b.col.Type.VarLen() {
		var payload []byte
		if v.Kind == schema.KindString {
			payload = []byte(v.Str())
		} else {
			payload = v.Raw()
		}
		copy(b.data[b.dataLen:], payload)
		b.dataLen += len(payload)
		b.offsets[b.cells+1] = int64(b.dataLen)
	} else {
		b.putFixed(v)
	}

	if b.col.Nullable {
		bitutil.SetBit(b.validity, b.cells)
	}
	b.cells++
	return nil
}

func (b *ColumnBuffer) writeNull() error {
	if b.cells >= b.capacityCells {
		return fmt.Errorf("buffer: column %q: write past capacity", b.col.Name)
	}

	if b.col.Type.VarLen() {
		// Null var-len cells occupy no payload; the offset repeats.
		b.offsets[b.cells+1] = int64(b.dataLen)
	} else {
		// The data slot stays zeroed; only the validity bit matters.
		size := b.col.Type.FixedSize()
		if b.dataLen+size > b.capacityBytes {
			return fmt.Errorf("buffer: column %q: write past capacity", b.col.Name)
		}
		clear(b.data[b.dataLen : b.dataLen+size])
		b.dataLen += size
	}

	bitutil.ClearBit(b.validity, b.cells)
	b.cells++
	b.nullCount++
	return nil
}

func (b *ColumnBuffer) putFixed(v schema.Value) {
	dst := b.data[b.dataLen:]
	switch b.col.Type {
	case schema.TypeBool:
		if v.B {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case schema.TypeInt8:
		dst[0] = byte(int8(v.I64))
	case schema.TypeInt16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v.I64)))
	case schema.TypeInt32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v.I64)))
	case schema.TypeInt64:
		binary.LittleEndian.PutUint64(dst, uint64(v.I64))
	case schema.TypeUint8:
		dst[0] = byte(v.U64)
	case schema.TypeUint16:
		binary.LittleEndian.PutUint16(dst, uint16(v.U64))
	case schema.TypeUint32:
		binary.LittleEndian.PutUint32(dst, uint32(v.U64))
	case schema.TypeUint64:
		binary.LittleEndian.PutUint64(dst, v.U64)
	case schema.TypeFloat32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v.F64)))
	case schema.TypeFloat64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.F64))
	}
	b.dataLen += b.col.Type.FixedSize()
}

// validate checks the canonical segment invariants. Used by tests and by the
// query layer before a batch becomes visible.
func (b *ColumnBuffer) validate() error {
	if b.cells > b.capacityCells {
		return fmt.Errorf("buffer: column %q: cells %d exceed capacity %d", b.col.Name, b.cells, b.capacityCells)
	}
	if b.dataLen > b.capacityBytes {
		return fmt.Errorf("buffer: column %q: data length %d exceeds capacity %d", b.col.Name, b.dataLen, b.capacityBytes)
	}
	if b.col.Type.VarLen() {
		if b.offsets[b.cells] != int64(b.dataLen) {
			return fmt.Errorf("buffer: column %q: final offset %d != data length %d", b.col.Name, b.offsets[b.cells], b.dataLen)
		}
	}
	return nil
}

// Validate exposes the invariant check.
func (b *ColumnBuffer) Validate() error { return b.validate() }

func bitmapBytes(cells int) int {
	return (cells + 7) / 8
}
