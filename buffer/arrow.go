package buffer

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hupe1980/gridstream/internal/mem"
	"github.com/hupe1980/gridstream/schema"
)

// AsArrow exports the occupied cells as an Arrow array over the buffer's own
// segments. No data is copied except the bit-packing of boolean columns; the
// returned array aliases the buffer and is valid only until the next
// Allocate, Grow, Reset or Release.
func (b *ColumnBuffer) AsArrow() arrow.Array {
	dtype := b.col.Type.Arrow()

	var validityBuf *memory.Buffer
	if b.col.Nullable {
		validityBuf = memory.NewBufferBytes(b.validity[:bitmapBytes(b.cells)])
	}

	var bufs []*memory.Buffer
	switch {
	case b.col.Type.VarLen():
		offsets := mem.AsBytes(b.offsets[:b.cells+1])
		bufs = []*memory.Buffer{
			validityBuf,
			memory.NewBufferBytes(offsets),
			memory.NewBufferBytes(b.data[:b.dataLen]),
		}
	case b.col.Type == schema.TypeBool:
		// Arrow booleans are bit-packed; the engine fills one byte per cell.
		packed := mem.AllocAligned(bitmapBytes(b.cells))
		for i := 0; i < b.cells; i++ {
			if b.data[i] != 0 {
				bitutil.SetBit(packed, i)
			}
		}
		bufs = []*memory.Buffer{validityBuf, memory.NewBufferBytes(packed)}
	default:
		bufs = []*memory.Buffer{validityBuf, memory.NewBufferBytes(b.data[:b.dataLen])}
	}

	data := array.NewData(dtype, b.cells, bufs, nil, b.nullCount, 0)
	defer data.Release()

	return array.MakeFromData(data)
}
