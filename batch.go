package gridstream

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hupe1980/gridstream/buffer"
	"github.com/hupe1980/gridstream/schema"
)

// Batch is one stretch of result rows in columnar form. The same index in
// every column refers to the same logical row. A batch borrows the reader's
// buffers and is valid until the next ReadNext or Close.
type Batch struct {
	columns []string
	arrays  map[string]arrow.Array
	rows    int
	schema  *arrow.Schema
}

func newBatch(s *schema.Schema, columns []string, bufs map[string]*buffer.ColumnBuffer, rows int) *Batch {
	b := &Batch{
		columns: columns,
		arrays:  make(map[string]arrow.Array, len(columns)),
		rows:    rows,
		schema:  s.ArrowSchema(columns),
	}
	for _, name := range columns {
		b.arrays[name] = bufs[name].AsArrow()
	}
	return b
}

// NumRows returns the shared row count of the batch.
func (b *Batch) NumRows() int { return b.rows }

// ColumnNames returns the column names in batch order.
func (b *Batch) ColumnNames() []string { return b.columns }

// Column returns the named column as an Arrow array, nil if the batch does
// not carry it.
func (b *Batch) Column(name string) arrow.Array { return b.arrays[name] }

// Record assembles the batch into an Arrow record sharing the batch's column
// memory. The caller must release it.
func (b *Batch) Record() arrow.Record {
	cols := make([]arrow.Array, len(b.columns))
	for i, name := range b.columns {
		cols[i] = b.arrays[name]
	}
	return array.NewRecord(b.schema, cols, int64(b.rows))
}

func (b *Batch) release() {
	for _, arr := range b.arrays {
		arr.Release()
	}
	b.arrays = nil
}
