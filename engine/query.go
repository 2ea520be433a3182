package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridstream/buffer"
	"github.com/hupe1980/gridstream/filter"
	"github.com/hupe1980/gridstream/schema"
)

// rowRef addresses one matching cell: a fragment and a local row index.
type rowRef struct {
	frag *fragment
	idx  int
}

// memQuery executes one request against a MemArray. The matching row set is
// planned on the first submission; the cursor carries resumption state across
// submissions.
type memQuery struct {
	arr *MemArray
	req *Request

	planned bool
	rows    []rowRef
	cursor  int

	closed bool
}

var _ Query = (*memQuery)(nil)

func (q *memQuery) Submit(ctx context.Context, bufs map[string]*buffer.ColumnBuffer) (Result, error) {
	if q.closed {
		return Result{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for _, name := range q.req.Columns {
		if _, ok := bufs[name]; !ok {
			return Result{}, fmt.Errorf("engine: no buffer for column %q", name)
		}
	}

	if !q.planned {
		q.plan()
	}

	for _, name := range q.req.Columns {
		bufs[name].Reset()
	}

	written := 0
	var starved []string
	for q.cursor < len(q.rows) {
		ref := q.rows[q.cursor]

		// A row becomes visible only if every column's buffer can take its
		// cell; this keeps row indices aligned across columns.
		fits := true
		for _, name := range q.req.Columns {
			if !bufs[name].Fits(ref.frag.cols[name][ref.idx]) {
				fits = false
				if written == 0 {
					starved = append(starved, name)
				}
			}
		}
		if !fits {
			break
		}

		for _, name := range q.req.Columns {
			if err := bufs[name].WriteCell(ref.frag.cols[name][ref.idx]); err != nil {
				return Result{}, err
			}
		}
		written++
		q.cursor++
	}

	res := Result{
		Status: StatusComplete,
		Cells:  make(map[string]int, len(q.req.Columns)),
	}
	for _, name := range q.req.Columns {
		res.Cells[name] = written
	}
	if q.cursor < len(q.rows) {
		res.Status = StatusIncomplete
		if written == 0 {
			res.Starved = starved
		}
	}
	return res, nil
}

func (q *memQuery) Close() error {
	if q.closed {
		return ErrClosed
	}
	q.closed = true
	q.rows = nil
	return nil
}

// plan evaluates selections and the predicate into the ordered matching row
// set. Selections are evaluated per fragment with roaring bitmaps: union of
// points/ranges within a dimension, intersection across dimensions.
func (q *memQuery) plan() {
	q.planned = true

	for _, frag := range q.arr.fragments() {
		if q.req.Timestamp != nil && !q.req.Timestamp.Intersects(frag.tsStart, frag.tsEnd) {
			continue
		}

		matches := q.matchFragment(frag)
		it := matches.Iterator()
		for it.HasNext() {
			q.rows = append(q.rows, rowRef{frag: frag, idx: int(it.Next())})
		}
	}

	switch q.req.Order {
	case OrderRowMajor:
		q.sortRows(q.dimOrder(false))
	case OrderColMajor:
		q.sortRows(q.dimOrder(true))
	}
}

func (q *memQuery) matchFragment(frag *fragment) *roaring.Bitmap {
	matches := roaring.New()
	matches.AddRange(0, uint64(frag.n))

	for _, dim := range q.arr.schema.Dimensions() {
		points := q.req.Points[dim.Name]
		ranges := q.req.Ranges[dim.Name]
		if len(points) == 0 && len(ranges) == 0 {
			continue
		}

		sel := roaring.New()
		values := frag.cols[dim.Name]
		for i, v := range values {
			if matchDim(v, points, ranges) {
				sel.Add(uint32(i))
			}
		}
		matches.And(sel)

		if matches.IsEmpty() {
			return matches
		}
	}

	if q.req.Predicate != nil {
		sel := roaring.New()
		it := matches.Iterator()
		for it.HasNext() {
			i := int(it.Next())
			if q.req.Predicate.Matches(fragmentLookup(frag, i)) {
				sel.Add(uint32(i))
			}
		}
		matches = sel
	}

	return matches
}

func matchDim(v schema.Value, points []schema.Value, ranges []schema.Range) bool {
	for _, p := range points {
		if schema.Equal(v, p) {
			return true
		}
	}
	for _, r := range ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

func fragmentLookup(frag *fragment, idx int) filter.Lookup {
	return func(column string) (schema.Value, bool) {
		values, ok := frag.cols[column]
		if !ok {
			return schema.Value{}, false
		}
		v := values[idx]
		if v.IsNull() {
			return schema.Value{}, false
		}
		return v, true
	}
}

// dimOrder returns the dimension comparison priority: schema order for
// row-major, reversed for column-major.
func (q *memQuery) dimOrder(reversed bool) []string {
	dims := q.arr.schema.Dimensions()
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
	}
	if reversed {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}
	return names
}

func (q *memQuery) sortRows(dims []string) {
	sort.SliceStable(q.rows, func(i, j int) bool {
		a, b := q.rows[i], q.rows[j]
		for _, dim := range dims {
			c := schema.Compare(a.frag.cols[dim][a.idx], b.frag.cols[dim][b.idx])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}
