package gridstream

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/gridstream/engine"
	"github.com/hupe1980/gridstream/query"
	"github.com/hupe1980/gridstream/schema"
)

// Reader streams the result of one query over a dimensioned array as a
// sequence of columnar batches. Batch boundaries are a buffer-capacity
// artifact, not a semantic one; concatenating all batches yields the full
// result in the requested order.
//
// A Reader is driven strictly sequentially and is not safe for concurrent
// use. Independent Readers over the same array are.
type Reader struct {
	uri string
	arr engine.Array
	mq  *query.ManagedQuery
	cfg query.Config

	timestamp *engine.TimestampRange
	logger    *Logger
	metrics   MetricsCollector

	batch   *Batch
	started bool
	closed  bool
}

// Open resolves uri through the configured engine and prepares the query
// described by the options. The selection is frozen at this point.
func Open(ctx context.Context, uri string, optFns ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	if o.timestamp != nil && o.timestamp.Start > o.timestamp.End {
		return nil, fmt.Errorf("%w: start %d > end %d", ErrInvalidTimestampRange, o.timestamp.Start, o.timestamp.End)
	}

	start := time.Now()
	arr, err := o.engine.Open(ctx, uri)
	o.metrics.RecordOpen(time.Since(start), err)
	if err != nil {
		return nil, translateEngineError(err)
	}

	mq := query.New(arr, o.queryConfig())
	if err := configureQuery(mq, &o); err != nil {
		mq.Close()
		arr.Close()
		return nil, translateError(err)
	}

	o.logger.WithURI(uri).Debug("array opened",
		"kind", arr.Kind().String(),
		"columns", len(mq.Columns()),
		"fragments", len(arr.Fragments()),
	)

	return &Reader{
		uri:       uri,
		arr:       arr,
		mq:        mq,
		cfg:       o.queryConfig(),
		timestamp: o.timestamp,
		logger:    o.logger.WithURI(uri),
		metrics:   o.metrics,
	}, nil
}

func configureQuery(mq *query.ManagedQuery, o *options) error {
	if len(o.columns) > 0 {
		if err := mq.SelectColumns(o.columns...); err != nil {
			return err
		}
	}
	for dim, values := range o.points {
		if err := mq.SetPoints(dim, values...); err != nil {
			return err
		}
	}
	for dim, ranges := range o.ranges {
		if err := mq.SetRanges(dim, ranges...); err != nil {
			return err
		}
	}
	if o.predicate != nil {
		if err := mq.SetPredicate(o.predicate); err != nil {
			return err
		}
	}
	if err := mq.SetResultOrder(o.order); err != nil {
		return err
	}
	if o.timestamp != nil {
		if err := mq.SetTimestampRange(*o.timestamp); err != nil {
			return err
		}
	}
	return nil
}

// URI returns the URI the reader was opened from.
func (r *Reader) URI() string { return r.uri }

// Schema returns the array schema.
func (r *Reader) Schema() *schema.Schema { return r.arr.Schema() }

// ReadNext returns the next batch of result rows. The first call always
// returns a batch, possibly empty, even when it already carries the whole
// result; once the final batch has been delivered, further calls return
// io.EOF. The returned batch is valid until the next ReadNext or Close.
func (r *Reader) ReadNext(ctx context.Context) (*Batch, error) {
	if r.closed {
		return nil, ErrQueryClosed
	}

	if r.batch != nil {
		r.batch.release()
		r.batch = nil
	}
	if r.started && r.mq.IsComplete() {
		return nil, io.EOF
	}

	start := time.Now()
	growsBefore := r.mq.Grows()

	var err error
	if r.started {
		err = r.mq.Resume(ctx)
	} else {
		err = r.mq.Submit(ctx)
	}

	bufs, rows := r.mq.Results()
	r.metrics.RecordBatch(rows, r.mq.Grows()-growsBefore, time.Since(start), err)
	if err != nil {
		return nil, translateEngineError(err)
	}
	r.started = true

	r.logger.Debug("batch delivered",
		"rows", rows,
		"complete", r.mq.IsComplete(),
	)

	r.batch = newBatch(r.arr.Schema(), r.mq.Columns(), bufs, rows)
	return r.batch, nil
}

// IsComplete reports whether all result rows have been delivered. Idempotent;
// repeated calls do not advance the read.
func (r *Reader) IsComplete() bool {
	return r.mq.IsComplete()
}

// NNZ returns the number of stored cells in the array, independent of the
// reader's selection. Sparse arrays only.
//
// When fragment metadata shows non-overlapping first-dimension domains, the
// count is the sum of per-fragment cell counts. Overlapping or consolidated
// fragments fall back to a counting read over the first dimension.
func (r *Reader) NNZ(ctx context.Context) (count uint64, err error) {
	if r.closed {
		return 0, ErrQueryClosed
	}
	if r.arr.Kind() != schema.KindSparse {
		return 0, fmt.Errorf("gridstream: cell count requires a sparse array, got %s", r.arr.Kind())
	}

	start := time.Now()
	defer func() { r.metrics.RecordNNZ(time.Since(start), err) }()

	relevant, exact := r.relevantFragments()
	if exact && !domainsOverlap(relevant) {
		var total uint64
		for _, f := range relevant {
			total += f.CellCount
		}
		r.logger.Debug("cell count from fragment metadata", "count", total)
		return total, nil
	}

	return r.nnzSlow(ctx)
}

// relevantFragments filters fragments by the reader's timestamp range. exact
// is false when a fragment only partially overlaps the range, in which case
// its metadata cell count cannot be trusted.
func (r *Reader) relevantFragments() (frags []engine.FragmentInfo, exact bool) {
	exact = true
	for _, f := range r.arr.Fragments() {
		if r.timestamp == nil || r.timestamp.Contains(f.TimestampStart, f.TimestampEnd) {
			frags = append(frags, f)
			continue
		}
		if r.timestamp.Intersects(f.TimestampStart, f.TimestampEnd) {
			exact = false
		}
	}
	return frags, exact
}

func domainsOverlap(frags []engine.FragmentInfo) bool {
	for i, a := range frags {
		for _, b := range frags[i+1:] {
			if schema.Compare(a.Domain0.Min, b.Domain0.Max) <= 0 &&
				schema.Compare(b.Domain0.Min, a.Domain0.Max) <= 0 {
				return true
			}
		}
	}
	return false
}

// nnzSlow counts cells by reading the first dimension.
func (r *Reader) nnzSlow(ctx context.Context) (uint64, error) {
	dim0 := r.arr.Schema().Dimensions()[0].Name

	mq := query.New(r.arr, r.cfg)
	defer mq.Close()

	if err := mq.SelectColumns(dim0); err != nil {
		return 0, translateError(err)
	}
	if r.timestamp != nil {
		if err := mq.SetTimestampRange(*r.timestamp); err != nil {
			return 0, translateError(err)
		}
	}

	var total uint64
	if err := mq.Submit(ctx); err != nil {
		return 0, translateEngineError(err)
	}
	for {
		_, rows := mq.Results()
		total += uint64(rows)
		if mq.IsComplete() {
			r.logger.Debug("cell count from counting read", "count", total)
			return total, nil
		}
		if err := mq.Resume(ctx); err != nil {
			return 0, translateEngineError(err)
		}
	}
}

// Close releases the reader's buffers and the array handle. Safe in any
// state; unread rows are discarded.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.batch != nil {
		r.batch.release()
		r.batch = nil
	}

	err := r.mq.Close()
	if cerr := r.arr.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return translateError(err)
}
