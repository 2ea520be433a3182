package gridstream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstream/engine"
	"github.com/hupe1980/gridstream/filter"
	"github.com/hupe1980/gridstream/resource"
	"github.com/hupe1980/gridstream/schema"
)

// obsArray builds the canonical test array: row_id int64 dimension,
// nullable float32 value attribute, three rows with validity {1, 1, 0}.
func obsArray(t *testing.T) *engine.MemArray {
	t.Helper()
	s, err := schema.New(
		[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
		[]schema.Attribute{{Name: "value", Type: schema.TypeFloat32, Nullable: true}},
	)
	require.NoError(t, err)

	b := engine.NewArrayBuilder(s, schema.KindSparse)
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"row_id": schema.Int(0), "value": schema.Float(0.5),
	}))
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"row_id": schema.Int(1), "value": schema.Float(1.5),
	}))
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"row_id": schema.Int(2), "value": schema.Null(),
	}))
	require.NoError(t, b.Flush(1))
	return b.Array()
}

func testEngine(t *testing.T, arrays map[string]*engine.MemArray) *engine.DefaultEngine {
	t.Helper()
	e := engine.NewEngine()
	for name, arr := range arrays {
		e.Registry().Register(name, arr)
	}
	return e
}

func TestOpenNotFound(t *testing.T) {
	e := testEngine(t, nil)
	_, err := Open(context.Background(), "mem://missing", WithEngine(e))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnknownColumn(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	_, err := Open(context.Background(), "mem://obs", WithEngine(e), WithColumns("missing"))
	var uc *ErrUnknownColumn
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "missing", uc.Name)
}

func TestOpenUnknownDimension(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	_, err := Open(context.Background(), "mem://obs", WithEngine(e),
		WithPoints("value", schema.Float(0.5)))
	var ud *ErrUnknownDimension
	assert.ErrorAs(t, err, &ud)
}

func TestOpenTypeMismatch(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	_, err := Open(context.Background(), "mem://obs", WithEngine(e),
		WithPoints("row_id", schema.String("zero")))
	var tm *ErrTypeMismatch
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "row_id", tm.Dimension)
	assert.Equal(t, schema.TypeInt64, tm.Expected)
}

func TestOpenInvalidPredicate(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	_, err := Open(context.Background(), "mem://obs", WithEngine(e),
		WithPredicate(filter.Eq("missing", schema.Int(1))))
	var ip *ErrInvalidPredicate
	assert.ErrorAs(t, err, &ip)
}

func TestOpenInvalidTimestampRange(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	_, err := Open(context.Background(), "mem://obs", WithEngine(e),
		WithTimestampRange(5, 1))
	assert.ErrorIs(t, err, ErrInvalidTimestampRange)
}

func TestReadNextSingleBatch(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	r, err := Open(context.Background(), "mem://obs", WithEngine(e))
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.IsComplete())

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, batch.NumRows())
	assert.Equal(t, []string{"row_id", "value"}, batch.ColumnNames())

	ids := batch.Column("row_id").(*array.Int64)
	assert.Equal(t, []int64{0, 1, 2}, ids.Int64Values())

	values := batch.Column("value").(*array.Float32)
	assert.Equal(t, float32(0.5), values.Value(0))
	assert.Equal(t, float32(1.5), values.Value(1))
	assert.True(t, values.IsNull(2))
	assert.Equal(t, 1, values.NullN())

	assert.True(t, r.IsComplete())
	assert.True(t, r.IsComplete(), "IsComplete must not advance the read")

	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadNextForcedBatching(t *testing.T) {
	s, err := schema.New(
		[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
		[]schema.Attribute{{Name: "payload", Type: schema.TypeBytes}},
	)
	require.NoError(t, err)

	// 400-byte payloads against a 1 KiB floor: two rows per batch.
	b := engine.NewArrayBuilder(s, schema.KindSparse)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.AppendRow(map[string]schema.Value{
			"row_id": schema.Int(int64(i)),
			"payload":     schema.Bytes(make([]byte, 400)),
		}))
	}
	require.NoError(t, b.Flush(1))
	e := testEngine(t, map[string]*engine.MemArray{"big": b.Array()})

	r, err := Open(context.Background(), "mem://big",
		WithEngine(e),
		WithInitialByteBudget(1),
	)
	require.NoError(t, err)
	defer r.Close()

	var sizes []int
	var ids []int64
	for {
		batch, err := r.ReadNext(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NotZero(t, batch.NumRows(), "visible batches carry at least one row")
		sizes = append(sizes, batch.NumRows())

		col := batch.Column("row_id").(*array.Int64)
		ids = append(ids, col.Int64Values()...)
	}

	assert.Equal(t, []int{2, 1}, sizes)
	assert.Equal(t, []int64{0, 1, 2}, ids, "concatenated batches equal the full result")
}

func TestReadNextRangeSelection(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	r, err := Open(context.Background(), "mem://obs",
		WithEngine(e),
		WithRanges("row_id", schema.Range{Min: schema.Int(1), Max: schema.Int(2)}),
	)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	ids := batch.Column("row_id").(*array.Int64)
	assert.Equal(t, []int64{1, 2}, ids.Int64Values())
}

func TestReadNextEmptyResult(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	r, err := Open(context.Background(), "mem://obs",
		WithEngine(e),
		WithPoints("row_id", schema.Int(42)),
	)
	require.NoError(t, err)
	defer r.Close()

	// The first call returns a batch even over an empty result.
	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	assert.Zero(t, batch.NumRows())
	assert.True(t, r.IsComplete())

	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadNextPredicate(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	// The null value row never matches, even a negated comparison.
	r, err := Open(context.Background(), "mem://obs",
		WithEngine(e),
		WithPredicate(filter.Ne("value", schema.Float(0.5))),
	)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	ids := batch.Column("row_id").(*array.Int64)
	assert.Equal(t, []int64{1}, ids.Int64Values())
}

func TestReadNextRowTooLarge(t *testing.T) {
	s, err := schema.New(
		[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
		[]schema.Attribute{{Name: "payload", Type: schema.TypeBytes}},
	)
	require.NoError(t, err)

	b := engine.NewArrayBuilder(s, schema.KindSparse)
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"row_id": schema.Int(0),
		"payload":     schema.Bytes(make([]byte, 1<<20)),
	}))
	require.NoError(t, b.Flush(1))
	e := testEngine(t, map[string]*engine.MemArray{"big": b.Array()})

	r, err := Open(context.Background(), "mem://big",
		WithEngine(e),
		WithInitialByteBudget(2048),
		WithMaxByteBudget(16384),
	)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, ErrRowTooLarge)
}

func TestReadNextGrowth(t *testing.T) {
	s, err := schema.New(
		[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
		[]schema.Attribute{{Name: "payload", Type: schema.TypeBytes}},
	)
	require.NoError(t, err)

	b := engine.NewArrayBuilder(s, schema.KindSparse)
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"row_id": schema.Int(0),
		"payload":     schema.Bytes(make([]byte, 5000)),
	}))
	require.NoError(t, b.Flush(1))
	e := testEngine(t, map[string]*engine.MemArray{"big": b.Array()})

	metrics := &BasicMetricsCollector{}
	r, err := Open(context.Background(), "mem://big",
		WithEngine(e),
		WithInitialByteBudget(2048),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, batch.NumRows())
	assert.Greater(t, metrics.BatchGrows.Load(), int64(0), "the oversized row needs growth rounds")
}

func TestReadNextResourceExhausted(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})
	ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 512})

	// Buffers allocate on the first submission, so Open succeeds and the
	// budget denial surfaces from ReadNext.
	r, err := Open(context.Background(), "mem://obs",
		WithEngine(e),
		WithResourceController(ctrl),
	)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, ErrResourceExhausted)
}

func TestNNZ(t *testing.T) {
	t.Run("FastPath", func(t *testing.T) {
		s, err := schema.New(
			[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
			[]schema.Attribute{{Name: "value", Type: schema.TypeFloat32, Nullable: true}},
		)
		require.NoError(t, err)

		// Two fragments with disjoint row_id domains.
		arr := engine.NewMemArray(s, schema.KindSparse)
		require.NoError(t, arr.WriteFragment(1, map[string][]schema.Value{
			"row_id": {schema.Int(0), schema.Int(1)},
			"value":       {schema.Float(1), schema.Float(2)},
		}))
		require.NoError(t, arr.WriteFragment(2, map[string][]schema.Value{
			"row_id": {schema.Int(10), schema.Int(11), schema.Int(12)},
			"value":       {schema.Float(3), schema.Float(4), schema.Float(5)},
		}))
		e := testEngine(t, map[string]*engine.MemArray{"obs": arr})

		r, err := Open(context.Background(), "mem://obs", WithEngine(e))
		require.NoError(t, err)
		defer r.Close()

		n, err := r.NNZ(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(5), n)
	})

	t.Run("SlowPath", func(t *testing.T) {
		s, err := schema.New(
			[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
			[]schema.Attribute{{Name: "value", Type: schema.TypeFloat32, Nullable: true}},
		)
		require.NoError(t, err)

		// Overlapping row_id domains force the counting read.
		arr := engine.NewMemArray(s, schema.KindSparse)
		require.NoError(t, arr.WriteFragment(1, map[string][]schema.Value{
			"row_id": {schema.Int(0), schema.Int(5)},
			"value":       {schema.Float(1), schema.Float(2)},
		}))
		require.NoError(t, arr.WriteFragment(2, map[string][]schema.Value{
			"row_id": {schema.Int(3), schema.Int(8)},
			"value":       {schema.Float(3), schema.Float(4)},
		}))
		e := testEngine(t, map[string]*engine.MemArray{"obs": arr})

		r, err := Open(context.Background(), "mem://obs", WithEngine(e))
		require.NoError(t, err)
		defer r.Close()

		n, err := r.NNZ(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(4), n)
	})

	t.Run("TimestampSubset", func(t *testing.T) {
		arr := obsArray(t)
		require.NoError(t, arr.WriteFragment(10, map[string][]schema.Value{
			"row_id": {schema.Int(100)},
			"value":       {schema.Float(9)},
		}))
		e := testEngine(t, map[string]*engine.MemArray{"obs": arr})

		r, err := Open(context.Background(), "mem://obs",
			WithEngine(e),
			WithTimestampRange(0, 5),
		)
		require.NoError(t, err)
		defer r.Close()

		n, err := r.NNZ(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(3), n)
	})

	t.Run("DenseRejected", func(t *testing.T) {
		s, err := schema.New(
			[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
			[]schema.Attribute{{Name: "value", Type: schema.TypeFloat32, Nullable: true}},
		)
		require.NoError(t, err)
		arr := engine.NewMemArray(s, schema.KindDense)
		require.NoError(t, arr.WriteFragment(1, map[string][]schema.Value{
			"row_id": {schema.Int(0)},
			"value":       {schema.Float(1)},
		}))
		e := testEngine(t, map[string]*engine.MemArray{"obs": arr})

		r, err := Open(context.Background(), "mem://obs", WithEngine(e))
		require.NoError(t, err)
		defer r.Close()

		_, err = r.NNZ(context.Background())
		assert.ErrorContains(t, err, "sparse")
	})
}

func TestTimestampRangeVisibility(t *testing.T) {
	arr := obsArray(t)
	require.NoError(t, arr.WriteFragment(10, map[string][]schema.Value{
		"row_id": {schema.Int(100)},
		"value":       {schema.Float(9)},
	}))
	e := testEngine(t, map[string]*engine.MemArray{"obs": arr})

	r, err := Open(context.Background(), "mem://obs",
		WithEngine(e),
		WithTimestampRange(6, 20),
	)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, batch.NumRows())
	ids := batch.Column("row_id").(*array.Int64)
	assert.Equal(t, []int64{100}, ids.Int64Values())
}

func TestBatchRecord(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	r, err := Open(context.Background(), "mem://obs", WithEngine(e))
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadNext(context.Background())
	require.NoError(t, err)

	rec := batch.Record()
	defer rec.Release()
	assert.Equal(t, int64(3), rec.NumRows())
	assert.Equal(t, int64(2), rec.NumCols())
	assert.Equal(t, "row_id", rec.Schema().Field(0).Name)
	assert.Equal(t, "value", rec.Schema().Field(1).Name)
}

func TestCloseMidQuery(t *testing.T) {
	s, err := schema.New(
		[]schema.Dimension{{Name: "row_id", Type: schema.TypeInt64}},
		[]schema.Attribute{{Name: "payload", Type: schema.TypeBytes}},
	)
	require.NoError(t, err)

	b := engine.NewArrayBuilder(s, schema.KindSparse)
	for i := 0; i < 4; i++ {
		require.NoError(t, b.AppendRow(map[string]schema.Value{
			"row_id": schema.Int(int64(i)),
			"payload":     schema.Bytes(make([]byte, 400)),
		}))
	}
	require.NoError(t, b.Flush(1))
	e := testEngine(t, map[string]*engine.MemArray{"big": b.Array()})

	r, err := Open(context.Background(), "mem://big",
		WithEngine(e),
		WithInitialByteBudget(1),
	)
	require.NoError(t, err)

	_, err = r.ReadNext(context.Background())
	require.NoError(t, err)
	require.False(t, r.IsComplete())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "close is idempotent")

	_, err = r.ReadNext(context.Background())
	assert.ErrorIs(t, err, ErrQueryClosed)
}

func TestCloseBeforeRead(t *testing.T) {
	e := testEngine(t, map[string]*engine.MemArray{"obs": obsArray(t)})

	r, err := Open(context.Background(), "mem://obs", WithEngine(e))
	require.NoError(t, err)
	require.NoError(t, r.Close())
}
