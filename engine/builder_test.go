package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstream/schema"
)

func TestArrayBuilder(t *testing.T) {
	b := NewArrayBuilder(testSchema(t), schema.KindSparse)

	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"x": schema.Int(0), "value": schema.Float(1), "label": schema.String("a"),
	}))
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"x": schema.Int(1), "value": schema.Null(), "label": schema.String("b"),
	}))
	assert.Equal(t, 2, b.Pending())

	require.NoError(t, b.Flush(1))
	assert.Zero(t, b.Pending())

	// A second flush appends another fragment.
	require.NoError(t, b.AppendRow(map[string]schema.Value{
		"x": schema.Int(2), "value": schema.Float(3), "label": schema.String("c"),
	}))
	require.NoError(t, b.FlushAt(2, 4))

	arr := b.Array()
	frags := arr.Fragments()
	require.Len(t, frags, 2)
	assert.Equal(t, uint64(2), frags[0].CellCount)
	assert.Equal(t, uint64(2), frags[1].TimestampStart)
	assert.Equal(t, uint64(4), frags[1].TimestampEnd)
}

func TestArrayBuilderMissingColumn(t *testing.T) {
	b := NewArrayBuilder(testSchema(t), schema.KindSparse)

	err := b.AppendRow(map[string]schema.Value{"x": schema.Int(0)})
	assert.ErrorContains(t, err, "missing column")
	assert.Zero(t, b.Pending())
}

func TestArrayBuilderEmptyFlush(t *testing.T) {
	b := NewArrayBuilder(testSchema(t), schema.KindSparse)
	require.NoError(t, b.Flush(1))
	assert.Empty(t, b.Array().Fragments())
}
