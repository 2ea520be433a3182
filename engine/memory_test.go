package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridstream/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		[]schema.Dimension{{Name: "x", Type: schema.TypeInt64}},
		[]schema.Attribute{
			{Name: "value", Type: schema.TypeFloat64, Nullable: true},
			{Name: "label", Type: schema.TypeString},
		},
	)
	require.NoError(t, err)
	return s
}

func testArray(t *testing.T) *MemArray {
	t.Helper()
	arr := NewMemArray(testSchema(t), schema.KindSparse)
	require.NoError(t, arr.WriteFragment(1, map[string][]schema.Value{
		"x":     {schema.Int(0), schema.Int(1), schema.Int(5)},
		"value": {schema.Float(0.5), schema.Null(), schema.Float(2.5)},
		"label": {schema.String("a"), schema.String("b"), schema.String("c")},
	}))
	return arr
}

func TestWriteFragment(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		arr := testArray(t)

		frags := arr.Fragments()
		require.Len(t, frags, 1)
		assert.Equal(t, uint64(3), frags[0].CellCount)
		assert.Equal(t, uint64(1), frags[0].TimestampStart)
		assert.Equal(t, uint64(1), frags[0].TimestampEnd)
		assert.Equal(t, schema.Int(0), frags[0].Domain0.Min)
		assert.Equal(t, schema.Int(5), frags[0].Domain0.Max)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragment(1, map[string][]schema.Value{
			"x": {schema.Int(0)},
		})
		assert.ErrorContains(t, err, "missing column")
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragment(1, map[string][]schema.Value{
			"x":     {schema.Int(0), schema.Int(1)},
			"value": {schema.Float(1)},
			"label": {schema.String("a"), schema.String("b")},
		})
		assert.ErrorContains(t, err, "cells")
	})

	t.Run("NullInNonNullable", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragment(1, map[string][]schema.Value{
			"x":     {schema.Int(0)},
			"value": {schema.Float(1)},
			"label": {schema.Null()},
		})
		assert.ErrorContains(t, err, "non-nullable")
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragment(1, map[string][]schema.Value{
			"x":     {schema.String("zero")},
			"value": {schema.Float(1)},
			"label": {schema.String("a")},
		})
		assert.ErrorContains(t, err, "not assignable")
	})

	t.Run("Empty", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragment(1, map[string][]schema.Value{
			"x": {}, "value": {}, "label": {},
		})
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("BadTimestamps", func(t *testing.T) {
		arr := NewMemArray(testSchema(t), schema.KindSparse)
		err := arr.WriteFragmentAt(5, 2, map[string][]schema.Value{
			"x": {schema.Int(0)}, "value": {schema.Float(1)}, "label": {schema.String("a")},
		})
		assert.ErrorContains(t, err, "timestamp")
	})
}

func TestArrayHandle(t *testing.T) {
	arr := testArray(t)
	h := &arrayHandle{uri: "mem://test", arr: arr}

	assert.Equal(t, "mem://test", h.URI())
	assert.Equal(t, schema.KindSparse, h.Kind())
	assert.Equal(t, 1, h.Schema().NumDimensions())

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrClosed)

	_, err := h.NewQuery(&Request{Columns: []string{"x"}})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewQueryValidation(t *testing.T) {
	arr := testArray(t)
	h := &arrayHandle{uri: "mem://test", arr: arr}

	_, err := h.NewQuery(&Request{})
	assert.ErrorContains(t, err, "no columns")

	_, err = h.NewQuery(&Request{Columns: []string{"missing"}})
	assert.ErrorContains(t, err, "unknown column")

	_, err = h.NewQuery(&Request{
		Columns: []string{"x"},
		Points:  map[string][]schema.Value{"value": {schema.Float(1)}},
	})
	assert.ErrorContains(t, err, "unknown dimension")

	_, err = h.NewQuery(&Request{
		Columns:   []string{"x"},
		Timestamp: &TimestampRange{Start: 5, End: 1},
	})
	assert.ErrorContains(t, err, "timestamp")
}
