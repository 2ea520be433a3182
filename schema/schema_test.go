package schema

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New(
		[]Dimension{{Name: "x", Type: TypeInt64}, {Name: "y", Type: TypeInt64}},
		[]Attribute{
			{Name: "value", Type: TypeFloat32, Nullable: true},
			{Name: "label", Type: TypeString},
		},
	)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s := testSchema(t)
		assert.Equal(t, 2, s.NumDimensions())
		assert.Equal(t, []string{"x", "y", "value", "label"}, s.ColumnNames())

		c, ok := s.Column("value")
		require.True(t, ok)
		assert.True(t, c.Nullable)
		assert.False(t, c.IsDim)

		assert.True(t, s.HasDimension("x"))
		assert.False(t, s.HasDimension("value"))
		assert.Equal(t, 1, s.DimensionIndex("y"))
		assert.Equal(t, -1, s.DimensionIndex("value"))
	})

	t.Run("NoDimensions", func(t *testing.T) {
		_, err := New(nil, []Attribute{{Name: "a", Type: TypeInt32}})
		assert.ErrorIs(t, err, ErrEmptySchema)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := New(
			[]Dimension{{Name: "x", Type: TypeInt64}},
			[]Attribute{{Name: "x", Type: TypeInt32}},
		)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("BytesDimension", func(t *testing.T) {
		_, err := New([]Dimension{{Name: "d", Type: TypeBytes}}, nil)
		assert.Error(t, err)
	})

	t.Run("StringDimension", func(t *testing.T) {
		_, err := New([]Dimension{{Name: "d", Type: TypeString}}, nil)
		assert.NoError(t, err)
	})
}

func TestTypeProperties(t *testing.T) {
	tests := []struct {
		typ    Type
		varLen bool
		size   int
		name   string
	}{
		{TypeBool, false, 1, "bool"},
		{TypeInt16, false, 2, "int16"},
		{TypeInt64, false, 8, "int64"},
		{TypeUint32, false, 4, "uint32"},
		{TypeFloat32, false, 4, "float32"},
		{TypeFloat64, false, 8, "float64"},
		{TypeString, true, 0, "string"},
		{TypeBytes, true, 0, "bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.varLen, tt.typ.VarLen())
			assert.Equal(t, tt.size, tt.typ.FixedSize())
			assert.Equal(t, tt.name, tt.typ.String())

			got, ok := TypeByName(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.typ, got)
		})
	}

	_, ok := TypeByName("decimal")
	assert.False(t, ok)
}

func TestValue(t *testing.T) {
	t.Run("AssignableTo", func(t *testing.T) {
		assert.True(t, Int(1).AssignableTo(TypeInt64))
		assert.True(t, Int(1).AssignableTo(TypeInt8))
		assert.False(t, Int(1).AssignableTo(TypeUint64))
		assert.True(t, Uint(1).AssignableTo(TypeUint32))
		assert.True(t, Float(1.5).AssignableTo(TypeFloat32))
		assert.False(t, Float(1.5).AssignableTo(TypeInt64))
		assert.True(t, String("a").AssignableTo(TypeString))
		assert.False(t, String("a").AssignableTo(TypeBytes))
		assert.True(t, Null().AssignableTo(TypeFloat64))
		assert.True(t, Bool(true).AssignableTo(TypeBool))
	})

	t.Run("Compare", func(t *testing.T) {
		assert.Negative(t, Compare(Int(1), Int(2)))
		assert.Positive(t, Compare(Int(3), Int(2)))
		assert.Zero(t, Compare(Int(2), Int(2)))
		assert.Negative(t, Compare(String("a"), String("b")))
		assert.Negative(t, Compare(Float(1.0), Float(1.5)))
		assert.Negative(t, Compare(Bool(false), Bool(true)))
		assert.Negative(t, Compare(Bytes([]byte{1}), Bytes([]byte{2})))
	})

	t.Run("Range", func(t *testing.T) {
		r := Range{Min: Int(0), Max: Int(10)}
		assert.True(t, r.Contains(Int(0)))
		assert.True(t, r.Contains(Int(10)))
		assert.False(t, r.Contains(Int(11)))
		assert.False(t, r.Contains(Int(-1)))
	})

	t.Run("PayloadSize", func(t *testing.T) {
		assert.Equal(t, 8, Int(7).PayloadSize(TypeInt64))
		assert.Equal(t, 5, String("hello").PayloadSize(TypeString))
		assert.Equal(t, 3, Bytes([]byte{1, 2, 3}).PayloadSize(TypeBytes))
	})
}

func TestArrowMapping(t *testing.T) {
	assert.Equal(t, arrow.PrimitiveTypes.Int64, TypeInt64.Arrow())
	assert.Equal(t, arrow.PrimitiveTypes.Float32, TypeFloat32.Arrow())
	assert.Equal(t, arrow.BinaryTypes.LargeString, TypeString.Arrow())
	assert.Equal(t, arrow.BinaryTypes.LargeBinary, TypeBytes.Arrow())
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, TypeBool.Arrow())

	s := testSchema(t)
	as := s.ArrowSchema([]string{"x", "value"})
	require.Equal(t, 2, as.NumFields())
	assert.Equal(t, "x", as.Field(0).Name)
	assert.True(t, as.Field(1).Nullable)
}
