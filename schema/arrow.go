package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Arrow returns the Arrow data type cells of this type export as.
//
// Variable-length types map to the Large variants (64-bit offsets) so a
// single column segment is not limited to 2 GiB.
func (t Type) Arrow() arrow.DataType {
	switch t {
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case TypeInt8:
		return arrow.PrimitiveTypes.Int8
	case TypeInt16:
		return arrow.PrimitiveTypes.Int16
	case TypeInt32:
		return arrow.PrimitiveTypes.Int32
	case TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case TypeUint8:
		return arrow.PrimitiveTypes.Uint8
	case TypeUint16:
		return arrow.PrimitiveTypes.Uint16
	case TypeUint32:
		return arrow.PrimitiveTypes.Uint32
	case TypeUint64:
		return arrow.PrimitiveTypes.Uint64
	case TypeFloat32:
		return arrow.PrimitiveTypes.Float32
	case TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case TypeString:
		return arrow.BinaryTypes.LargeString
	case TypeBytes:
		return arrow.BinaryTypes.LargeBinary
	default:
		return arrow.Null
	}
}

// ArrowSchema builds the Arrow schema for the named columns, in the given
// order. Unknown names are skipped; callers validate names beforehand.
func (s *Schema) ArrowSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(columns))
	for _, name := range columns {
		c, ok := s.Column(name)
		if !ok {
			continue
		}
		fields = append(fields, arrow.Field{
			Name:     c.Name,
			Type:     c.Type.Arrow(),
			Nullable: c.Nullable,
		})
	}
	return arrow.NewSchema(fields, nil)
}
