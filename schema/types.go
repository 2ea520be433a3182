package schema

import "fmt"

// Type is the semantic type of a dimension or attribute column.
type Type uint8

const (
	// TypeInvalid is the zero value; it never appears in a valid schema.
	TypeInvalid Type = iota
	// TypeBool is a boolean stored as one byte per cell.
	TypeBool
	// TypeInt8 is a signed 8-bit integer.
	TypeInt8
	// TypeInt16 is a signed 16-bit integer.
	TypeInt16
	// TypeInt32 is a signed 32-bit integer.
	TypeInt32
	// TypeInt64 is a signed 64-bit integer.
	TypeInt64
	// TypeUint8 is an unsigned 8-bit integer.
	TypeUint8
	// TypeUint16 is an unsigned 16-bit integer.
	TypeUint16
	// TypeUint32 is an unsigned 32-bit integer.
	TypeUint32
	// TypeUint64 is an unsigned 64-bit integer.
	TypeUint64
	// TypeFloat32 is an IEEE 754 single-precision float.
	TypeFloat32
	// TypeFloat64 is an IEEE 754 double-precision float.
	TypeFloat64
	// TypeString is variable-length UTF-8 text.
	TypeString
	// TypeBytes is a variable-length binary blob.
	TypeBytes
)

// VarLen reports whether cells of this type have variable length.
func (t Type) VarLen() bool {
	return t == TypeString || t == TypeBytes
}

// FixedSize returns the per-cell size in bytes for fixed-width types and 0
// for variable-length types.
func (t Type) FixedSize() int {
	switch t {
	case TypeBool, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// TypeByName returns the type with the given stable name. Used when decoding
// persisted manifests.
func TypeByName(name string) (Type, bool) {
	for t := TypeBool; t <= TypeBytes; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return TypeInvalid, false
}

// ArrayKind distinguishes sparse and dense arrays.
type ArrayKind uint8

const (
	// KindSparse is an array that stores only written cells.
	KindSparse ArrayKind = iota
	// KindDense is an array with a value for every grid coordinate.
	KindDense
)

func (k ArrayKind) String() string {
	if k == KindDense {
		return "dense"
	}
	return "sparse"
}
