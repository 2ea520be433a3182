package schema

import (
	"bytes"
	"fmt"
	"strconv"
)

// ValueKind tags the dynamic type of a Value.
type ValueKind uint8

const (
	// KindNull is the null value.
	KindNull ValueKind = iota
	// KindBool is a boolean value.
	KindBool
	// KindInt is a signed integer value.
	KindInt
	// KindUint is an unsigned integer value.
	KindUint
	// KindFloat is a floating-point value.
	KindFloat
	// KindString is a UTF-8 text value.
	KindString
	// KindBytes is a binary value.
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "null"
	}
}

// Value is a typed scalar used in selections, predicates and cell payloads.
// The zero value is null.
type Value struct {
	Kind ValueKind

	I64 int64
	U64 uint64
	F64 float64
	B   bool
	s   string
	raw []byte
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// Int returns a signed integer value.
func Int(i int64) Value { return Value{Kind: KindInt, I64: i} }

// Uint returns an unsigned integer value.
func Uint(u uint64) Value { return Value{Kind: KindUint, U64: u} }

// Float returns a floating-point value.
func Float(f float64) Value { return Value{Kind: KindFloat, F64: f} }

// String returns a text value.
func String(s string) Value { return Value{Kind: KindString, s: s} }

// Bytes returns a binary value. The slice is not copied.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, raw: b} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Str returns the text payload of a KindString value.
func (v Value) Str() string { return v.s }

// Raw returns the binary payload of a KindBytes value.
func (v Value) Raw() []byte { return v.raw }

// GoString renders the value for error messages and debug logs.
func (v Value) GoString() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindUint:
		return strconv.FormatUint(v.U64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	default:
		return fmt.Sprintf("kind(%d)", uint8(v.Kind))
	}
}

// AssignableTo reports whether the value can be stored in a column of the
// given type without loss of meaning. Null is assignable to any type; the
// nullability check belongs to the column, not the value.
func (v Value) AssignableTo(t Type) bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return t == TypeBool
	case KindInt:
		switch t {
		case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
			return true
		}
		return false
	case KindUint:
		switch t {
		case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
			return true
		}
		return false
	case KindFloat:
		return t == TypeFloat32 || t == TypeFloat64
	case KindString:
		return t == TypeString
	case KindBytes:
		return t == TypeBytes
	default:
		return false
	}
}

// KindForType returns the value kind cells of a column type carry.
func KindForType(t Type) ValueKind {
	switch t {
	case TypeBool:
		return KindBool
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return KindInt
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return KindUint
	case TypeFloat32, TypeFloat64:
		return KindFloat
	case TypeString:
		return KindString
	case TypeBytes:
		return KindBytes
	default:
		return KindNull
	}
}

// PayloadSize returns the number of data-segment bytes the value occupies in
// a column of type t.
func (v Value) PayloadSize(t Type) int {
	if t.VarLen() {
		if v.Kind == KindString {
			return len(v.s)
		}
		return len(v.raw)
	}
	return t.FixedSize()
}

// Compare orders two non-null values of the same kind. It returns a negative
// number, zero, or a positive number as a sorts before, equal to, or after b.
// Values of different kinds compare by kind tag; this keeps sorting total but
// is only meaningful for homogeneous columns.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case KindBool:
		switch {
		case a.B == b.B:
			return 0
		case b.B:
			return -1
		default:
			return 1
		}
	case KindInt:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		}
		return 0
	case KindUint:
		switch {
		case a.U64 < b.U64:
			return -1
		case a.U64 > b.U64:
			return 1
		}
		return 0
	case KindFloat:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		}
		return 0
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		}
		return 0
	case KindBytes:
		return bytes.Compare(a.raw, b.raw)
	default:
		return 0
	}
}

// Equal reports whether two values are equal. Null equals null.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	return Compare(a, b) == 0
}

// Range is an inclusive [Min, Max] interval over one dimension.
type Range struct {
	Min Value
	Max Value
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v Value) bool {
	return Compare(r.Min, v) <= 0 && Compare(v, r.Max) <= 0
}
