package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/gridstream/schema"
)

// Segment wire format, little-endian:
//
//	u32 cell count
//	per cell: u8 null flag (nullable columns only), then the payload:
//	fixed-width bytes, or u32 length + bytes for variable-length columns.
//	Null cells carry no payload.

func encodeSegment(col schema.Column, values []schema.Value) []byte {
	buf := make([]byte, 4, 4+len(values)*8)
	binary.LittleEndian.PutUint32(buf, uint32(len(values)))

	for _, v := range values {
		if col.Nullable {
			if v.IsNull() {
				buf = append(buf, 0)
				continue
			}
			buf = append(buf, 1)
		}
		buf = appendValue(buf, col.Type, v)
	}
	return buf
}

func appendValue(buf []byte, t schema.Type, v schema.Value) []byte {
	switch t {
	case schema.TypeBool:
		if v.B {
			return append(buf, 1)
		}
		return append(buf, 0)
	case schema.TypeInt8:
		return append(buf, byte(int8(v.I64)))
	case schema.TypeInt16:
		return binary.LittleEndian.AppendUint16(buf, uint16(int16(v.I64)))
	case schema.TypeInt32:
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v.I64)))
	case schema.TypeInt64:
		return binary.LittleEndian.AppendUint64(buf, uint64(v.I64))
	case schema.TypeUint8:
		return append(buf, byte(v.U64))
	case schema.TypeUint16:
		return binary.LittleEndian.AppendUint16(buf, uint16(v.U64))
	case schema.TypeUint32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.U64))
	case schema.TypeUint64:
		return binary.LittleEndian.AppendUint64(buf, v.U64)
	case schema.TypeFloat32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v.F64)))
	case schema.TypeFloat64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.F64))
	case schema.TypeString:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Str())))
		return append(buf, v.Str()...)
	case schema.TypeBytes:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Raw())))
		return append(buf, v.Raw()...)
	default:
		return buf
	}
}

func decodeSegment(col schema.Column, data []byte) ([]schema.Value, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("engine: segment for %q truncated", col.Name)
	}
	count := int(binary.LittleEndian.Uint32(data))
	data = data[4:]

	values := make([]schema.Value, 0, count)
	for i := 0; i < count; i++ {
		if col.Nullable {
			if len(data) < 1 {
				return nil, fmt.Errorf("engine: segment for %q truncated at cell %d", col.Name, i)
			}
			flag := data[0]
			data = data[1:]
			if flag == 0 {
				values = append(values, schema.Null())
				continue
			}
		}

		v, rest, err := readValue(col.Type, data)
		if err != nil {
			return nil, fmt.Errorf("engine: segment for %q cell %d: %w", col.Name, i, err)
		}
		values = append(values, v)
		data = rest
	}
	return values, nil
}

func readValue(t schema.Type, data []byte) (schema.Value, []byte, error) {
	need := t.FixedSize()
	if t.VarLen() {
		need = 4
	}
	if len(data) < need {
		return schema.Value{}, nil, fmt.Errorf("truncated payload")
	}

	switch t {
	case schema.TypeBool:
		return schema.Bool(data[0] != 0), data[1:], nil
	case schema.TypeInt8:
		return schema.Int(int64(int8(data[0]))), data[1:], nil
	case schema.TypeInt16:
		return schema.Int(int64(int16(binary.LittleEndian.Uint16(data)))), data[2:], nil
	case schema.TypeInt32:
		return schema.Int(int64(int32(binary.LittleEndian.Uint32(data)))), data[4:], nil
	case schema.TypeInt64:
		return schema.Int(int64(binary.LittleEndian.Uint64(data))), data[8:], nil
	case schema.TypeUint8:
		return schema.Uint(uint64(data[0])), data[1:], nil
	case schema.TypeUint16:
		return schema.Uint(uint64(binary.LittleEndian.Uint16(data))), data[2:], nil
	case schema.TypeUint32:
		return schema.Uint(uint64(binary.LittleEndian.Uint32(data))), data[4:], nil
	case schema.TypeUint64:
		return schema.Uint(binary.LittleEndian.Uint64(data)), data[8:], nil
	case schema.TypeFloat32:
		return schema.Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))), data[4:], nil
	case schema.TypeFloat64:
		return schema.Float(math.Float64frombits(binary.LittleEndian.Uint64(data))), data[8:], nil
	case schema.TypeString, schema.TypeBytes:
		n := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if len(data) < n {
			return schema.Value{}, nil, fmt.Errorf("truncated payload")
		}
		payload := make([]byte, n)
		copy(payload, data[:n])
		if t == schema.TypeString {
			return schema.String(string(payload)), data[n:], nil
		}
		return schema.Bytes(payload), data[n:], nil
	default:
		return schema.Value{}, nil, fmt.Errorf("unsupported type %s", t)
	}
}
