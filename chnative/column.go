package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// columnCodec reads and writes one ClickHouse column's values (not its null
// map — Nullable is handled as a wrapping layer) to/from an arrow.Array.
//
// Kept as a closed type-switch dispatch rather than a registry of Column
// values implementing a shared interface: the hot primitive path needs
// direct function calls, not per-value virtual dispatch.
type columnCodec struct {
	write func(w *frameWriter, arr arrow.Array) error
	read  func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error)
}

var defaultAllocator = memory.NewGoAllocator()

// writeColumn writes rows-many values of type t from arr to w.
func writeColumn(w *frameWriter, t Type, arr arrow.Array) error {
	switch v := t.(type) {
	case NullableType:
		return writeNullableColumn(w, v.Inner, arr)
	default:
		c := codecFor(t)
		if c == nil {
			return newSchemaError("no column codec for type %s", t.String())
		}
		return c.write(w, arr)
	}
}

// readColumn reads rows-many values of type t from r, producing an
// arrow.Array of the corresponding Arrow type.
func readColumn(r *frameReader, t Type, rows int) (arrow.Array, error) {
	switch v := t.(type) {
	case NullableType:
		return readNullableColumn(r, v.Inner, rows)
	default:
		c := codecFor(t)
		if c == nil {
			return nil, newSchemaError("no column codec for type %s", t.String())
		}
		return c.read(r, rows, defaultAllocator)
	}
}

func codecFor(t Type) *columnCodec {
	switch v := t.(type) {
	case UInt8Type, UInt16Type, UInt32Type, UInt64Type,
		Int8Type, Int16Type, Int32Type, Int64Type,
		Float32Type, Float64Type:
		return primitiveCodec(t)
	case DateType:
		return dateCodec()
	case Date32Type:
		return date32Codec()
	case DateTimeType:
		return dateTimeCodec()
	case DateTime64Type:
		return dateTime64Codec(v)
	case StringType:
		return stringCodec()
	case FixedStringType:
		return fixedStringCodec(v.N)
	case UUIDType:
		return uuidCodec()
	case IPv4Type:
		return ipv4Codec()
	case IPv6Type:
		return ipv6Codec()
	case DecimalType:
		return decimalCodec(v)
	case EnumType:
		return enumCodec(v)
	case ArrayType:
		return arrayCodec(v.Elem)
	case MapType:
		return mapCodec(v)
	case TupleType:
		return tupleCodec(v)
	case NestedType:
		return arrayCodec(TupleType{Elems: v.Elems, Names: v.Names})
	case LowCardinalityType:
		return lowCardinalityCodec(v.Inner)
	case VariantType:
		return variantCodec(v)
	case DynamicType:
		return dynamicCodec()
	default:
		return nil
	}
}

// readNullMap reads the byte-per-row null map (0=valid, 1=null) that
// precedes a Nullable column's inner values on the wire.
func readNullMap(r *frameReader, rows int) ([]byte, error) {
	buf := make([]byte, rows)
	if rows == 0 {
		return buf, nil
	}
	if _, err := ioReadFull(r, buf); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return buf, nil
}

func writeNullableColumn(w *frameWriter, inner Type, arr arrow.Array) error {
	rows := arr.Len()
	nullMap := make([]byte, rows)
	for i := 0; i < rows; i++ {
		if arr.IsNull(i) {
			nullMap[i] = 1
		}
	}

	// Fixed-width inner values are a contiguous buffer we can hand to
	// writeVectored alongside the null map in one scatter write, instead of
	// two separate buffered writes.
	if width := primitiveByteWidth(inner); width > 0 {
		data := arr.Data()
		raw := data.Buffers()[1].Bytes()
		raw = raw[data.Offset()*width : (data.Offset()+data.Len())*width]
		if !isLittleEndianHost {
			raw = swapWidth(raw, width)
		}
		if err := w.writeVectored(nullMap, raw); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		return nil
	}

	if _, err := w.Write(nullMap); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return writeColumn(w, inner, arr)
}

func readNullableColumn(r *frameReader, inner Type, rows int) (arrow.Array, error) {
	nullMap, err := readNullMap(r, rows)
	if err != nil {
		return nil, err
	}
	values, err := readColumn(r, inner, rows)
	if err != nil {
		return nil, err
	}
	validity := packNullBitmap(nullMap)
	data := values.Data()
	nullCount := array.UnknownNullCount
	newData := array.NewData(data.DataType(), data.Len(), append([]*memory.Buffer{memory.NewBufferBytes(validity)}, data.Buffers()[1:]...), data.Children(), nullCount, data.Offset())
	defer newData.Release()
	return array.MakeFromData(newData), nil
}

func ioReadFull(r *frameReader, buf []byte) (int, error) {
	return r.Read(buf)
}
