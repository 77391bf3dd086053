package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Metadata keys attached to arrow.Field for ClickHouse types that have no
// exact native Arrow counterpart.
const (
	metaKeyCHType    = "clickhouse.type"
	metaKeyWideInt   = "clickhouse.wide_int" // "128" or "256", on FixedSizeBinary
	metaKeyUUID      = "clickhouse.uuid"
	metaKeyEnumNames = "clickhouse.enum_names"
	metaKeyEnumVals  = "clickhouse.enum_values"
	metaKeyDynamic   = "clickhouse.dynamic"
)

// arrowField builds the arrow.Field for a named ClickHouse column: one
// switch arm per type kind, each producing an arrow.DataType plus (where
// the mapping is lossy) metadata recording the original ClickHouse type
// string.
func arrowField(name string, t Type) arrow.Field {
	dt, nullable, md := arrowType(t)
	return arrow.Field{Name: name, Type: dt, Nullable: nullable, Metadata: md}
}

func arrowType(t Type) (arrow.DataType, bool, arrow.Metadata) {
	switch v := t.(type) {
	case NullableType:
		dt, _, md := arrowType(v.Inner)
		return dt, true, md
	case UInt8Type:
		return arrow.PrimitiveTypes.Uint8, false, arrow.Metadata{}
	case UInt16Type:
		return arrow.PrimitiveTypes.Uint16, false, arrow.Metadata{}
	case UInt32Type:
		return arrow.PrimitiveTypes.Uint32, false, arrow.Metadata{}
	case UInt64Type:
		return arrow.PrimitiveTypes.Uint64, false, arrow.Metadata{}
	case Int8Type:
		return arrow.PrimitiveTypes.Int8, false, arrow.Metadata{}
	case Int16Type:
		return arrow.PrimitiveTypes.Int16, false, arrow.Metadata{}
	case Int32Type:
		return arrow.PrimitiveTypes.Int32, false, arrow.Metadata{}
	case Int64Type:
		return arrow.PrimitiveTypes.Int64, false, arrow.Metadata{}
	case Float32Type:
		return arrow.PrimitiveTypes.Float32, false, arrow.Metadata{}
	case Float64Type:
		return arrow.PrimitiveTypes.Float64, false, arrow.Metadata{}
	case BFloat16Type:
		return arrow.FixedWidthTypes.Float16, false, arrow.Metadata{}
	case UInt128Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, false, wideIntMeta("128", false)
	case UInt256Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 32}, false, wideIntMeta("256", false)
	case Int128Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, false, wideIntMeta("128", true)
	case Int256Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 32}, false, wideIntMeta("256", true)
	case DecimalType:
		switch v.Width() {
		case 32, 64, 128:
			return &arrow.Decimal128Type{Precision: int32(v.Precision), Scale: int32(v.Scale)}, false, arrow.Metadata{}
		default:
			return &arrow.Decimal256Type{Precision: int32(v.Precision), Scale: int32(v.Scale)}, false, arrow.Metadata{}
		}
	case StringType:
		return arrow.BinaryTypes.LargeString, false, arrow.Metadata{}
	case FixedStringType:
		return &arrow.FixedSizeBinaryType{ByteWidth: v.N}, false, arrow.Metadata{}
	case DateType:
		return arrow.FixedWidthTypes.Date32, false, arrow.Metadata{}
	case Date32Type:
		return arrow.FixedWidthTypes.Date32, false, arrow.Metadata{}
	case DateTimeType:
		return &arrow.TimestampType{Unit: arrow.Second, TimeZone: v.Timezone}, false, arrow.Metadata{}
	case DateTime64Type:
		return &arrow.TimestampType{Unit: timestampUnitForPrecision(v.Precision), TimeZone: v.Timezone}, false, arrow.Metadata{}
	case UUIDType:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, false, arrow.NewMetadata([]string{metaKeyUUID}, []string{"1"})
	case IPv4Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 4}, false, arrow.Metadata{}
	case IPv6Type:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, false, arrow.Metadata{}
	case EnumType:
		return enumDictType(), false, enumMeta(v)
	case ArrayType:
		elemField := arrowField("item", v.Elem)
		return arrow.ListOf(elemField.Type), false, arrow.Metadata{}
	case MapType:
		keyField := arrowField("key", v.Key)
		valField := arrowField("value", v.Value)
		return arrow.MapOf(keyField.Type, valField.Type), false, arrow.Metadata{}
	case TupleType:
		fields := make([]arrow.Field, len(v.Elems))
		for i, e := range v.Elems {
			name := v.Names[i]
			if name == "" {
				name = indexFieldName(i)
			}
			fields[i] = arrowField(name, e)
		}
		return arrow.StructOf(fields...), false, arrow.Metadata{}
	case NestedType:
		return arrowType(v.Desugar())
	case LowCardinalityType:
		valueType, nullable, md := arrowType(v.Inner)
		return &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint32, ValueType: valueType, Ordered: false}, nullable, md
	case VariantType:
		fields := make([]arrow.Field, len(v.Elems))
		codes := make([]arrow.UnionTypeCode, len(v.Elems))
		for i, e := range v.Elems {
			fields[i] = arrowField(indexFieldName(i), e)
			codes[i] = arrow.UnionTypeCode(i)
		}
		return arrow.DenseUnionOf(fields, codes), false, arrow.Metadata{}
	case DynamicType:
		return arrow.DenseUnionOf(nil, nil), false, arrow.NewMetadata([]string{metaKeyDynamic}, []string{"1"})
	default:
		return arrow.BinaryTypes.LargeString, false, arrow.Metadata{}
	}
}

func wideIntMeta(width string, signed bool) arrow.Metadata {
	s := "0"
	if signed {
		s = "1"
	}
	return arrow.NewMetadata([]string{metaKeyWideInt, "clickhouse.signed"}, []string{width, s})
}

func enumMeta(e EnumType) arrow.Metadata {
	var names, vals string
	for i, n := range e.Names {
		if i > 0 {
			names += ","
			vals += ","
		}
		names += n
		vals += itoa64(e.Values[i])
	}
	return arrow.NewMetadata([]string{metaKeyEnumNames, metaKeyEnumVals}, []string{names, vals})
}

func enumDictType() *arrow.DictionaryType {
	return &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint16, ValueType: arrow.BinaryTypes.String, Ordered: false}
}

// timestampUnitForPrecision picks the nearest Arrow timestamp unit for a
// DateTime64 precision; Arrow only has second/milli/micro/nano granularity
// while ClickHouse allows any precision 0-9, so sub-nanosecond and
// non-power-of-1000 precisions lose resolution on the Arrow side. This is a
// documented, accepted lossy mapping.
func timestampUnitForPrecision(p int) arrow.TimeUnit {
	switch {
	case p <= 0:
		return arrow.Second
	case p <= 3:
		return arrow.Millisecond
	case p <= 6:
		return arrow.Microsecond
	default:
		return arrow.Nanosecond
	}
}

func indexFieldName(i int) string {
	return "f" + itoa64(int64(i))
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
