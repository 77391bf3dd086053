package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// variantCodec handles Variant(T1,...,Tn): a discriminator byte per row
// selecting the variant, followed by each variant's column containing only
// the rows that selected it — the same dense layout Arrow's DenseUnion
// uses, so the wire discriminator doubles as the union's type code and the
// per-variant row position as its value offset.
func variantCodec(v VariantType) *columnCodec {
	fields := make([]arrow.Field, len(v.Elems))
	codes := make([]arrow.UnionTypeCode, len(v.Elems))
	for i, e := range v.Elems {
		fields[i] = arrowField(indexFieldName(i), e)
		codes[i] = arrow.UnionTypeCode(i)
	}
	dt := arrow.DenseUnionOf(fields, codes)

	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			data := arr.Data()
			if len(data.Buffers()) < 2 || data.Buffers()[1] == nil {
				return newSchemaError("variant codec requires a DenseUnion array")
			}
			typeCodes := data.Buffers()[1].Bytes()
			discBuf := make([]byte, arr.Len())
			copy(discBuf, typeCodes[:arr.Len()])
			if _, err := w.Write(discBuf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			for i, e := range v.Elems {
				child := array.MakeFromData(data.Children()[i])
				defer child.Release()
				if err := writeColumn(w, e, child); err != nil {
					return err
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			discBuf := make([]byte, rows)
			if rows > 0 {
				if _, err := r.Read(discBuf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			counts := make([]int, len(v.Elems))
			offsets := make([]int32, rows)
			for i := 0; i < rows; i++ {
				d := int(discBuf[i])
				if d < 0 || d >= len(v.Elems) {
					return nil, newProtocolError("variant discriminator %d out of range at row %d", d, i)
				}
				offsets[i] = int32(counts[d])
				counts[d]++
			}

			children := make([]arrow.ArrayData, len(v.Elems))
			for i, e := range v.Elems {
				childArr, err := readColumn(r, e, counts[i])
				if err != nil {
					return nil, err
				}
				children[i] = childArr.Data()
			}

			typeCodesBuf := memory.NewBufferBytes(discBuf)
			offsetBuf := memory.NewBufferBytes(int32SliceBytes(offsets))
			data := array.NewData(dt, rows, []*memory.Buffer{nil, typeCodesBuf, offsetBuf}, children, 0, 0)
			defer data.Release()
			return array.MakeFromData(data), nil
		},
	}
}

// dynamicCodec handles Dynamic: like Variant, but the set of variant types
// is not fixed by the schema — it is carried inline as a type-name table
// before the per-variant columns.
func dynamicCodec() *columnCodec {
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			data := arr.Data()
			children := data.Children()
			typeNames := make([]string, len(children))
			for i, c := range children {
				t, err := typeFromArrowMetadata(c.DataType())
				if err != nil {
					return err
				}
				typeNames[i] = t.String()
			}
			if err := writeUvarint(w, uint64(len(typeNames))); err != nil {
				return err
			}
			for _, name := range typeNames {
				if err := writeString(w, []byte(name)); err != nil {
					return err
				}
			}
			v := VariantType{}
			for _, name := range typeNames {
				t, err := ParseType(name)
				if err != nil {
					return err
				}
				v.Elems = append(v.Elems, t)
			}
			return variantCodec(v).write(w, arr)
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			n, err := readUvarint(r)
			if err != nil {
				return nil, err
			}
			v := VariantType{}
			for i := uint64(0); i < n; i++ {
				raw, err := readString(r, defaultMaxStringLen)
				if err != nil {
					return nil, err
				}
				t, err := ParseType(string(raw))
				if err != nil {
					return nil, err
				}
				v.Elems = append(v.Elems, t)
			}
			return variantCodec(v).read(r, rows, alloc)
		},
	}
}

// typeFromArrowMetadata is a best-effort inverse of arrowType for Dynamic's
// type-name table. It looks only at the Arrow type ID (Int64, UInt64,
// Float64, LargeString) and returns a SchemaError for any other type; field
// metadata is not consulted.
func typeFromArrowMetadata(dt arrow.DataType) (Type, error) {
	switch dt.ID() {
	case arrow.INT64:
		return Int64Type{}, nil
	case arrow.UINT64:
		return UInt64Type{}, nil
	case arrow.FLOAT64:
		return Float64Type{}, nil
	case arrow.LARGE_STRING:
		return StringType{}, nil
	default:
		return nil, newSchemaError("cannot recover ClickHouse type for dynamic child of Arrow type %s", dt.Name())
	}
}
