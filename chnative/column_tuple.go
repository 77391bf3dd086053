package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// tupleCodec handles Tuple(T1,...,Tn): each element column is written
// sequentially for the full row count, with no inter-column framing.
// Maps onto Arrow's Struct.
func tupleCodec(t TupleType) *columnCodec {
	fields := make([]arrow.Field, len(t.Elems))
	for i, e := range t.Elems {
		name := t.Names[i]
		if name == "" {
			name = indexFieldName(i)
		}
		fields[i] = arrowField(name, e)
	}
	structDT := arrow.StructOf(fields...)
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			s, ok := arr.(*array.Struct)
			if !ok {
				return newSchemaError("tuple codec requires a Struct array, got %T", arr)
			}
			for i, e := range t.Elems {
				if err := writeColumn(w, e, s.Field(i)); err != nil {
					return err
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			children := make([]arrow.ArrayData, len(t.Elems))
			for i, e := range t.Elems {
				childArr, err := readColumn(r, e, rows)
				if err != nil {
					return nil, err
				}
				children[i] = childArr.Data()
			}
			data := array.NewData(structDT, rows, []*memory.Buffer{nil}, children, 0, 0)
			defer data.Release()
			return array.MakeFromData(data), nil
		},
	}
}
