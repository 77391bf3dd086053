package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// mapCodec handles Map(K,V). ClickHouse stores a map column exactly like
// Array(Tuple(key, value)) on the wire (a cumulative offset per row, then
// key/value columns for the total entry count); this codec reuses that
// shape and presents it through Arrow's Map type (a List<Struct<key,value>>
// under the hood).
func mapCodec(m MapType) *columnCodec {
	keyField := arrow.Field{Name: "key", Type: mustArrowType(m.Key)}
	valField := arrow.Field{Name: "value", Type: mustArrowType(m.Value), Nullable: isNullableType(m.Value)}
	entriesDT := arrow.MapOf(keyField.Type, valField.Type)
	structDT := arrow.StructOf(keyField, valField)

	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			mp, ok := arr.(*array.Map)
			if !ok {
				return newSchemaError("map codec requires a Map array, got %T", arr)
			}
			offs := mp.Offsets()
			if len(offs) == 0 {
				return nil
			}
			base := offs[0]
			buf := make([]byte, 8*mp.Len())
			for i := 0; i < mp.Len(); i++ {
				putLE64(buf[8*i:], uint64(offs[i+1]-base))
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			keys := array.NewSlice(mp.Keys(), int64(base), int64(offs[mp.Len()]))
			defer keys.Release()
			values := array.NewSlice(mp.Items(), int64(base), int64(offs[mp.Len()]))
			defer values.Release()
			if err := writeColumn(w, m.Key, keys); err != nil {
				return err
			}
			return writeColumn(w, m.Value, values)
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := make([]byte, 8*rows)
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			offsets := make([]int32, rows+1)
			var prev, total uint64
			for i := 0; i < rows; i++ {
				cum := getLE64(buf[8*i:])
				if cum < prev {
					return nil, newProtocolError("map offsets decreasing at row %d", i)
				}
				offsets[i+1] = int32(cum)
				prev = cum
				total = cum
			}
			keyArr, err := readColumn(r, m.Key, int(total))
			if err != nil {
				return nil, err
			}
			defer keyArr.Release()
			valArr, err := readColumn(r, m.Value, int(total))
			if err != nil {
				return nil, err
			}
			defer valArr.Release()

			entryData := array.NewData(structDT, int(total), []*memory.Buffer{nil}, []arrow.ArrayData{keyArr.Data(), valArr.Data()}, 0, 0)
			defer entryData.Release()

			offBuf := memory.NewBufferBytes(int32SliceBytes(offsets))
			data := array.NewData(entriesDT, rows, []*memory.Buffer{nil, offBuf}, []arrow.ArrayData{entryData}, 0, 0)
			defer data.Release()
			return array.MakeFromData(data), nil
		},
	}
}

func mustArrowType(t Type) arrow.DataType {
	dt, _, _ := arrowType(t)
	return dt
}

func isNullableType(t Type) bool {
	_, ok := t.(NullableType)
	return ok
}
