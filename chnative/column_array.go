package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrayCodec handles Array(T): a cumulative UInt64 offset per row followed
// by the inner column's values for the total element count.
// Array is never itself nullable (Nullable(Array(...)) is rejected by the
// type grammar), so no validity buffer is needed at this level.
func arrayCodec(elem Type) *columnCodec {
	elemDT, _, _ := arrowType(elem)
	listDT := arrow.ListOf(elemDT)
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			l, ok := arr.(*array.List)
			if !ok {
				return newSchemaError("array codec requires a List array, got %T", arr)
			}
			offs := l.Offsets()
			if len(offs) == 0 {
				return nil
			}
			base := offs[0]
			buf := make([]byte, 8*l.Len())
			for i := 0; i < l.Len(); i++ {
				putLE64(buf[8*i:], uint64(offs[i+1]-base))
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			childSlice := array.NewSlice(l.ListValues(), int64(base), int64(offs[l.Len()]))
			defer childSlice.Release()
			return writeColumn(w, elem, childSlice)
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
					return nil, newProtocolError("array offsets decreasing at row %d", i)
				}
				offsets[i+1] = int32(cum)
				prev = cum
				total = cum
			}
			childArr, err := readColumn(r, elem, int(total))
			if err != nil {
				return nil, err
			}
			defer childArr.Release()
			offBuf := memory.NewBufferBytes(int32SliceBytes(offsets))
			data := array.NewData(listDT, rows, []*memory.Buffer{nil, offBuf}, []arrow.ArrayData{childArr.Data()}, 0, 0)
			defer data.Release()
			return array.MakeFromData(data), nil
		},
	}
}

func int32SliceBytes(v []int32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		putLE32(out[4*i:], uint32(x))
	}
	return out
}
