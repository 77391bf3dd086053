package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// stringCodec handles variable-length String columns: each row is a
// varint-prefixed byte string on the wire.
func stringCodec() *columnCodec {
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			s, ok := arr.(*array.LargeString)
			if !ok {
				return newSchemaError("string codec requires a LargeString array, got %T", arr)
			}
			for i := 0; i < s.Len(); i++ {
				if err := writeString(w, []byte(s.Value(i))); err != nil {
					return err
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewLargeStringBuilder(alloc)
			defer b.Release()
			b.Reserve(rows)
			for i := 0; i < rows; i++ {
				v, err := readString(r, defaultMaxStringLen)
				if err != nil {
					return nil, err
				}
				b.Append(string(v))
			}
			return b.NewArray(), nil
		},
	}
}

// fixedStringCodec handles FixedString(n): an n-byte slab per row, no
// length prefix.
func fixedStringCodec(n int) *columnCodec {
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			s, ok := arr.(*array.FixedSizeBinary)
			if !ok {
				return newSchemaError("fixed-string codec requires a FixedSizeBinary array, got %T", arr)
			}
			for i := 0; i < s.Len(); i++ {
				v := s.Value(i)
				if len(v) != n {
					return newSchemaError("FixedString(%d): row %d has length %d", n, i, len(v))
				}
				if _, err := w.Write(v); err != nil {
					return &TransportError{Op: "write", Err: err}
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewFixedSizeBinaryBuilder(alloc, &arrow.FixedSizeBinaryType{ByteWidth: n})
			defer b.Release()
			b.Reserve(rows)
			buf := make([]byte, n)
			for i := 0; i < rows; i++ {
				if n > 0 {
					if _, err := r.Read(buf); err != nil {
						return nil, &TransportError{Op: "read", Err: err}
					}
				}
				v := make([]byte, n)
				copy(v, buf)
				b.Append(v)
			}
			return b.NewArray(), nil
		},
	}
}
