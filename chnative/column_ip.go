package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ipv4Codec and ipv6Codec are raw fixed-width byte pass-throughs: both
// ClickHouse and Arrow's FixedSizeBinary store the address bytes verbatim,
// with no byte-order translation (unlike UUID).
func ipv4Codec() *columnCodec { return fixedBinaryPassthroughCodec(4) }
func ipv6Codec() *columnCodec { return fixedBinaryPassthroughCodec(16) }

func fixedBinaryPassthroughCodec(n int) *columnCodec {
	dt := &arrow.FixedSizeBinaryType{ByteWidth: n}
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			fb, ok := arr.(*array.FixedSizeBinary)
			if !ok {
				return newSchemaError("fixed-binary(%d) codec requires a FixedSizeBinary array, got %T", n, arr)
			}
			for i := 0; i < fb.Len(); i++ {
				if _, err := w.Write(fb.Value(i)); err != nil {
					return &TransportError{Op: "write", Err: err}
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewFixedSizeBinaryBuilder(alloc, dt)
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
