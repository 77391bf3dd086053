package chnative

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// isLittleEndianHost is resolved once; ClickHouse's wire format and Arrow's
// in-memory primitive layout are both little-endian, so on the (overwhelming
// majority) little-endian host this column codec is a direct slab memcopy
// with no per-element swap.
var isLittleEndianHost = func() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func primitiveByteWidth(t Type) int {
	switch t.(type) {
	case UInt8Type, Int8Type:
		return 1
	case UInt16Type, Int16Type:
		return 2
	case UInt32Type, Int32Type, Float32Type:
		return 4
	case UInt64Type, Int64Type, Float64Type:
		return 8
	default:
		return 0
	}
}

// primitiveCodec handles the fixed-width numeric types whose Arrow and
// ClickHouse in-memory representations agree byte-for-byte on a
// little-endian host: a direct memcopy of the values buffer.
func primitiveCodec(t Type) *columnCodec {
	width := primitiveByteWidth(t)
	dt, _, _ := arrowType(t)
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			data := arr.Data()
			raw := data.Buffers()[1].Bytes()
			raw = raw[data.Offset()*width : (data.Offset()+data.Len())*width]
			if isLittleEndianHost {
				_, err := w.Write(raw)
				if err != nil {
					return &TransportError{Op: "write", Err: err}
				}
				return nil
			}
			swapped := swapWidth(raw, width)
			if _, err := w.Write(swapped); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := memory.NewResizableBuffer(alloc)
			buf.Resize(rows * width)
			if rows > 0 {
				if _, err := r.Read(buf.Bytes()); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
				if !isLittleEndianHost {
					copy(buf.Bytes(), swapWidth(buf.Bytes(), width))
				}
			}
			data := array.NewData(dt, rows, []*memory.Buffer{nil, buf}, nil, 0, 0)
			defer data.Release()
			return array.MakeFromData(data), nil
		},
	}
}

func swapWidth(raw []byte, width int) []byte {
	if width <= 1 {
		return raw
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = raw[i+width-1-j]
		}
	}
	return out
}
