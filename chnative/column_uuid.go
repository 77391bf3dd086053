package chnative

import (
	"encoding/binary"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// uuidToWire converts a standard (RFC 4122 big-endian) 16-byte UUID into
// ClickHouse's wire representation: the high and low 8-byte halves, each
// read as a big-endian uint64 and re-emitted little-endian.
func uuidToWire(std []byte) [16]byte {
	hi := binary.BigEndian.Uint64(std[0:8])
	lo := binary.BigEndian.Uint64(std[8:16])
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], hi)
	binary.LittleEndian.PutUint64(out[8:16], lo)
	return out
}

// wireToUUID is the inverse of uuidToWire.
func wireToUUID(wire []byte) [16]byte {
	hi := binary.LittleEndian.Uint64(wire[0:8])
	lo := binary.LittleEndian.Uint64(wire[8:16])
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], hi)
	binary.BigEndian.PutUint64(out[8:16], lo)
	return out
}

func uuidCodec() *columnCodec {
	dt := &arrow.FixedSizeBinaryType{ByteWidth: 16}
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			u, ok := arr.(*array.FixedSizeBinary)
			if !ok {
				return newSchemaError("uuid codec requires a FixedSizeBinary array, got %T", arr)
			}
			for i := 0; i < u.Len(); i++ {
				wire := uuidToWire(u.Value(i))
				if _, err := w.Write(wire[:]); err != nil {
					return &TransportError{Op: "write", Err: err}
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewFixedSizeBinaryBuilder(alloc, dt)
			defer b.Release()
			b.Reserve(rows)
			buf := make([]byte, 16)
			for i := 0; i < rows; i++ {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
				std := wireToUUID(buf)
				v := make([]byte, 16)
				copy(v, std[:])
				b.Append(v)
			}
			return b.NewArray(), nil
		},
	}
}
