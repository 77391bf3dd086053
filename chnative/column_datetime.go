package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// dateCodec handles Date: days since 1970-01-01 stored on the wire as
// UInt16, widened to Arrow's Date32 (int32 days) representation.
func dateCodec() *columnCodec {
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			d, ok := arr.(*array.Date32)
			if !ok {
				return newSchemaError("date codec requires a Date32 array, got %T", arr)
			}
			buf := make([]byte, 2*d.Len())
			for i := 0; i < d.Len(); i++ {
				v := uint16(d.Value(i))
				buf[2*i] = byte(v)
				buf[2*i+1] = byte(v >> 8)
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := make([]byte, 2*rows)
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			b := array.NewDate32Builder(alloc)
			defer b.Release()
			b.Reserve(rows)
			for i := 0; i < rows; i++ {
				v := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
				b.Append(arrow.Date32(v))
			}
			return b.NewArray(), nil
		},
	}
}

// date32Codec handles Date32: days since 1970-01-01 as a native Int32, a
// direct match for Arrow's Date32 representation.
func date32Codec() *columnCodec {
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			d, ok := arr.(*array.Date32)
			if !ok {
				return newSchemaError("date32 codec requires a Date32 array, got %T", arr)
			}
			buf := make([]byte, 4*d.Len())
			for i := 0; i < d.Len(); i++ {
				putLE32(buf[4*i:], uint32(d.Value(i)))
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := make([]byte, 4*rows)
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			b := array.NewDate32Builder(alloc)
			defer b.Release()
			b.Reserve(rows)
			for i := 0; i < rows; i++ {
				b.Append(arrow.Date32(getLE32(buf[4*i:])))
			}
			return b.NewArray(), nil
		},
	}
}

// dateTimeCodec handles DateTime: seconds since epoch as UInt32 on the
// wire, widened to Arrow's int64 Timestamp(Second) representation.
func dateTimeCodec() *columnCodec {
	dt := &arrow.TimestampType{Unit: arrow.Second}
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			ts, ok := arr.(*array.Timestamp)
			if !ok {
				return newSchemaError("datetime codec requires a Timestamp array, got %T", arr)
			}
			buf := make([]byte, 4*ts.Len())
			for i := 0; i < ts.Len(); i++ {
				putLE32(buf[4*i:], uint32(ts.Value(i)))
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := make([]byte, 4*rows)
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			b := array.NewTimestampBuilder(alloc, dt)
			defer b.Release()
			b.Reserve(rows)
			for i := 0; i < rows; i++ {
				b.Append(arrow.Timestamp(getLE32(buf[4*i:])))
			}
			return b.NewArray(), nil
		},
	}
}

// dateTime64Codec handles DateTime64(p, tz?): ticks since epoch as Int64 on
// the wire, one tick being 10^-p seconds. The tick value is carried directly
// into the Timestamp's int64 without rescaling; for precisions that don't
// land on a power-of-1000 Arrow unit boundary this is a documented lossy
// approximation.
func dateTime64Codec(v DateTime64Type) *columnCodec {
	dt := &arrow.TimestampType{Unit: timestampUnitForPrecision(v.Precision), TimeZone: v.Timezone}
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			ts, ok := arr.(*array.Timestamp)
			if !ok {
				return newSchemaError("datetime64 codec requires a Timestamp array, got %T", arr)
			}
			buf := make([]byte, 8*ts.Len())
			for i := 0; i < ts.Len(); i++ {
				putLE64(buf[8*i:], uint64(ts.Value(i)))
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			buf := make([]byte, 8*rows)
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			b := array.NewTimestampBuilder(alloc, dt)
			defer b.Release()
			b.Reserve(rows)
			for i := 0; i < rows; i++ {
				b.Append(arrow.Timestamp(getLE64(buf[8*i:])))
			}
			return b.NewArray(), nil
		},
	}
}
