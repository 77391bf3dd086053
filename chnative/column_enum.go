package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// enumCodec handles Enum8/Enum16: a signed 8- or 16-bit integer per row on
// the wire, mapped to Arrow's dictionary-encoded string representation. A
// wire value with no matching name in the mapping is a reader error.
func enumCodec(e EnumType) *columnCodec {
	dt := enumDictType()
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			dict, ok := arr.(*array.Dictionary)
			if !ok {
				return newSchemaError("enum codec requires a Dictionary array, got %T", arr)
			}
			values, ok := dict.Dictionary().(*array.String)
			if !ok {
				return newSchemaError("enum dictionary values must be String, got %T", dict.Dictionary())
			}
			buf := make([]byte, dict.Len()*(e.Bits/8))
			for i := 0; i < dict.Len(); i++ {
				code := dict.GetValueIndex(i)
				name := values.Value(code)
				val, ok := e.ValueForName(name)
				if !ok {
					return newSchemaError("enum value %q not present in mapping", name)
				}
				if e.Bits == 8 {
					buf[i] = byte(val)
				} else {
					buf[2*i] = byte(val)
					buf[2*i+1] = byte(val >> 8)
				}
			}
			if _, err := w.Write(buf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewDictionaryBuilder(alloc, dt)
			defer b.Release()
			sb, ok := b.(*array.BinaryDictionaryBuilder)
			if !ok {
				return nil, newSchemaError("unexpected enum dictionary builder type %T", b)
			}
			buf := make([]byte, rows*(e.Bits/8))
			if rows > 0 {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			for i := 0; i < rows; i++ {
				var val int64
				if e.Bits == 8 {
					val = int64(int8(buf[i]))
				} else {
					val = int64(int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8))
				}
				name, ok := e.NameForValue(val)
				if !ok {
					return nil, newProtocolError("enum value %d absent from mapping", val)
				}
				if err := sb.AppendString(name); err != nil {
					return nil, &ArrowError{Message: err.Error()}
				}
			}
			return b.NewArray(), nil
		},
	}
}
