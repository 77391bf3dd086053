package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// LowCardinality key-width classes, the low byte of the per-block flags
// word.
const (
	lcIndexUInt8  = 0
	lcIndexUInt16 = 1
	lcIndexUInt32 = 2
	lcIndexUInt64 = 3

	lcHasAdditionalKeysBit = 1 << 9

	// lcKeysSerializationVersion is the constant value ClickHouse writes as
	// an Int64 ahead of every LowCardinality column's flags/dictSize header.
	// Only version 1 ("SharedDictionariesWithAdditionalKeys") is supported.
	lcKeysSerializationVersion = 1
)

func lcIndexClassFor(n int) (int, int) {
	switch {
	case n <= 1<<8:
		return lcIndexUInt8, 1
	case n <= 1<<16:
		return lcIndexUInt16, 2
	case n <= 1<<32:
		return lcIndexUInt32, 4
	default:
		return lcIndexUInt64, 8
	}
}

// lowCardinalityCodec handles LowCardinality(T): a per-block dictionary of
// distinct inner values plus a key-index array whose integer width is the
// smallest that holds the dictionary size. When the inner type is
// Nullable, index 0 is reserved for null and the dictionary holds only the
// distinct non-null values.
func lowCardinalityCodec(inner Type) *columnCodec {
	nullable := false
	base := inner
	if n, ok := inner.(NullableType); ok {
		nullable = true
		base = n.Inner
	}

	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			dict, ok := arr.(*array.Dictionary)
			if !ok {
				return newSchemaError("low-cardinality codec requires a Dictionary array, got %T", arr)
			}
			values := dict.Dictionary()
			dictSize := values.Len()
			reserved := 0
			if nullable {
				reserved = 1
			}
			indexClass, indexWidth := lcIndexClassFor(dictSize + reserved)

			flags := uint64(indexClass) | lcHasAdditionalKeysBit
			header := make([]byte, 24)
			putLE64(header[0:8], lcKeysSerializationVersion)
			putLE64(header[8:16], flags)
			putLE64(header[16:24], uint64(dictSize+reserved))
			if _, err := w.Write(header); err != nil {
				return &TransportError{Op: "write", Err: err}
			}

			if err := writeColumn(w, base, values); err != nil {
				return err
			}

			rows := dict.Len()
			rowsHeader := make([]byte, 8)
			putLE64(rowsHeader, uint64(rows))
			if _, err := w.Write(rowsHeader); err != nil {
				return &TransportError{Op: "write", Err: err}
			}

			idxBuf := make([]byte, rows*indexWidth)
			for i := 0; i < rows; i++ {
				var key uint64
				if nullable && dict.IsNull(i) {
					key = 0
				} else {
					key = uint64(dict.GetValueIndex(i)) + uint64(reserved)
				}
				putLCIndex(idxBuf[i*indexWidth:], key, indexWidth)
			}
			if _, err := w.Write(idxBuf); err != nil {
				return &TransportError{Op: "write", Err: err}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			header := make([]byte, 24)
			if _, err := r.Read(header); err != nil {
				return nil, &TransportError{Op: "read", Err: err}
			}
			version := getLE64(header[0:8])
			if version != lcKeysSerializationVersion {
				return nil, newProtocolError("unsupported low-cardinality keys serialization version %d", version)
			}
			flags := getLE64(header[8:16])
			indexClass := int(flags & 0xff)
			indexWidth := lcIndexWidthForClass(indexClass)
			dictTotal := int(getLE64(header[16:24]))

			reserved := 0
			if nullable {
				reserved = 1
			}
			dictValueCount := dictTotal - reserved
			if dictValueCount < 0 {
				return nil, newProtocolError("low-cardinality dictionary size %d inconsistent with nullable flag", dictTotal)
			}
			values, err := readColumn(r, base, dictValueCount)
			if err != nil {
				return nil, err
			}
			defer values.Release()

			rowsHeader := make([]byte, 8)
			if _, err := r.Read(rowsHeader); err != nil {
				return nil, &TransportError{Op: "read", Err: err}
			}
			wireRows := int(getLE64(rowsHeader))
			if wireRows != rows {
				return nil, newProtocolError("low-cardinality row count %d does not match block row count %d", wireRows, rows)
			}

			idxBuf := make([]byte, rows*indexWidth)
			if rows > 0 {
				if _, err := r.Read(idxBuf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
			}
			indexBuf := make([]byte, 4*rows)
			validity := make([]byte, (rows+7)/8)
			for i := 0; i < rows; i++ {
				key := getLCIndex(idxBuf[i*indexWidth:], indexWidth)
				if nullable && key == 0 {
					putLE32(indexBuf[4*i:], 0)
					continue
				}
				putLE32(indexBuf[4*i:], uint32(key-uint64(reserved)))
				validity[i/8] |= 1 << (uint(i) % 8)
			}

			dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint32, ValueType: values.DataType()}
			var validityBuf *memory.Buffer
			nullCount := 0
			if nullable {
				validityBuf = memory.NewBufferBytes(validity)
				nullCount = array.UnknownNullCount
			}
			indexData := array.NewData(arrow.PrimitiveTypes.Uint32, rows, []*memory.Buffer{validityBuf, memory.NewBufferBytes(indexBuf)}, nil, nullCount, 0)
			defer indexData.Release()
			indices := array.MakeFromData(indexData)
			defer indices.Release()

			return array.NewDictionaryArray(dt, indices, values), nil
		},
	}
}

func lcIndexWidthForClass(class int) int {
	switch class {
	case lcIndexUInt8:
		return 1
	case lcIndexUInt16:
		return 2
	case lcIndexUInt32:
		return 4
	default:
		return 8
	}
}

func putLCIndex(buf []byte, v uint64, width int) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		buf[0] = byte(v)
		buf[1] = byte(v >> 8)
	case 4:
		putLE32(buf, uint32(v))
	default:
		putLE64(buf, v)
	}
}

func getLCIndex(buf []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(buf[0]) | uint64(buf[1])<<8
	case 4:
		return uint64(getLE32(buf))
	default:
		return getLE64(buf)
	}
}
