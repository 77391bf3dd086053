package chnative

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// blockInfo carries the BlockInfo sub-message that precedes a block's
// columns: an is_overflows flag and a bucket_num used by aggregation
// pipelines, passed through unchanged.
type blockInfo struct {
	IsOverflows bool
	BucketNum   int32
}

// field tags used inside the BlockInfo TLV-ish sub-message.
const (
	blockInfoFieldOverflows = 1
	blockInfoFieldBucketNum = 2
	blockInfoFieldEnd       = 0
)

func writeBlockInfo(w *frameWriter, info blockInfo) error {
	if err := writeUvarint(w, blockInfoFieldOverflows); err != nil {
		return err
	}
	var b byte
	if info.IsOverflows {
		b = 1
	}
	if err := w.WriteByte(b); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := writeUvarint(w, blockInfoFieldBucketNum); err != nil {
		return err
	}
	buf := make([]byte, 4)
	putLE32(buf, uint32(info.BucketNum))
	if _, err := w.Write(buf); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return writeUvarint(w, blockInfoFieldEnd)
}

func readBlockInfo(r *frameReader) (blockInfo, error) {
	var info blockInfo
	info.BucketNum = -1
	for {
		field, err := readUvarint(r)
		if err != nil {
			return info, err
		}
		switch field {
		case blockInfoFieldEnd:
			return info, nil
		case blockInfoFieldOverflows:
			b, err := r.ReadByte()
			if err != nil {
				return info, &TransportError{Op: "read", Err: err}
			}
			info.IsOverflows = b != 0
		case blockInfoFieldBucketNum:
			buf := make([]byte, 4)
			if _, err := r.Read(buf); err != nil {
				return info, &TransportError{Op: "read", Err: err}
			}
			info.BucketNum = int32(getLE32(buf))
		default:
			return info, newProtocolError("unknown BlockInfo field tag %d", field)
		}
	}
}

// Block is one decoded ClickHouse data block: a named, typed set of
// columns all sharing the same row count.
type Block struct {
	Info    blockInfo
	Names   []string
	Types   []Type
	Columns []arrow.Array
	Rows    int
}

// RecordBatch assembles the decoded columns into the arrow.RecordBatch the
// caller sees, building a schema from the block's names/types and pairing
// it with the already-decoded per-column arrays.
func (b *Block) RecordBatch() arrow.RecordBatch {
	fields := make([]arrow.Field, len(b.Names))
	for i, name := range b.Names {
		fields[i] = arrowField(name, b.Types[i])
	}
	schema := arrow.NewSchema(fields, nil)
	return array.NewRecordBatch(schema, b.Columns, int64(b.Rows))
}

// writeBlock writes a full block (header + BlockInfo + per-column
// name/type/payload) to w. Empty blocks (rows == 0) are legal and are used
// both as schema-only announcements and as end-of-insert sentinels
// and end-of-insert sentinels.
func writeBlock(w *frameWriter, b *Block) error {
	if err := writeUvarint(w, uint64(len(b.Names))); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(b.Rows)); err != nil {
		return err
	}
	if err := writeBlockInfo(w, b.Info); err != nil {
		return err
	}
	for i := range b.Names {
		if err := writeString(w, []byte(b.Names[i])); err != nil {
			return err
		}
		if err := writeString(w, []byte(b.Types[i].String())); err != nil {
			return err
		}
		if b.Rows == 0 {
			continue
		}
		if err := writeColumn(w, b.Types[i], b.Columns[i]); err != nil {
			return err
		}
	}
	return nil
}

// readBlock reads one block from r.
func readBlock(r *frameReader) (*Block, error) {
	colCount, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	rowCount, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	info, err := readBlockInfo(r)
	if err != nil {
		return nil, err
	}

	b := &Block{
		Info:    info,
		Rows:    int(rowCount),
		Names:   make([]string, colCount),
		Types:   make([]Type, colCount),
		Columns: make([]arrow.Array, colCount),
	}
	for i := uint64(0); i < colCount; i++ {
		name, err := readString(r, defaultMaxStringLen)
		if err != nil {
			return nil, err
		}
		typeStr, err := readString(r, defaultMaxStringLen)
		if err != nil {
			return nil, err
		}
		t, err := ParseType(string(typeStr))
		if err != nil {
			return nil, err
		}
		b.Names[i] = string(name)
		b.Types[i] = t

		if b.Rows == 0 {
			b.Columns[i] = array.MakeArrayOfNull(defaultAllocator, mustArrowType(t), 0)
			continue
		}
		col, err := readColumn(r, t, b.Rows)
		if err != nil {
			return nil, &ArrowError{Column: string(name), Message: err.Error()}
		}
		b.Columns[i] = col
	}
	return b, nil
}
