package chnative

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression method byte, written as the first byte of a compressed frame's
// inner block (after the checksum). Matches ClickHouse's CompressionMethodByte.
type compressionMethod byte

const (
	compressionNone compressionMethod = 0x02
	compressionLZ4  compressionMethod = 0x82
	compressionZSTD compressionMethod = 0x90
)

// Sanity bounds on a compressed frame's declared sizes, guarding against a
// corrupt or malicious header before an allocation is attempted.
const (
	maxCompressedFrameSize   = 100_000_000
	maxUncompressedFrameSize = 1_000_000_000
)

// frameHeaderSize is the fixed 9-byte [method:1][compressedSize:4][uncompressedSize:4]
// header that precedes the compressed payload, covered by the checksum.
const frameHeaderSize = 9

// writeCompressedBlock compresses data under method and writes the
// ClickHouse compressed-frame wire layout:
//
//	[checksum:16 (lo,hi little-endian u64 halves)][method:1][compressedSize:4][uncompressedSize:4][payload]
//
// compressedSize counts the full header-plus-payload block (frameHeaderSize
// + len(payload)), not the payload alone.
func writeCompressedBlock(w *frameWriter, data []byte, method compressionMethod) error {
	var payload []byte
	switch method {
	case compressionNone:
		payload = data
	case compressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		dst := globalBufferPool.get(bound)[:bound]
		defer globalBufferPool.put(dst)
		var c lz4.Compressor
		n, err := c.CompressBlock(data, dst)
		if err != nil {
			return &TransportError{Op: "compress", Err: err}
		}
		if n == 0 {
			// Incompressible: lz4 block compressor signals this by writing
			// nothing; fall back to storing the raw data with method=none.
			return writeCompressedBlock(w, data, compressionNone)
		}
		payload = dst[:n]
	case compressionZSTD:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return &TransportError{Op: "compress", Err: err}
		}
		payload = enc.EncodeAll(data, globalBufferPool.get(len(data)))
		defer globalBufferPool.put(payload[:0])
		_ = enc.Close()
	default:
		return newProtocolError("unknown compression method %#x", byte(method))
	}

	header := make([]byte, frameHeaderSize)
	header[0] = byte(method)
	putLE32(header[1:5], uint32(len(payload)+frameHeaderSize))
	putLE32(header[5:9], uint32(len(data)))

	block := make([]byte, 0, frameHeaderSize+len(payload))
	block = append(block, header...)
	block = append(block, payload...)

	lo, hi := cityHash128(block)
	checksum := make([]byte, 16)
	putLE64(checksum[0:8], lo)
	putLE64(checksum[8:16], hi)

	if _, err := w.Write(checksum); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if _, err := w.Write(block); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// readCompressedBlock reads and decompresses one compressed frame from r,
// validating the checksum over the reconstructed [header+payload] block
// before decompressing, matching compression.rs's decompress_data_async.
func readCompressedBlock(r *frameReader) ([]byte, error) {
	checksum := make([]byte, 16)
	if _, err := io.ReadFull(r, checksum); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	wantLo := getLE64(checksum[0:8])
	wantHi := getLE64(checksum[8:16])

	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	method := compressionMethod(header[0])
	compressedSize := getLE32(header[1:5])
	uncompressedSize := getLE32(header[5:9])

	if compressedSize > maxCompressedFrameSize {
		return nil, newProtocolError("compressed frame size %d exceeds limit %d", compressedSize, maxCompressedFrameSize)
	}
	if uncompressedSize > maxUncompressedFrameSize {
		return nil, newProtocolError("uncompressed frame size %d exceeds limit %d", uncompressedSize, maxUncompressedFrameSize)
	}
	if compressedSize < frameHeaderSize {
		return nil, newProtocolError("compressed frame size %d is smaller than the %d-byte header", compressedSize, frameHeaderSize)
	}

	payload := make([]byte, compressedSize-frameHeaderSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}

	block := make([]byte, 0, frameHeaderSize+len(payload))
	block = append(block, header...)
	block = append(block, payload...)
	gotLo, gotHi := cityHash128(block)
	if gotLo != wantLo || gotHi != wantHi {
		return nil, newProtocolError("compressed frame checksum mismatch")
	}

	switch method {
	case compressionNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case compressionLZ4:
		dst := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, &TransportError{Op: "decompress", Err: err}
		}
		if uint32(n) != uncompressedSize {
			return nil, newProtocolError("lz4 decompressed size %d does not match header %d", n, uncompressedSize)
		}
		return dst, nil
	case compressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, &TransportError{Op: "decompress", Err: err}
		}
		defer dec.Close()
		dst, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, &TransportError{Op: "decompress", Err: err}
		}
		return dst, nil
	default:
		return nil, newProtocolError("unknown compression method %#x", byte(method))
	}
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getLE64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

func (m compressionMethod) String() string {
	switch m {
	case compressionNone:
		return "none"
	case compressionLZ4:
		return "lz4"
	case compressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(m))
	}
}
