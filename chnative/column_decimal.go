package chnative

import (
	"math/big"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// decimalCodec handles Decimal(P,S): stored on the wire as the smallest
// signed integer width holding P decimal digits (32/64/128/256 bits);
// scale carries no wire representation, it is metadata only. Arrow has no
// Decimal32/64, so both narrow widths widen into Decimal128, going through
// math/big for the two's-complement conversion.
func decimalCodec(d DecimalType) *columnCodec {
	wireWidth := d.Width() / 8
	if d.Width() <= 128 {
		return &columnCodec{
			write: func(w *frameWriter, arr arrow.Array) error {
				dec, ok := arr.(*array.Decimal128)
				if !ok {
					return newSchemaError("decimal128 codec requires a Decimal128 array, got %T", arr)
				}
				for i := 0; i < dec.Len(); i++ {
					bi := dec.Value(i).BigInt()
					buf := bigIntToLEBytes(bi, wireWidth)
					if _, err := w.Write(buf); err != nil {
						return &TransportError{Op: "write", Err: err}
					}
				}
				return nil
			},
			read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
				b := array.NewDecimal128Builder(alloc, &arrow.Decimal128Type{Precision: int32(d.Precision), Scale: int32(d.Scale)})
				defer b.Release()
				b.Reserve(rows)
				buf := make([]byte, wireWidth)
				for i := 0; i < rows; i++ {
					if _, err := r.Read(buf); err != nil {
						return nil, &TransportError{Op: "read", Err: err}
					}
					bi := leBytesToBigInt(buf, true)
					num := decimal128.FromBigInt(bi)
					b.Append(num)
				}
				return b.NewArray(), nil
			},
		}
	}
	return &columnCodec{
		write: func(w *frameWriter, arr arrow.Array) error {
			dec, ok := arr.(*array.Decimal256)
			if !ok {
				return newSchemaError("decimal256 codec requires a Decimal256 array, got %T", arr)
			}
			for i := 0; i < dec.Len(); i++ {
				bi := dec.Value(i).BigInt()
				buf := bigIntToLEBytes(bi, wireWidth)
				if _, err := w.Write(buf); err != nil {
					return &TransportError{Op: "write", Err: err}
				}
			}
			return nil
		},
		read: func(r *frameReader, rows int, alloc memory.Allocator) (arrow.Array, error) {
			b := array.NewDecimal256Builder(alloc, &arrow.Decimal256Type{Precision: int32(d.Precision), Scale: int32(d.Scale)})
			defer b.Release()
			b.Reserve(rows)
			buf := make([]byte, wireWidth)
			for i := 0; i < rows; i++ {
				if _, err := r.Read(buf); err != nil {
					return nil, &TransportError{Op: "read", Err: err}
				}
				bi := leBytesToBigInt(buf, true)
				num := decimal256.FromBigInt(bi)
				b.Append(num)
			}
			return b.NewArray(), nil
		},
	}
}

// leBytesToBigInt interprets buf as a little-endian two's-complement (when
// signed) integer.
func leBytesToBigInt(buf []byte, signed bool) *big.Int {
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	bi := new(big.Int).SetBytes(be)
	if signed && len(buf) > 0 && be[0]&0x80 != 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(buf)*8))
		bi.Sub(bi, full)
	}
	return bi
}

// bigIntToLEBytes encodes bi as a little-endian two's-complement integer of
// exactly width bytes.
func bigIntToLEBytes(bi *big.Int, width int) []byte {
	v := bi
	if bi.Sign() < 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
		v = new(big.Int).Add(full, bi)
	}
	be := v.Bytes()
	out := make([]byte, width)
	for i := 0; i < len(be) && i < width; i++ {
		out[width-1-i] = be[len(be)-1-i]
	}
	return out
}
