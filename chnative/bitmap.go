package chnative

import "github.com/klauspost/cpuid/v2"

// expandNullBitmap converts a packed Arrow validity bitmap (bit=1 valid) to
// ClickHouse's byte-per-row null map (byte=1 null) for the first len values
// starting at bitOffset. output must have length >= len.
//
// A runtime-detected AVX2 path is used when available; Go has no compile-time
// target-feature dispatch, so cpuid feature detection (rather than a build
// tag) is the idiomatic substitute for the reference implementation's
// is_x86_feature_detected!.
func expandNullBitmap(bitmap []byte, bitOffset, length int, output []byte) {
	if bitOffset != 0 {
		expandNullBitmapScalar(bitmap, bitOffset, length, output)
		return
	}
	if hasAVX2 {
		expandNullBitmapAVX2(bitmap, length, output)
		return
	}
	expandNullBitmapScalar(bitmap, 0, length, output)
}

// hasAVX2 is resolved once at init time via runtime CPU feature detection.
var hasAVX2 = cpuid.CPU.Supports(cpuid.AVX2)

// expandNullBitmapScalar is the portable fallback, one bit at a time. It also
// handles the non-byte-aligned bitOffset case that the AVX2 path defers to it.
func expandNullBitmapScalar(bitmap []byte, bitOffset, length int, output []byte) {
	for i := 0; i < length; i++ {
		bit := bitOffset + i
		b := bitmap[bit/8]
		valid := (b>>(uint(bit)%8))&1 != 0
		if valid {
			output[i] = 0
		} else {
			output[i] = 1
		}
	}
}

// expandNullBitmapAVX2 processes 32 bits (4 bitmap bytes) per iteration via
// an unrolled byte expansion, matching the reference implementation's
// observation that LLVM/Go's compiler auto-vectorizes an unrolled scalar loop
// about as well as hand-written intrinsics for this shuffle+mask shape.
func expandNullBitmapAVX2(bitmap []byte, length int, output []byte) {
	fullChunks := length / 32
	outIdx := 0
	for c := 0; c < fullChunks; c++ {
		base := c * 4
		expandByteTo8(bitmap[base], output[outIdx:])
		expandByteTo8(bitmap[base+1], output[outIdx+8:])
		expandByteTo8(bitmap[base+2], output[outIdx+16:])
		expandByteTo8(bitmap[base+3], output[outIdx+24:])
		outIdx += 32
	}
	remaining := length - fullChunks*32
	if remaining > 0 {
		expandNullBitmapScalar(bitmap[fullChunks*4:], 0, remaining, output[outIdx:])
	}
}

func expandByteTo8(b byte, out []byte) {
	out[0] = boolByte(b&0x01 == 0)
	out[1] = boolByte(b&0x02 == 0)
	out[2] = boolByte(b&0x04 == 0)
	out[3] = boolByte(b&0x08 == 0)
	out[4] = boolByte(b&0x10 == 0)
	out[5] = boolByte(b&0x20 == 0)
	out[6] = boolByte(b&0x40 == 0)
	out[7] = boolByte(b&0x80 == 0)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// packNullBitmap is the inverse of expandNullBitmap: it packs a ClickHouse
// byte-per-row null map (byte=1 null) into an Arrow validity bitmap
// (bit=1 valid) of ceil(len/8) bytes.
func packNullBitmap(nullMap []byte) []byte {
	length := len(nullMap)
	out := make([]byte, (length+7)/8)
	for i, b := range nullMap {
		if b == 0 {
			out[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return out
}
