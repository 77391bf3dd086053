package chnative

// CityHash128 (v1.0.2), the checksum ClickHouse uses to validate compressed
// wire frames. Ported from Google's reference CityHash algorithm; no package
// in the ecosystem implements this exact variant (ClickHouse pins v1.0.2, not
// a newer FarmHash-derived CityHash), so it is hand-implemented here rather
// than substituted — see DESIGN.md.

const (
	cityK0   = 0xc3a5c85c97cb3127
	cityK1   = 0xb492b66fbe98f273
	cityK2   = 0x9ae16a3b2f90404f
	cityK3   = 0xc949d7c7509e6557
	cityKMul = 0x9ddfea08eb382d69
)

func cityRotate(val uint64, shift uint) uint64 {
	if shift == 0 {
		return val
	}
	return (val >> shift) | (val << (64 - shift))
}

func cityShiftMix(val uint64) uint64 {
	return val ^ (val >> 47)
}

func fetch64(p []byte) uint64 {
	return uint64(p[0]) | uint64(p[1])<<8 | uint64(p[2])<<16 | uint64(p[3])<<24 |
		uint64(p[4])<<32 | uint64(p[5])<<40 | uint64(p[6])<<48 | uint64(p[7])<<56
}

func fetch32(p []byte) uint64 {
	return uint64(p[0]) | uint64(p[1])<<8 | uint64(p[2])<<16 | uint64(p[3])<<24
}

// cityHash128to64 folds a 128-bit value (u, v) down to 64 bits, matching the
// reference Hash128to64(Uint128) helper used throughout CityMurmur.
func cityHash128to64(u, v uint64) uint64 {
	a := (u ^ v) * cityKMul
	a ^= a >> 47
	b := (v ^ a) * cityKMul
	b ^= b >> 47
	b *= cityKMul
	return b
}

func cityHashLen16(u, v uint64) uint64 {
	return cityHash128to64(u, v)
}

// cityHashLen0to16 hashes strings of 16 bytes or fewer to a 64-bit value,
// matching v1.0.2's HashLen0to16 exactly: note the first branch is len > 8,
// not len >= 8 (length 8 falls through to the len >= 4 branch).
func cityHashLen0to16(s []byte) uint64 {
	length := uint64(len(s))
	if length > 8 {
		a := fetch64(s)
		b := fetch64(s[length-8:])
		return cityHashLen16(a, cityRotate(b+length, uint(length))) ^ b
	}
	if length >= 4 {
		a := fetch32(s)
		return cityHashLen16(length+(a<<3), fetch32(s[length-4:]))
	}
	if length > 0 {
		a := s[0]
		b := s[length>>1]
		c := s[length-1]
		y := uint32(a) + uint32(b)<<8
		z := uint32(length) + uint32(c)<<2
		return cityShiftMix(uint64(y)*cityK2^uint64(z)*cityK3) * cityK2
	}
	return cityK2
}

// cityMurmur implements CityMurmur from the reference implementation: the
// workhorse used by CityHash128WithSeed for inputs shorter than 128 bytes.
// Longer inputs take the 128-byte-per-iteration path in cityHash128WithSeed
// instead.
func cityMurmur(s []byte, seedLo, seedHi uint64) (lo, hi uint64) {
	a := seedLo
	b := seedHi
	var c, d uint64
	length := len(s)
	l := length - 16

	if l <= 0 {
		a = cityShiftMix(a*cityK1) * cityK1
		c = b*cityK1 + cityHashLen0to16(s)
		var tail uint64
		if length >= 8 {
			tail = fetch64(s)
		} else {
			tail = c
		}
		d = cityShiftMix(a + tail)
	} else {
		c = cityHash128to64(fetch64(s[length-8:])+cityK1, a)
		d = cityHash128to64(b+uint64(length), c+fetch64(s[length-16:]))
		a += d
		idx := 0
		for {
			a ^= cityShiftMix(fetch64(s[idx:])*cityK1) * cityK1
			a *= cityK1
			b ^= a
			c ^= cityShiftMix(fetch64(s[idx+8:])*cityK1) * cityK1
			c *= cityK1
			d ^= c
			idx += 16
			l -= 16
			if l <= 0 {
				break
			}
		}
	}
	a = cityHash128to64(a, c)
	b = cityHash128to64(d, b)
	return a ^ b, cityHash128to64(b, a)
}

// cityHash128 computes CityHash v1.0.2's 128-bit hash of data, returning the
// result as (low64, high64) matching the frame checksum's little-endian
// half order.
func cityHash128(data []byte) (lo, hi uint64) {
	length := len(data)
	if length >= 16 {
		return cityHash128WithSeed(data[16:], fetch64(data)^cityK3, fetch64(data[8:]))
	}
	return cityHash128WithSeed(data, cityK1, cityK2)
}

// cityHash128WithSeed implements v1.0.2's CityHash128WithSeed: inputs under
// 128 bytes go through cityMurmur; 128 bytes and over use the 56-byte
// (v, w, x, y, z) running state, consumed 128 bytes per outer iteration (two
// manually-unrolled 64-byte steps), followed by a 32-byte-chunk tail loop and
// a final assembly with no extra "mul" term — v1.1 replaced this tail/final
// step with a mul-based mix, which produces a different hash for the same
// input and must not be used here.
func cityHash128WithSeed(s []byte, seedLo, seedHi uint64) (lo, hi uint64) {
	if len(s) < 128 {
		return cityMurmur(s, seedLo, seedHi)
	}

	length := len(s)
	x := seedLo
	y := seedHi
	z := uint64(length) * cityK1

	v0 := cityRotate(y^cityK1, 49)*cityK1 + fetch64(s)
	v1 := cityRotate(v0, 42)*cityK1 + fetch64(s[8:])
	w0 := cityRotate(y+z, 35)*cityK1 + x
	w1 := cityRotate(x+fetch64(s[88:]), 53) * cityK1

	remaining := s
	remLen := length
	step := func() {
		x = cityRotate(x+y+v0+fetch64(remaining[8:]), 37) * cityK1
		y = cityRotate(y+v1+fetch64(remaining[48:]), 42) * cityK1
		x ^= w1
		y += v0 + fetch64(remaining[40:])
		z = cityRotate(z+w0, 33) * cityK1
		v0, v1 = cityWeakHashLen32WithSeeds(remaining, v1*cityK1, x+w0)
		w0, w1 = cityWeakHashLen32WithSeeds(remaining[32:], z+y, x+fetch64(remaining[16:]))
		z, x = x, z
		remaining = remaining[64:]
	}
	for remLen >= 128 {
		step()
		step()
		remLen -= 128
	}

	y += cityRotate(w0, 37)*cityK0 + z
	x += cityRotate(v0+z, 49) * cityK0

	for tailDone := 0; tailDone < remLen; {
		tailDone += 32
		y = cityRotate(y-x, 42)*cityK0 + v1
		w0 += fetch64(s[length-tailDone+16:])
		x = cityRotate(x, 49)*cityK0 + w0
		w0 += v0
		v0, v1 = cityWeakHashLen32WithSeeds(s[length-tailDone:], v0, v1)
	}

	x = cityHashLen16(x, v0)
	y = cityHashLen16(y, w0)

	return cityHashLen16(x+v1, w1) + y, cityHashLen16(x+w1, y+v1) + z
}

func cityWeakHashLen32WithSeeds(s []byte, a, b uint64) (uint64, uint64) {
	w := fetch64(s)
	x := fetch64(s[8:])
	y := fetch64(s[16:])
	z := fetch64(s[24:])

	a += w
	b = cityRotate(b+a+z, 21)
	c := a
	a += x
	a += y
	b += cityRotate(a, 44)
	return a + z, b + c
}
