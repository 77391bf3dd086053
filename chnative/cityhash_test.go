package chnative

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCityHash128Deterministic(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("hello"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		make([]byte, 200),
	}
	for _, in := range inputs {
		lo1, hi1 := cityHash128(in)
		lo2, hi2 := cityHash128(in)
		require.Equal(t, lo1, lo2)
		require.Equal(t, hi1, hi2)
	}
}

func TestCityHash128DiffersAcrossInputs(t *testing.T) {
	lo1, hi1 := cityHash128([]byte("clickhouse"))
	lo2, hi2 := cityHash128([]byte("clickhouse!"))
	require.False(t, lo1 == lo2 && hi1 == hi2)
}

func TestCityHash128SensitiveToSingleBitFlip(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	lo1, hi1 := cityHash128(data)
	data[0] ^= 0x01
	lo2, hi2 := cityHash128(data)
	require.False(t, lo1 == lo2 && hi1 == hi2)
}

// TestCityHash128KnownVectors pins fixed 128-bit outputs for the v1.0.2
// variant ClickHouse pins for its compressed-frame checksum, computed from
// an independent reference port of the same algorithm. The determinism and
// bit-flip tests above would pass even against the wrong CityHash variant
// (v1.1 and v1.0.2 both hash consistently and sensitively, just to different
// values); only a known vector catches picking the wrong one.
func TestCityHash128KnownVectors(t *testing.T) {
	cases := []struct {
		name   string
		data   []byte
		wantLo uint64
		wantHi uint64
	}{
		{
			name:   "empty",
			data:   []byte{},
			wantLo: 0x55fb05c76e05f67c,
			wantHi: 0x1bbf251cfce2154a,
		},
		{
			name:   "single byte",
			data:   []byte("a"),
			wantLo: 0xfa46203f90c80a84,
			wantHi: 0x0719ef3bae7fe18b,
		},
		{
			name:   "short string",
			data:   []byte("hello"),
			wantLo: 0xb6425165edd2dd71,
			wantHi: 0x35d3335eff98014e,
		},
		{
			name:   "clickhouse",
			data:   []byte("clickhouse"),
			wantLo: 0x0d1629cb9b59e549,
			wantHi: 0xcc1f52bfde81c62a,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := cityHash128(tc.data)
			require.Equal(t, tc.wantLo, lo, "low64")
			require.Equal(t, tc.wantHi, hi, "high64")
		})
	}
}

// TestCityHash128KnownVectorLongInput pins a known vector on the >=128-byte
// chunked path in cityHash128WithSeed, the code region most structurally
// different between CityHash v1.1 and v1.0.2.
func TestCityHash128KnownVectorLongInput(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	lo, hi := cityHash128(data)
	require.Equal(t, uint64(0xb5fa16110f0b6bfe), lo, "low64")
	require.Equal(t, uint64(0x27fc380926b1ca24), hi, "high64")
}

func TestCityHash128LongInputPath(t *testing.T) {
	// Exercise the >=128-byte chunked path in cityHash128WithSeed.
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	lo1, hi1 := cityHash128(data)
	data[150] ^= 0xff
	lo2, hi2 := cityHash128(data)
	require.False(t, lo1 == lo2 && hi1 == hi2)
}
