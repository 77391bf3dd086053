package chnative

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTripPrimitive(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewUint64Builder(mem)
	for i := uint64(0); i < 5; i++ {
		b.Append(i * 100)
	}
	arr := b.NewArray()
	defer arr.Release()

	block := &Block{
		Names:   []string{"n"},
		Types:   []Type{UInt64Type{}},
		Columns: []arrow.Array{arr},
		Rows:    5,
	}

	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeBlock(w, block))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readBlock(r)
	require.NoError(t, err)
	require.Equal(t, 5, got.Rows)
	require.Equal(t, "n", got.Names[0])

	gotArr, ok := got.Columns[0].(*array.Uint64)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		require.Equal(t, uint64(i*100), gotArr.Value(i))
	}
}

func TestBlockRoundTripEmpty(t *testing.T) {
	block := &Block{
		Names:   []string{"n"},
		Types:   []Type{StringType{}},
		Columns: nil,
		Rows:    0,
	}

	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeBlock(w, block))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readBlock(r)
	require.NoError(t, err)
	require.Equal(t, 0, got.Rows)
	require.Equal(t, "n", got.Names[0])
	require.Equal(t, 0, got.Columns[0].Len())
}

func TestBlockInfoRoundTrip(t *testing.T) {
	info := blockInfo{IsOverflows: true, BucketNum: 7}
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeBlockInfo(w, info))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readBlockInfo(r)
	require.NoError(t, err)
	require.Equal(t, info, got)
}
