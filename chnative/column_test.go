package chnative

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestWriteNullableColumnFixedWidthVectoredPath(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewInt32Builder(mem)
	b.Append(1)
	b.AppendNull()
	b.Append(3)
	arr := b.NewArray()
	defer arr.Release()

	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeNullableColumn(w, Int32Type{}, arr))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readNullableColumn(r, Int32Type{}, 3)
	require.NoError(t, err)
	defer got.Release()

	gotArr, ok := got.(*array.Int32)
	require.True(t, ok)
	require.False(t, gotArr.IsNull(0))
	require.Equal(t, int32(1), gotArr.Value(0))
	require.True(t, gotArr.IsNull(1))
	require.False(t, gotArr.IsNull(2))
	require.Equal(t, int32(3), gotArr.Value(2))
}

func TestWriteNullableColumnNonPrimitiveFallback(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewLargeStringBuilder(mem)
	b.Append("x")
	b.AppendNull()
	b.Append("z")
	arr := b.NewArray()
	defer arr.Release()

	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeNullableColumn(w, StringType{}, arr))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readNullableColumn(r, StringType{}, 3)
	require.NoError(t, err)
	defer got.Release()

	gotArr, ok := got.(*array.LargeString)
	require.True(t, ok)
	require.Equal(t, "x", gotArr.Value(0))
	require.True(t, gotArr.IsNull(1))
	require.Equal(t, "z", gotArr.Value(2))
}
