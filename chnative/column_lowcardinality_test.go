package chnative

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func buildLCStringArray(t *testing.T, values []string) *array.Dictionary {
	t.Helper()
	mem := memory.NewGoAllocator()
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint32, ValueType: arrow.BinaryTypes.LargeString}
	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	for _, v := range values {
		require.NoError(t, b.AppendString(v))
	}
	return b.NewDictionaryArray()
}

func TestLowCardinalityRoundTrip(t *testing.T) {
	arr := buildLCStringArray(t, []string{"a", "b", "a", "c", "b"})
	defer arr.Release()

	c := lowCardinalityCodec(StringType{})
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, c.write(w, arr))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := c.read(r, arr.Len(), defaultAllocator)
	require.NoError(t, err)
	defer got.Release()

	gotDict, ok := got.(*array.Dictionary)
	require.True(t, ok)
	values, ok := gotDict.Dictionary().(*array.LargeString)
	require.True(t, ok)
	for i := 0; i < gotDict.Len(); i++ {
		require.Equal(t, arr.Dictionary().(*array.LargeString).Value(arr.GetValueIndex(i)), values.Value(gotDict.GetValueIndex(i)))
	}
}

// TestLowCardinalityHeaderIncludesKeysSerializationVersion pins the
// leading Int64(=1) KeysSerializationVersion field ClickHouse expects ahead
// of the flags/dictSize header, independent of the round-trip above (which
// would pass even if writer and reader agreed on a wrong layout).
func TestLowCardinalityHeaderIncludesKeysSerializationVersion(t *testing.T) {
	arr := buildLCStringArray(t, []string{"x"})
	defer arr.Release()

	c := lowCardinalityCodec(StringType{})
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, c.write(w, arr))
	require.NoError(t, w.Flush())

	wire := buf.Bytes()
	require.GreaterOrEqual(t, len(wire), 24)
	require.Equal(t, uint64(1), getLE64(wire[0:8]))
}

func TestLowCardinalityNullableRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Uint32, ValueType: arrow.BinaryTypes.LargeString}
	b := array.NewDictionaryBuilder(mem, dt).(*array.BinaryDictionaryBuilder)
	defer b.Release()
	require.NoError(t, b.AppendString("x"))
	b.AppendNull()
	require.NoError(t, b.AppendString("x"))
	arr := b.NewDictionaryArray()
	defer arr.Release()

	c := lowCardinalityCodec(NullableType{Inner: StringType{}})
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, c.write(w, arr))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := c.read(r, arr.Len(), defaultAllocator)
	require.NoError(t, err)
	defer got.Release()

	gotDict, ok := got.(*array.Dictionary)
	require.True(t, ok)
	require.True(t, gotDict.IsNull(1))
	require.False(t, gotDict.IsNull(0))
	require.False(t, gotDict.IsNull(2))
}
