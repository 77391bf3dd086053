package chnative

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 256, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, writeUvarint(&buf, v))
		require.LessOrEqual(t, buf.Len(), maxVarintLen)
		got, err := readUvarint(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarintTooLong(t *testing.T) {
	buf := bytes.NewBuffer(bytes.Repeat([]byte{0x80}, maxVarintLen+1))
	_, err := readUvarint(buf)
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeString(w, []byte("hello, clickhouse")))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	got, err := readString(r, defaultMaxStringLen)
	require.NoError(t, err)
	require.Equal(t, "hello, clickhouse", string(got))
}

func TestStringExceedsMaxLen(t *testing.T) {
	var buf bytes.Buffer
	w := newFrameWriter(&buf)
	require.NoError(t, writeString(w, make([]byte, 100)))
	require.NoError(t, w.Flush())

	r := newFrameReader(&buf)
	_, err := readString(r, 10)
	require.Error(t, err)
}
