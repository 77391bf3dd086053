package chnative

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandNullBitmapScalarVsAVX2(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, length := range []int{0, 1, 7, 8, 31, 32, 33, 64, 127, 1000} {
		bitmap := make([]byte, (length+7)/8+1)
		rng.Read(bitmap)

		scalar := make([]byte, length)
		expandNullBitmapScalar(bitmap, 0, length, scalar)

		avx2 := make([]byte, length)
		if hasAVX2 {
			expandNullBitmapAVX2(bitmap, length, avx2)
		} else {
			expandNullBitmapScalar(bitmap, 0, length, avx2)
		}
		require.Equal(t, scalar, avx2, "length=%d", length)
	}
}

func TestPackNullBitmapInvertsExpand(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, length := range []int{0, 1, 8, 9, 64, 100} {
		bitmap := make([]byte, (length+7)/8+1)
		rng.Read(bitmap)

		nullMap := make([]byte, length)
		expandNullBitmap(bitmap, 0, length, nullMap)
		packed := packNullBitmap(nullMap)

		for i := 0; i < length; i++ {
			wantValid := (bitmap[i/8]>>(uint(i)%8))&1 != 0
			gotValid := (packed[i/8]>>(uint(i)%8))&1 != 0
			require.Equal(t, wantValid, gotValid, "bit %d", i)
		}
	}
}
