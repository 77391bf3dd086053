package chnative

import (
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDWireOrdering(t *testing.T) {
	std, err := hex.DecodeString("550e8400e29b41d4a716446655440000")
	require.NoError(t, err)
	wantWire, err := hex.DecodeString("d4419be200840e5500004455664416a7")
	require.NoError(t, err)

	gotWire := uuidToWire(std)
	require.Equal(t, wantWire, gotWire[:])

	gotStd := wireToUUID(gotWire[:])
	require.Equal(t, std, gotStd[:])
}

func TestUUIDRoundTripIsIdentity(t *testing.T) {
	std := make([]byte, 16)
	for i := range std {
		std[i] = byte(i * 17)
	}
	wire := uuidToWire(std)
	back := wireToUUID(wire[:])
	require.Equal(t, std, back[:])
}

func TestUUIDWireRoundTripAgainstGoogleUUID(t *testing.T) {
	for i := 0; i < 10; i++ {
		id := uuid.New()
		std := id[:]

		wire := uuidToWire(std)
		back := wireToUUID(wire[:])
		require.Equal(t, std, back[:])

		gotID, err := uuid.FromBytes(back[:])
		require.NoError(t, err)
		require.Equal(t, id, gotID)
	}
}
