package chnative

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/require"
)

// fakeServerHello performs the server half of the handshake over conn,
// replying with revision rev.
func fakeServerHello(t *testing.T, conn net.Conn, rev uint64) {
	t.Helper()
	r := newFrameReader(conn)
	w := newFrameWriter(conn)

	tag, err := readUvarint(r)
	require.NoError(t, err)
	require.EqualValues(t, packetClientHello, tag)
	_, err = readString(r, 0) // client name
	require.NoError(t, err)
	_, err = readUvarint(r) // major
	require.NoError(t, err)
	_, err = readUvarint(r) // minor
	require.NoError(t, err)
	_, err = readUvarint(r) // client revision
	require.NoError(t, err)
	_, err = readString(r, 0) // database
	require.NoError(t, err)
	_, err = readString(r, 0) // user
	require.NoError(t, err)
	_, err = readString(r, 0) // password
	require.NoError(t, err)

	require.NoError(t, writeUvarint(w, packetServerHello))
	require.NoError(t, writeString(w, []byte("fakehouse")))
	require.NoError(t, writeUvarint(w, 23))
	require.NoError(t, writeUvarint(w, 8))
	require.NoError(t, writeUvarint(w, rev))
	require.NoError(t, w.Flush())
}

// drainClientQuery consumes one ClientQuery packet and the empty-Data
// external-tables sentinel that follows it, mirroring writeQuery's exact
// field order at clientRevision (every feature gate enabled). It does not
// assert on field values, only that the shape parses.
func drainClientQuery(t *testing.T, r *frameReader) {
	t.Helper()

	tag, err := readUvarint(r)
	require.NoError(t, err)
	require.EqualValues(t, packetClientQuery, tag)

	_, err = readString(r, 0) // query_id
	require.NoError(t, err)

	// client_info (writeClientInfo's exact field order).
	_, err = readUvarint(r) // query_kind
	require.NoError(t, err)
	for i := 0; i < 3; i++ { // initial_user, initial_query_id, initial_address
		_, err = readString(r, 0)
		require.NoError(t, err)
	}
	_, err = readUvarint(r) // interface
	require.NoError(t, err)
	for i := 0; i < 3; i++ { // os_user, client_hostname, client name
		_, err = readString(r, 0)
		require.NoError(t, err)
	}
	_, err = readUvarint(r) // client major
	require.NoError(t, err)
	_, err = readUvarint(r) // client minor
	require.NoError(t, err)
	_, err = readUvarint(r) // client revision
	require.NoError(t, err)
	_, err = readString(r, 0) // quota_key
	require.NoError(t, err)
	_, err = readUvarint(r) // version_patch
	require.NoError(t, err)

	_, err = readString(r, 0) // settings terminator (no settings configured)
	require.NoError(t, err)

	_, err = readUvarint(r) // query stage
	require.NoError(t, err)
	_, err = readUvarint(r) // compression flag
	require.NoError(t, err)
	_, err = readString(r, 0) // sql text
	require.NoError(t, err)
	_, err = readUvarint(r) // parameters count
	require.NoError(t, err)

	// External-tables sentinel: ClientData tag, empty table name, empty block.
	tag, err = readUvarint(r)
	require.NoError(t, err)
	require.EqualValues(t, packetClientData, tag)
	_, err = readString(r, 0)
	require.NoError(t, err)
	_, err = readBlock(r)
	require.NoError(t, err)
}

func TestSessionQueryLifecycle(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		fakeServerHello(t, serverConn, clientRevision)

		r := newFrameReader(serverConn)
		w := newFrameWriter(serverConn)

		// Drain the ClientQuery packet byte-for-byte using the real reader
		// logic (writeQuery's own shape), up through the final empty Data
		// sentinel, then reply with one data block, a Progress packet, and
		// EndOfStream.
		drainClientQuery(t, r)

		// One data block: a single UInt64 column "n" with 3 rows.
		mem := defaultAllocator
		b := array.NewUint64Builder(mem)
		for _, v := range []uint64{1, 2, 3} {
			b.Append(v)
		}
		arr := b.NewArray()
		defer arr.Release()

		require.NoError(t, writeUvarint(w, packetServerData))
		require.NoError(t, writeString(w, nil))
		require.NoError(t, writeBlock(w, &Block{
			Names:   []string{"n"},
			Types:   []Type{UInt64Type{}},
			Columns: []arrow.Array{arr},
			Rows:    3,
		}))

		require.NoError(t, writeUvarint(w, packetServerProgress))
		require.NoError(t, writeUvarint(w, 3))
		require.NoError(t, writeUvarint(w, 24))
		require.NoError(t, writeUvarint(w, 3))

		require.NoError(t, writeUvarint(w, packetServerEndOfStream))
		require.NoError(t, w.Flush())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &Session{
		conn:           clientConn,
		r:              newFrameReader(clientConn),
		w:              newFrameWriter(clientConn),
		cfg:            Config{Database: "default", User: "default"}.withDefaults(),
		serverRevision: clientRevision,
		compression:    compressionNone,
		state:          stateIdle,
	}
	require.NoError(t, sess.handshake(ctx))
	require.Equal(t, "fakehouse", sess.serverName)

	stream, err := Query(ctx, sess, "SELECT n FROM t")
	require.NoError(t, err)

	require.True(t, stream.Next(ctx))
	rb := stream.RecordBatch()
	require.EqualValues(t, 3, rb.NumRows())
	rb.Release()

	require.False(t, stream.Next(ctx))
	require.NoError(t, stream.Err())
	require.NotNil(t, stream.Progress())
	require.EqualValues(t, 3, stream.Progress().Rows)

	<-serverDone
	require.Equal(t, "Idle", sess.State())
}

func TestSessionCancel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		fakeServerHello(t, serverConn, clientRevision)

		r := newFrameReader(serverConn)
		w := newFrameWriter(serverConn)
		drainClientQuery(t, r)

		mem := defaultAllocator
		b := array.NewUint64Builder(mem)
		b.Append(7)
		arr := b.NewArray()
		defer arr.Release()
		require.NoError(t, writeUvarint(w, packetServerData))
		require.NoError(t, writeString(w, nil))
		require.NoError(t, writeBlock(w, &Block{
			Names:   []string{"n"},
			Types:   []Type{UInt64Type{}},
			Columns: []arrow.Array{arr},
			Rows:    1,
		}))
		require.NoError(t, w.Flush())

		// Wait for the client's Cancel packet, then end the stream.
		tag, err := readUvarint(r)
		require.NoError(t, err)
		require.EqualValues(t, packetClientCancel, tag)

		require.NoError(t, writeUvarint(w, packetServerEndOfStream))
		require.NoError(t, w.Flush())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess := &Session{
		conn:           clientConn,
		r:              newFrameReader(clientConn),
		w:              newFrameWriter(clientConn),
		cfg:            Config{Database: "default", User: "default"}.withDefaults(),
		serverRevision: clientRevision,
		compression:    compressionNone,
		state:          stateIdle,
	}
	require.NoError(t, sess.handshake(ctx))

	stream, err := Query(ctx, sess, "SELECT n FROM t")
	require.NoError(t, err)

	require.True(t, stream.Next(ctx))
	stream.RecordBatch().Release()

	require.NoError(t, stream.Cancel())
	require.False(t, stream.Next(ctx))
	require.ErrorIs(t, stream.Err(), ErrCancelled)

	<-serverDone
	require.Equal(t, "Cancelled", sess.State())
}
