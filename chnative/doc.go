// Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package chnative implements a client for ClickHouse's native columnar wire
// protocol over TCP, exchanging data as Apache Arrow record batches.
//
// The protocol is binary and columnar: a query issues SQL over the wire and
// receives a sequence of Data blocks, each a set of named, typed columns of
// equal row count. Inserts work the other direction — the client streams
// Data blocks matching a server-announced schema.
//
// # Connecting
//
// [Dial] performs the TCP handshake and negotiates a protocol revision with
// the server, returning a ready [Session]. The session owns its socket and
// its read/write buffers; operations on a single session are not safe for
// concurrent use, but independent sessions may run on separate goroutines.
//
//	sess, err := chnative.Dial(ctx, chnative.Config{Host: "localhost", Database: "default"})
//
// # Querying
//
// [Query] starts a read-path session and returns a [QueryStream], a
// pull-driven sequence of [arrow.RecordBatch] values in the same style as
// [database/sql.Rows]. The latest Progress packet interleaved with the data
// is surfaced through [QueryStream.Progress] without disturbing batch
// ordering; other side-channel packets are read and dropped by the stream.
//
//	stream, err := chnative.Query(ctx, sess, "SELECT number FROM system.numbers LIMIT 5")
//	for stream.Next(ctx) {
//	    batch := stream.RecordBatch()
//	    // use batch, then batch.Release()
//	}
//	err = stream.Err()
//
// # Inserting
//
// [Insert] starts a write-path session and returns an [InsertWriter] that
// accepts [arrow.RecordBatch] values matching the server-announced target
// schema via [InsertWriter.Write], finished with [InsertWriter.Close].
//
// # Type grammar
//
// [ParseType] and the [Type] interface implement the bidirectional mapping
// between ClickHouse's printed type grammar and Arrow's logical types,
// documented in full in the package-level type tables in types.go and
// arrow.go.
//
// # HTTP fallback
//
// The sibling package chnative/chhttp provides an alternative carrier that
// POSTs FORMAT ArrowStream and reads an ordinary Arrow IPC stream back. It is
// opaque to the native column codec in this package and exists only for
// environments where a raw TCP connection to ClickHouse isn't available.
package chnative
