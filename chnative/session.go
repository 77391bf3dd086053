package chnative

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
)

// sessionState is the session's current lifecycle state.
type sessionState int

const (
	stateIdle sessionState = iota
	stateSending
	stateReceiving
	stateCancelling
	stateCancelled
	stateFailed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateSending:
		return "Sending"
	case stateReceiving:
		return "Receiving"
	case stateCancelling:
		return "Cancelling"
	case stateCancelled:
		return "Cancelled"
	case stateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Progress carries a Progress side-channel packet's counters.
type Progress struct {
	Rows      uint64
	Bytes     uint64
	TotalRows uint64
}

// ProfileInfo carries a ProfileInfo side-channel packet's counters.
type ProfileInfo struct {
	Rows                     uint64
	Blocks                   uint64
	Bytes                    uint64
	AppliedLimit             bool
	RowsBeforeLimit          uint64
	CalculatedRowsBeforeLimit bool
}

// SideChannel is whatever non-data packet arrived between data blocks:
// Progress, ProfileInfo, a Log block, Totals, Extremes, or ProfileEvents.
// The caller's stream iterator surfaces these without interrupting the
// data sequence.
type SideChannel struct {
	Progress    *Progress
	ProfileInfo *ProfileInfo
	Log         *Block
	Totals      *Block
	Extremes    *Block
	ProfileEvents *Block
}

// Session is a connection-scoped object owning the framed stream, the
// negotiated server revision/capabilities, the compression method, and the
// current query state. Not safe for concurrent use from multiple
// goroutines except for Cancel, which may be called while another
// goroutine is blocked reading — a cooperative single-threaded model, with
// cancellation as the one designed exception.
type Session struct {
	conn   net.Conn
	r      *frameReader
	w      *frameWriter
	cfg    Config
	hook   QueryHook

	serverRevision uint64
	serverName     string
	compression    compressionMethod

	mu        sync.Mutex
	state     sessionState
	cancelReq bool
}

func (s *Session) setState(st sessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// handshake performs the Hello exchange and negotiates the effective
// protocol revision.
func (s *Session) handshake(ctx context.Context) error {
	if err := s.writeClientHello(); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return s.readServerHello()
}

func (s *Session) writeClientHello() error {
	if err := writeUvarint(s.w, packetClientHello); err != nil {
		return err
	}
	if err := writeString(s.w, []byte("chnative")); err != nil {
		return err
	}
	if err := writeUvarint(s.w, 1); err != nil { // major
		return err
	}
	if err := writeUvarint(s.w, 1); err != nil { // minor
		return err
	}
	if err := writeUvarint(s.w, clientRevision); err != nil {
		return err
	}
	if err := writeString(s.w, []byte(s.cfg.Database)); err != nil {
		return err
	}
	if err := writeString(s.w, []byte(s.cfg.User)); err != nil {
		return err
	}
	return writeString(s.w, []byte(s.cfg.Password))
}

func (s *Session) readServerHello() error {
	tag, err := readUvarint(s.r)
	if err != nil {
		return err
	}
	if tag == packetServerException {
		ex, err := readServerException(s.r)
		if err != nil {
			return err
		}
		return ex
	}
	if tag != packetServerHello {
		return newProtocolError("expected ServerHello (0), got packet tag %d", tag)
	}
	name, err := readString(s.r, defaultMaxStringLen)
	if err != nil {
		return err
	}
	if _, err := readUvarint(s.r); err != nil { // major
		return err
	}
	if _, err := readUvarint(s.r); err != nil { // minor
		return err
	}
	revision, err := readUvarint(s.r)
	if err != nil {
		return err
	}
	s.serverName = string(name)
	if revision < s.serverRevision || s.serverRevision == 0 {
		s.serverRevision = revision
	}
	if s.serverRevision < minServerRevision {
		return newProtocolError("server revision %d below minimum supported %d", s.serverRevision, minServerRevision)
	}
	if s.serverRevision > clientRevision {
		s.serverRevision = clientRevision
	}
	slog.Debug("session: handshake complete", "server", s.serverName, "revision", s.serverRevision)
	return nil
}

func readServerException(r *frameReader) (*ServerException, error) {
	code, err := readUvarintAsInt32(r)
	if err != nil {
		return nil, err
	}
	name, err := readString(r, defaultMaxStringLen)
	if err != nil {
		return nil, err
	}
	message, err := readString(r, defaultMaxStringLen)
	if err != nil {
		return nil, err
	}
	stack, err := readString(r, defaultMaxStringLen)
	if err != nil {
		return nil, err
	}
	hasNested, err := r.ReadByte()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	ex := &ServerException{Code: code, Name: string(name), Message: string(message), Stack: string(stack)}
	if hasNested != 0 {
		nested, err := readServerException(r)
		if err != nil {
			return nil, err
		}
		ex.Nested = nested
	}
	return ex, nil
}

func readUvarintAsInt32(r *frameReader) (int32, error) {
	v, err := readUvarint(r)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// writeQuery issues the Query packet and the external-tables sentinel,
// shared by both the read and insert paths.
func (s *Session) writeQuery(ctx context.Context, queryID, sql string) error {
	s.setState(stateSending)
	if err := writeUvarint(s.w, packetClientQuery); err != nil {
		return s.fail(err)
	}
	if err := writeString(s.w, []byte(queryID)); err != nil {
		return s.fail(err)
	}
	if featureGate("client_info", s.serverRevision) {
		if err := s.writeClientInfo(); err != nil {
			return s.fail(err)
		}
	}
	if err := s.writeSettings(); err != nil {
		return s.fail(err)
	}
	if err := writeUvarint(s.w, queryStageComplete); err != nil {
		return s.fail(err)
	}
	compressionFlag := uint64(compressionDisabled)
	if s.compression != compressionNone {
		compressionFlag = compressionEnabled
	}
	if err := writeUvarint(s.w, compressionFlag); err != nil {
		return s.fail(err)
	}
	if err := writeString(s.w, []byte(sql)); err != nil {
		return s.fail(err)
	}
	if featureGate("parameters", s.serverRevision) {
		if err := writeUvarint(s.w, 0); err != nil { // empty parameters map
			return s.fail(err)
		}
	}

	empty := &Block{Names: nil, Types: nil, Columns: nil, Rows: 0}
	if err := s.writeDataBlock(empty); err != nil {
		return s.fail(err)
	}
	if err := s.w.Flush(); err != nil {
		return s.fail(&TransportError{Op: "write", Err: err})
	}
	return nil
}

// writeDataBlock writes a ClientData packet carrying b. When compression is
// enabled the block body (everything after the packet tag) is serialized
// into memory first and wrapped in a single compressed frame, at the
// same per-block granularity as the rest of the wire protocol.
func (s *Session) writeDataBlock(b *Block) error {
	if err := writeUvarint(s.w, packetClientData); err != nil {
		return err
	}
	if err := writeString(s.w, nil); err != nil { // table name (external tables)
		return err
	}
	if s.compression == compressionNone {
		return writeBlock(s.w, b)
	}
	var buf bytes.Buffer
	inner := newFrameWriter(&buf)
	if err := writeBlock(inner, b); err != nil {
		return err
	}
	if err := inner.Flush(); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return writeCompressedBlock(s.w, buf.Bytes(), s.compression)
}

// readDataBlock reads one ClientData/ServerData packet's block body,
// undoing the compression applied by writeDataBlock when the session
// negotiated compression.
func (s *Session) readDataBlock() (*Block, error) {
	if s.compression == compressionNone {
		return readBlock(s.r)
	}
	raw, err := readCompressedBlock(s.r)
	if err != nil {
		return nil, err
	}
	inner := newFrameReader(bytes.NewReader(raw))
	return readBlock(inner)
}

func (s *Session) writeClientInfo() error {
	// Minimal client info: query kind=initial(1), empty initial fields,
	// interface=TCP(1), OS user, hostname, client name/version/revision.
	if err := writeUvarint(s.w, 1); err != nil {
		return err
	}
	if err := writeString(s.w, nil); err != nil { // initial_user
		return err
	}
	if err := writeString(s.w, nil); err != nil { // initial_query_id
		return err
	}
	if err := writeString(s.w, nil); err != nil { // initial_address
		return err
	}
	if err := writeUvarint(s.w, 1); err != nil { // interface=TCP
		return err
	}
	if err := writeString(s.w, nil); err != nil { // os_user
		return err
	}
	if err := writeString(s.w, nil); err != nil { // client_hostname
		return err
	}
	if err := writeString(s.w, []byte("chnative")); err != nil {
		return err
	}
	if err := writeUvarint(s.w, 1); err != nil {
		return err
	}
	if err := writeUvarint(s.w, 1); err != nil {
		return err
	}
	if err := writeUvarint(s.w, clientRevision); err != nil {
		return err
	}
	if featureGate("quota_key", s.serverRevision) {
		if err := writeString(s.w, []byte(s.cfg.QuotaKey)); err != nil {
			return err
		}
	}
	if featureGate("version_patch", s.serverRevision) {
		if err := writeUvarint(s.w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeSettings() error {
	// Settings-as-strings (name, is_important, value), terminated by an
	// empty name, matching the revisionWithSettingsAsStrings format.
	for name, value := range s.cfg.Settings {
		if err := writeString(s.w, []byte(name)); err != nil {
			return err
		}
		if err := s.w.WriteByte(0); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		if err := writeString(s.w, []byte(value)); err != nil {
			return err
		}
	}
	return writeString(s.w, nil)
}

// fail transitions the session to Failed and returns err unchanged, for
// use at every I/O error site: transport errors are never silently
// retried inside the core.
func (s *Session) fail(err error) error {
	slog.Error("session: transitioning to failed", "err", err)
	s.setState(stateFailed)
	return err
}

// nextPacket reads the next server packet and classifies it.
func (s *Session) nextPacket() (tag uint64, block *Block, sideChannel *SideChannel, err error) {
	tag, err = readUvarint(s.r)
	if err != nil {
		return 0, nil, nil, s.fail(err)
	}
	switch tag {
	case packetServerData, packetServerTotals, packetServerExtremes, packetServerLog, packetServerProfileEvents:
		if _, err := readString(s.r, defaultMaxStringLen); err != nil { // table name
			return tag, nil, nil, s.fail(err)
		}
		b, err := s.readDataBlock()
		if err != nil {
			return tag, nil, nil, s.fail(err)
		}
		switch tag {
		case packetServerData:
			return tag, b, nil, nil
		case packetServerTotals:
			return tag, nil, &SideChannel{Totals: b}, nil
		case packetServerExtremes:
			return tag, nil, &SideChannel{Extremes: b}, nil
		case packetServerLog:
			return tag, nil, &SideChannel{Log: b}, nil
		case packetServerProfileEvents:
			return tag, nil, &SideChannel{ProfileEvents: b}, nil
		}
	case packetServerProgress:
		p, err := s.readProgress()
		if err != nil {
			return tag, nil, nil, s.fail(err)
		}
		return tag, nil, &SideChannel{Progress: p}, nil
	case packetServerProfileInfo:
		pi, err := s.readProfileInfo()
		if err != nil {
			return tag, nil, nil, s.fail(err)
		}
		return tag, nil, &SideChannel{ProfileInfo: pi}, nil
	case packetServerException:
		ex, err := readServerException(s.r)
		if err != nil {
			return tag, nil, nil, s.fail(err)
		}
		s.setState(stateFailed)
		return tag, nil, nil, ex
	case packetServerEndOfStream:
		s.mu.Lock()
		cancelled := s.cancelReq
		s.mu.Unlock()
		if cancelled {
			s.setState(stateCancelled)
			return tag, nil, nil, ErrCancelled
		}
		s.setState(stateIdle)
		return tag, nil, nil, nil
	case packetServerPong:
		return tag, nil, nil, nil
	case packetServerTableColumns:
		if _, err := readString(s.r, defaultMaxStringLen); err != nil {
			return tag, nil, nil, s.fail(err)
		}
		if _, err := readString(s.r, defaultMaxStringLen); err != nil {
			return tag, nil, nil, s.fail(err)
		}
		return tag, nil, nil, nil
	default:
		return tag, nil, nil, s.fail(newProtocolError("unexpected server packet tag %d", tag))
	}
	return tag, nil, nil, nil
}

func (s *Session) readProgress() (*Progress, error) {
	rows, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	bytes, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	total, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	return &Progress{Rows: rows, Bytes: bytes, TotalRows: total}, nil
}

func (s *Session) readProfileInfo() (*ProfileInfo, error) {
	rows, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	blocks, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	bytes, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	applied, err := s.r.ReadByte()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	rowsBeforeLimit, err := readUvarint(s.r)
	if err != nil {
		return nil, err
	}
	calculated, err := s.r.ReadByte()
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return &ProfileInfo{
		Rows: rows, Blocks: blocks, Bytes: bytes,
		AppliedLimit: applied != 0, RowsBeforeLimit: rowsBeforeLimit,
		CalculatedRowsBeforeLimit: calculated != 0,
	}, nil
}

// StartQuery issues a read query and transitions to Receiving, ready for
// repeated calls to Next.
func (s *Session) StartQuery(ctx context.Context, queryID, sql string) error {
	if err := s.writeQuery(ctx, queryID, sql); err != nil {
		return err
	}
	s.setState(stateReceiving)
	return nil
}

// StartInsert issues an INSERT ... FORMAT Native query and reads the
// server's schema-announcement block (an empty Data block describing the
// target table's columns), returning it so the caller can validate or
// build matching blocks.
func (s *Session) StartInsert(ctx context.Context, queryID, sql string) (*Block, error) {
	if err := s.writeQuery(ctx, queryID, sql); err != nil {
		return nil, err
	}
	s.setState(stateReceiving)
	tag, block, side, err := s.nextPacket()
	if err != nil {
		return nil, err
	}
	if tag == packetServerException {
		return nil, err
	}
	if tag != packetServerData || block == nil {
		return nil, s.fail(newProtocolError("expected schema-announcement Data packet, got tag %d (side-channel: %+v)", tag, side))
	}
	return block, nil
}

// SendBlock writes one Data block during an insert.
func (s *Session) SendBlock(b *Block) error {
	if err := s.writeDataBlock(b); err != nil {
		return s.fail(err)
	}
	return s.w.Flush()
}

// FinishInsert writes the final empty Data block that signals end of
// insert and reads until EndOfStream/Exception.
func (s *Session) FinishInsert() error {
	empty := &Block{Rows: 0}
	if err := s.SendBlock(empty); err != nil {
		return err
	}
	for {
		tag, _, _, err := s.nextPacket()
		if err != nil {
			return err
		}
		if tag == packetServerEndOfStream {
			return nil
		}
	}
}

// Next pulls the next data block or side-channel packet from the server.
// It returns (nil, nil, nil) only at an uncancelled EndOfStream, after which
// the session is Idle again. If a Cancel was previously sent, the EndOfStream
// that ends the drain is instead reported as (nil, nil, ErrCancelled) and the
// session becomes Cancelled rather than Idle. Callers drive a query/insert's
// entire lifetime by calling Next in a loop: there is no internal
// unbounded queue buffering blocks ahead of the caller, so back-pressure
// flows naturally from how often the caller calls Next.
func (s *Session) Next() (*Block, *SideChannel, error) {
	for {
		tag, block, side, err := s.nextPacket()
		if err != nil {
			return nil, nil, err
		}
		switch tag {
		case packetServerEndOfStream:
			return nil, nil, nil
		case packetServerData:
			return block, nil, nil
		default:
			if side != nil {
				return nil, side, nil
			}
			// Packets with no payload relevant to the caller (Pong,
			// TableColumns) are consumed and looped past.
		}
	}
}

// Cancel sends a Cancel packet and transitions to Cancelling; the caller
// must keep draining via Next until EndOfStream/Exception is observed.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state != stateReceiving {
		s.mu.Unlock()
		return nil
	}
	s.state = stateCancelling
	s.cancelReq = true
	s.mu.Unlock()

	if err := writeUvarint(s.w, packetClientCancel); err != nil {
		return s.fail(err)
	}
	return s.w.Flush()
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
