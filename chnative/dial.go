package chnative

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Config configures a Dial. Dial fills in defaults for fields left unset:
// Port 9000 (9440 when TLS is set), LZ4 compression, a 10s connect
// timeout, the pinned client revision, and user "default".
type Config struct {
	Host string
	Port int

	TLS *tls.Config

	Database string
	User     string
	Password string
	QuotaKey string

	// Compression selects the frame compression method used for both
	// directions of the connection. Defaults to LZ4.
	Compression compressionMethod

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// ClientRevision overrides the advertised protocol revision; zero means
	// use the package's pinned clientRevision.
	ClientRevision uint64

	// Settings are forwarded as query-level settings on every query issued
	// over the session.
	Settings map[string]string

	// Hook, if set, observes every query/insert issued on the session.
	// Multiple hooks can be combined with CombineHooks.
	Hook QueryHook
}

// CombineHooks fans a lifecycle out to several hooks, for registering
// chotel's instrumentation alongside a user-supplied hook.
func CombineHooks(hooks ...QueryHook) QueryHook {
	return multiHook{hooks: hooks}
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		if c.TLS != nil {
			c.Port = 9440
		} else {
			c.Port = 9000
		}
	}
	if c.Compression == 0 {
		c.Compression = compressionLZ4
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ClientRevision == 0 {
		c.ClientRevision = clientRevision
	}
	if c.User == "" {
		c.User = "default"
	}
	return c
}

// Dial opens a TCP (or TLS, when cfg.TLS is set) connection to a ClickHouse
// server and performs the Hello handshake, returning a ready Session.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	var conn net.Conn
	var err error
	if cfg.TLS != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cfg.TLS}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	s := &Session{
		conn:           conn,
		r:              newFrameReader(conn),
		w:              newFrameWriter(conn),
		cfg:            cfg,
		hook:           cfg.Hook,
		serverRevision: cfg.ClientRevision,
		compression:    cfg.Compression,
		state:          stateIdle,
	}

	if err := s.applyDeadlines(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) applyDeadlines() error {
	if s.cfg.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return &TransportError{Op: "set-read-deadline", Err: err}
		}
	}
	if s.cfg.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return &TransportError{Op: "set-write-deadline", Err: err}
		}
	}
	return nil
}
