package session

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/juju/errors"

	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

// TCPSession is a concrete Session backed by a newline-delimited text
// protocol over a plain TCP connection: "GET <prop>\n" and
// "SET <prop> <value>\n" requests, one "OK <value>\n" or "ERR <message>\n"
// reply per request. This stands in for the proprietary RPC transport the
// real converter firmware speaks (closed, and outside the scope of this
// module); any real deployment supplies its own session.Session instead.
type TCPSession struct {
	conn net.Conn
	rw   *bufio.ReadWriter
}

// DialTCP opens a TCPSession to addr (host:port), the way pyfgc.connect
// opens a session by converter name.
func DialTCP(ctx context.Context, addr string) (*TCPSession, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, pmerrors.RpcFailure(err, "dialing %s", addr)
	}
	return &TCPSession{
		conn: conn,
		rw:   bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
	}, nil
}

func (s *TCPSession) Get(ctx context.Context, prop string) (string, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.conn.SetDeadline(dl)
	} else {
		s.conn.SetDeadline(time.Time{})
	}
	if _, err := fmt.Fprintf(s.rw, "GET %s\n", prop); err != nil {
		return "", pmerrors.RpcFailure(err, "writing GET %s", prop)
	}
	if err := s.rw.Flush(); err != nil {
		return "", pmerrors.RpcFailure(err, "flushing GET %s", prop)
	}
	return s.readReply()
}

func (s *TCPSession) Set(ctx context.Context, prop, value string) error {
	if dl, ok := ctx.Deadline(); ok {
		s.conn.SetDeadline(dl)
	} else {
		s.conn.SetDeadline(time.Time{})
	}
	if _, err := fmt.Fprintf(s.rw, "SET %s %s\n", prop, value); err != nil {
		return pmerrors.RpcFailure(err, "writing SET %s", prop)
	}
	if err := s.rw.Flush(); err != nil {
		return pmerrors.RpcFailure(err, "flushing SET %s", prop)
	}
	_, err := s.readReply()
	return err
}

func (s *TCPSession) readReply() (string, error) {
	line, err := s.rw.ReadString('\n')
	if err != nil {
		return "", pmerrors.RpcFailure(err, "reading reply")
	}
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "ERR "):
		return "", errors.Errorf("remote error: %s", strings.TrimPrefix(line, "ERR "))
	default:
		return "", errors.Errorf("malformed reply %q", line)
	}
}

func (s *TCPSession) Disconnect() error {
	return s.conn.Close()
}
