package ctlsock

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler resolves one control request into a response. The caller (the
// program manager server) supplies one that knows how to reach its area
// pools; ctlsock only owns the wire protocol and connection lifecycle.
type Handler func(ctx context.Context, req Request) Response

// Listener accepts control connections on a Unix socket and dispatches
// each request line to Handler, one line per connection — matching the
// teacher's handleConnection, which also treats every accepted connection
// as carrying exactly one request/response pair.
type Listener struct {
	path    string
	handler Handler
	log     *logrus.Entry

	ln net.Listener
	wg sync.WaitGroup
}

// NewListener builds a Listener bound to path. Call Serve to start
// accepting connections.
func NewListener(path string, handler Handler, log *logrus.Entry) *Listener {
	return &Listener{path: path, handler: handler, log: log}
}

// Serve listens on l.path and accepts connections until ctx is cancelled
// or Close is called. Removes a stale socket file left by a previous run
// before binding, as the teacher's Start does for PoolSocketPath.
func (l *Listener) Serve(ctx context.Context) error {
	os.Remove(l.path)
	ln, err := net.Listen("unix", l.path)
	if err != nil {
		return err
	}
	l.ln = ln

	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.wg.Wait()
				return nil
			default:
				return err
			}
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConnection(ctx, conn)
		}()
	}
}

func (l *Listener) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		l.writeResponse(conn, Response{Type: TypeError, Error: "malformed request: " + err.Error()})
		return
	}

	resp := l.handler(ctx, req)
	l.writeResponse(conn, resp)
}

func (l *Listener) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		l.log.WithError(err).Debug("writing control response")
	}
}

// Close removes the socket file. Callers should cancel the context passed
// to Serve first so Accept unblocks before Close runs.
func (l *Listener) Close() error {
	os.Remove(l.path)
	return nil
}
