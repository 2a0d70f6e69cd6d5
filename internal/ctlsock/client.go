package ctlsock

import (
	"bufio"
	"encoding/json"
	"net"
	"time"

	"github.com/juju/errors"
)

// Probe reports whether a daemon is listening on socketPath.
func Probe(socketPath string) bool {
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Call sends req to the daemon listening on socketPath and returns its
// response, the Go shape of poolRPC: dial, write one JSON line, read one
// JSON line back.
func Call(socketPath string, req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, errors.Annotate(err, "connecting to program manager daemon")
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(30 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Annotate(err, "marshaling control request")
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, errors.Annotate(err, "sending control request")
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, errors.Annotate(err, "reading control response")
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, errors.Annotate(err, "parsing control response")
	}
	return &resp, nil
}
