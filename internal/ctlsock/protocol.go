// Package ctlsock implements the daemon's local control plane: a
// Unix-domain, newline-delimited JSON request/response protocol that
// `pm pool status/pause/resume/drain` and `pm watch` use to talk to a
// running `pm serve` daemon.
//
// This is a local introspection/control surface, not "a network API of
// its own" in the sense spec.md's Non-goals exclude (which rules out a
// remote, fleet-facing API) — it never leaves the host the daemon runs
// on. Modeled directly on the teacher's src/internal/vm/pool_protocol.go
// (PoolRequest/PoolResponse) and pool_client.go (poolRPC's dial-write-
// read-one-line shape).
package ctlsock

import (
	"fmt"
	"os"

	"github.com/ghabrous/fgc-pm/internal/pool"
)

// Request is sent from a control client to the daemon.
type Request struct {
	Type string `json:"type"`           // "status" | "pause" | "resume" | "drain" | "stop"
	Area string `json:"area,omitempty"` // target area; empty means all areas
}

// Response is sent from the daemon back to a control client.
type Response struct {
	Type   string         `json:"type"` // "ok" | "error"
	Error  string         `json:"error,omitempty"`
	Status []pool.Status  `json:"status,omitempty"`
}

const (
	TypeStatus = "status"
	TypePause  = "pause"
	TypeResume = "resume"
	TypeDrain  = "drain"
	TypeStop   = "stop"

	TypeOK     = "ok"
	TypeError  = "error"
)

// SocketPath returns the per-user Unix socket path for the daemon,
// mirroring PoolSocketPath's UID-scoped naming so multiple users on one
// host never collide.
func SocketPath() string {
	return fmt.Sprintf("/tmp/fgc-pm-%d.sock", os.Getuid())
}
