package ctlsock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

func TestProbeAndCallRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.sock")

	handler := func(_ context.Context, req Request) Response {
		if req.Type == TypeStatus {
			return Response{Type: TypeOK, Status: nil}
		}
		return Response{Type: TypeError, Error: "unknown type"}
	}

	ln := NewListener(path, handler, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ln.Serve(ctx)
	waitForSocket(t, path)

	assert.True(t, Probe(path))

	resp, err := Call(path, Request{Type: TypeStatus})
	require.NoError(t, err)
	assert.Equal(t, TypeOK, resp.Type)
}

func TestCallUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.sock")
	handler := func(_ context.Context, req Request) Response {
		return Response{Type: TypeError, Error: "unknown type " + req.Type}
	}
	ln := NewListener(path, handler, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ln.Serve(ctx)
	waitForSocket(t, path)

	resp, err := Call(path, Request{Type: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, TypeError, resp.Type)
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if Probe(path) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket %s never came up", path)
}
