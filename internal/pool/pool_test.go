package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghabrous/fgc-pm/internal/job"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return logrus.NewEntry(l)
}

func TestAddJobDedupesInFlight(t *testing.T) {
	p := New("TT1", 1, testLogger())

	release := make(chan struct{})
	var started int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	ok1 := p.AddJob(context.Background(), job.New("CONV.01", func(string) error {
		atomic.AddInt32(&started, 1)
		<-release
		return nil
	}))
	require.True(t, ok1)

	// Give the worker a moment to pick up the first job so inFlight is set
	// before the duplicate is attempted.
	time.Sleep(20 * time.Millisecond)

	ok2 := p.AddJob(context.Background(), job.New("CONV.01", func(string) error { return nil }))
	assert.False(t, ok2, "duplicate job key must be rejected while in flight")

	close(release)
}

func TestAddJobRejectedWhilePaused(t *testing.T) {
	p := New("TT2", 2, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.Pause()
	ok := p.AddJob(context.Background(), job.New("CONV.02", func(string) error { return nil }))
	assert.False(t, ok)

	p.Resume()
	ok = p.AddJob(context.Background(), job.New("CONV.02", func(string) error { return nil }))
	assert.True(t, ok)
}

func TestDrainWaitsForInFlightAndQueued(t *testing.T) {
	p := New("TT3", 2, testLogger())
	ctx := context.Background()
	p.Start(ctx)

	var mu sync.Mutex
	var completed []string

	for _, conv := range []string{"CONV.A", "CONV.B", "CONV.C"} {
		c := conv
		ok := p.AddJob(ctx, job.New(c, func(string) error {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			completed = append(completed, c)
			mu.Unlock()
			return nil
		}))
		require.True(t, ok)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Drain(drainCtx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, completed, 3)
}

func TestAddJobRejectedAfterDrainStarted(t *testing.T) {
	p := New("TT4", 1, testLogger())
	ctx := context.Background()
	p.Start(ctx)

	require.NoError(t, p.Drain(context.Background()))

	ok := p.AddJob(context.Background(), job.New("CONV.D", func(string) error { return nil }))
	assert.False(t, ok)
}

func TestStatusSnapshotReflectsPause(t *testing.T) {
	p := New("TT5", 1, testLogger())
	p.Pause()
	st := p.StatusSnapshot()
	assert.True(t, st.Paused)
	assert.Equal(t, "TT5", st.Area)
}
