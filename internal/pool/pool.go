// Package pool runs one AreaPool per plant area: a bounded queue of
// reconciliation jobs, at most one in flight per converter, served by a
// fixed worker goroutine count.
//
// Grounded on original_source/program_manager/area_worker.py
// (AreaProgramManager/FgcWorker: MAX_NUM_TASKS=200, MAX_NUM_WORKERS=20,
// add_job's job-set dedup, wait_completion's drain-then-stop) and the
// teacher's src/internal/vm/pool_linux.go (buffered channel as a
// thread-safe FIFO, mu-guarded lifecycle state, an errgroup of workers
// instead of a goroutine-per-Thread list).
package pool

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ghabrous/fgc-pm/internal/job"
	"github.com/ghabrous/fgc-pm/internal/model"
)

const (
	// MaxNumTasks bounds the queue exactly as AreaProgramManager's
	// queue.Queue(maxsize=200) does: AddJob blocks the producer once full.
	MaxNumTasks = 200
	// MaxNumWorkers is the default worker count, unchanged from
	// AreaProgramManager.MAX_NUM_WORKERS.
	MaxNumWorkers = 20
)

// Status is a snapshot of one AreaPool's load, returned over the control
// socket (ctlsock.Response.Status) and used by the "pm watch" TUI.
type Status struct {
	Area       string `json:"area"`
	Queued     int    `json:"queued"`
	InFlight   int    `json:"in_flight"`
	Paused     bool   `json:"paused"`
	Draining   bool   `json:"draining"`
}

// AreaPool is a bounded worker pool scoped to one plant area. Jobs are
// deduplicated by model.JobKey: AddJob is a no-op if that key is already
// queued or running.
type AreaPool struct {
	area    string
	workers int
	log     *logrus.Entry

	tasks chan job.Task

	mu       sync.Mutex
	inFlight map[model.JobKey]bool
	paused   bool
	draining bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New builds an AreaPool for area with the given worker count. Call Start
// to launch its worker goroutines.
func New(area string, workers int, log *logrus.Entry) *AreaPool {
	if workers <= 0 {
		workers = MaxNumWorkers
	}
	return &AreaPool{
		area:     area,
		workers:  workers,
		log:      log.WithField("area", area),
		tasks:    make(chan job.Task, MaxNumTasks),
		inFlight: make(map[model.JobKey]bool),
	}
}

// Start launches the pool's worker goroutines. ctx governs their lifetime;
// cancelling ctx stops workers immediately (used only for hard shutdown —
// Drain is the graceful path).
func (p *AreaPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	p.group = g

	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			p.runWorker(gctx, workerID)
			return nil
		})
	}
}

func (p *AreaPool) runWorker(ctx context.Context, id int) {
	log := p.log.WithField("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(log, t)
		}
	}
}

func (p *AreaPool) runTask(log *logrus.Entry, t job.Task) {
	defer func() {
		p.mu.Lock()
		delete(p.inFlight, t.Key)
		p.mu.Unlock()
	}()

	entry := log.WithField("trace_id", t.TraceID).WithField("job", string(t.Key))
	entry.Info("job started")
	if err := t.Run(string(t.Key)); err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	entry.Info("job completed")
}

// AddJob enqueues t unless its key is already queued or running, or the
// pool is paused. Blocks if the queue is at MaxNumTasks, exactly as
// queue.Queue.put does with a bounded maxsize. Returns false when the job
// was skipped (duplicate or paused pool).
func (p *AreaPool) AddJob(ctx context.Context, t job.Task) bool {
	p.mu.Lock()
	if p.paused || p.draining {
		p.mu.Unlock()
		return false
	}
	if p.inFlight[t.Key] {
		p.mu.Unlock()
		p.log.Debugf("%s already in TODO job list", t.Key)
		return false
	}
	p.inFlight[t.Key] = true
	p.mu.Unlock()

	select {
	case p.tasks <- t:
		p.log.Infof("job %s added to queue", t.Key)
		return true
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.inFlight, t.Key)
		p.mu.Unlock()
		return false
	}
}

// Pause stops AddJob from accepting new work without affecting jobs
// already queued or running.
func (p *AreaPool) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume undoes Pause.
func (p *AreaPool) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Drain stops accepting new jobs and waits for every queued and in-flight
// job to finish — it never cancels work already in progress, matching
// wait_completion's queue.join() followed by a clean worker stop.
func (p *AreaPool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return nil
	}
	p.draining = true
	p.mu.Unlock()

	close(p.tasks)

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels all workers immediately, abandoning any in-flight job. Used
// only for hard shutdown; prefer Drain for an orderly stop.
func (p *AreaPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// StatusSnapshot reports the pool's current load.
func (p *AreaPool) StatusSnapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Area:     p.area,
		Queued:   len(p.tasks),
		InFlight: len(p.inFlight),
		Paused:   p.paused,
		Draining: p.draining,
	}
}
