package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/adapter"
	"github.com/ghabrous/fgc-pm/internal/ctlsock"
	"github.com/ghabrous/fgc-pm/internal/job"
	"github.com/ghabrous/fgc-pm/internal/pool"
	"github.com/ghabrous/fgc-pm/internal/recon"
)

// iterationStatusSrvSec is the main loop's cadence, unchanged from
// pm_server.py's ITERATION_STATUS_SRV_SEC.
const iterationStatusSrvSec = 5 * time.Second

// Server runs the top-level control loop: one AreaPool per plant area, a
// status-feed poll driving job dispatch, and the local control socket.
// Grounded on original_source/program_manager/pm_server.py's
// ProgramManagerServer.
type Server struct {
	feed   StatusFeed
	dirs   DirectoryReader
	dial   recon.SessionDialer
	locate recon.FirmwareLocator
	reconAdapter adapter.Adapter

	log        *logrus.Entry
	socketPath string

	pools map[string]*pool.AreaPool
	ctl   *ctlsock.Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithSocketPath overrides the control socket path (default
// ctlsock.SocketPath()).
func WithSocketPath(path string) Option {
	return func(s *Server) { s.socketPath = path }
}

// New builds a Server. feed and dirs are the status/directory sources;
// dial opens a converter Session for the reconciliation job; locate
// resolves a differing device's firmware file.
func New(feed StatusFeed, dirs DirectoryReader, reconAdapter adapter.Adapter, dial recon.SessionDialer, locate recon.FirmwareLocator, log *logrus.Entry, opts ...Option) *Server {
	s := &Server{
		feed:         feed,
		dirs:         dirs,
		dial:         dial,
		locate:       locate,
		reconAdapter: reconAdapter,
		log:          log,
		pools:        make(map[string]*pool.AreaPool),
		socketPath:   ctlsock.SocketPath(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one AreaPool per known area, starts the control socket
// listener, and runs the poll loop until ctx is cancelled or Stop is
// called. Mirrors ProgramManagerServer.start: area pools are created from
// the directory feed before the loop begins.
func (s *Server) Start(ctx context.Context, workersPerArea int) error {
	s.log.Info("starting program manager server")

	dir, err := s.dirs.Read(ctx)
	if err != nil {
		return err
	}
	for area := range dir.Areas {
		s.log.WithField("area", area).Info("starting area pool")
		p := pool.New(area, workersPerArea, s.log)
		p.Start(ctx)
		s.pools[area] = p
	}

	s.ctl = ctlsock.NewListener(s.socketPath, s.handleControl, s.log)
	go func() {
		if err := s.ctl.Serve(ctx); err != nil {
			s.log.WithError(err).Warn("control socket listener stopped")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(ctx, dir)
	return nil
}

// loop is the poll/dispatch cycle ProgramManagerServer.start runs inside
// its while-not-_run.is_set() block.
func (s *Server) loop(ctx context.Context, dir Directory) {
	defer close(s.done)
	ticker := time.NewTicker(iterationStatusSrvSec)
	defer ticker.Stop()

	for {
		snapshot, err := s.feed.GetStatusAll(ctx)
		if err != nil {
			s.log.WithError(err).Warn("status feed unavailable this cycle")
			snapshot = nil
		} else {
			for _, da := range FilterJobs(snapshot, dir, time.Now().Unix()) {
				s.dispatch(ctx, da)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch wraps one reconciliation cycle as a job.Task and hands it to
// the device's area pool, the Go shape of add_job(fgc_work, device).
func (s *Server) dispatch(ctx context.Context, da DeviceArea) {
	p, ok := s.pools[da.Area]
	if !ok {
		s.log.WithField("area", da.Area).Warn("device resolved to unknown area; dropping job")
		return
	}

	rj := &recon.Job{
		Adapter: s.reconAdapter,
		Dial:    s.dial,
		Locate:  s.locate,
		Log:     s.log,
	}
	t := job.New(da.Device, func(converter string) error {
		return rj.Run(ctx, converter)
	})
	p.AddJob(ctx, t)
}

// handleControl answers one control-socket request by querying or
// mutating the named area pool (or every pool, when req.Area is empty).
func (s *Server) handleControl(_ context.Context, req ctlsock.Request) ctlsock.Response {
	targets := s.targetPools(req.Area)
	if len(targets) == 0 {
		return ctlsock.Response{Type: ctlsock.TypeError, Error: "unknown area " + req.Area}
	}

	switch req.Type {
	case ctlsock.TypeStatus:
		var statuses []pool.Status
		for _, p := range targets {
			statuses = append(statuses, p.StatusSnapshot())
		}
		return ctlsock.Response{Type: ctlsock.TypeOK, Status: statuses}
	case ctlsock.TypePause:
		for _, p := range targets {
			p.Pause()
		}
		return ctlsock.Response{Type: ctlsock.TypeOK}
	case ctlsock.TypeResume:
		for _, p := range targets {
			p.Resume()
		}
		return ctlsock.Response{Type: ctlsock.TypeOK}
	case ctlsock.TypeDrain:
		for _, p := range targets {
			_ = p.Drain(context.Background())
		}
		return ctlsock.Response{Type: ctlsock.TypeOK}
	case ctlsock.TypeStop:
		go s.Stop(context.Background())
		return ctlsock.Response{Type: ctlsock.TypeOK}
	default:
		return ctlsock.Response{Type: ctlsock.TypeError, Error: "unknown request type " + req.Type}
	}
}

func (s *Server) targetPools(area string) []*pool.AreaPool {
	if area == "" {
		out := make([]*pool.AreaPool, 0, len(s.pools))
		for _, p := range s.pools {
			out = append(out, p)
		}
		return out
	}
	p, ok := s.pools[area]
	if !ok {
		return nil
	}
	return []*pool.AreaPool{p}
}

// Stop signals the loop to exit, drains every area pool in turn, closes
// the control socket, and closes the status feed — the Go shape of
// ProgramManagerServer.stop.
func (s *Server) Stop(ctx context.Context) {
	s.log.Info("stopping program manager server")
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done

	for area, p := range s.pools {
		s.log.WithField("area", area).Info("draining area pool")
		if err := p.Drain(ctx); err != nil {
			s.log.WithField("area", area).WithError(err).Warn("drain did not complete cleanly")
		}
	}

	if s.ctl != nil {
		s.ctl.Close()
	}
	if err := s.feed.Close(); err != nil {
		s.log.WithError(err).Warn("closing status feed")
	}
	s.log.Info("program manager server stopped")
}
