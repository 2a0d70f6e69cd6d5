package recon

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"

	"github.com/ghabrous/fgc-pm/internal/fsm"
	"github.com/ghabrous/fgc-pm/internal/model"
	"github.com/ghabrous/fgc-pm/internal/pmerrors"
	"github.com/ghabrous/fgc-pm/internal/session"
)

// maxProgramAttempts is the fixed attempt count of regfgc3_programmer.py's
// program(): three tries, no backoff between them.
const maxProgramAttempts = 3

// RetryProgram walks req through a fresh ProgramFSM up to maxProgramAttempts
// times, resetting the FSM between attempts, the Go shape of program()'s
// for-loop over max_attempts.
func RetryProgram(ctx context.Context, req model.ProgramRequest, sess session.Session, log *logrus.Entry) error {
	var lastErr error
	attempt := 0

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempt++
			f := fsm.New(req, sess, log.WithField("attempt", attempt))
			if err := f.Process(ctx); err != nil {
				lastErr = err
				f.Reset()
				return err
			}
			return nil
		},
		Attempts:    maxProgramAttempts,
		// retry.Call rejects a nil Clock or a zero Delay without running
		// Func, so the pause between attempts is a single nanosecond.
		Clock:       clock.WallClock,
		Delay:       time.Nanosecond,
		NotifyFunc: func(lastError error, attempt int) {
			log.WithError(lastError).Warnf("reprogram attempt %d failed", attempt)
		},
	})

	if err != nil {
		return pmerrors.NewReprogramFailed(req.Converter, req.Device, req.Board, lastErr)
	}
	return nil
}
