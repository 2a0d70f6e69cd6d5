// Package job holds the small shared types a pool task needs: its key and
// a correlation ID for logging, grounded on the teacher's PoolRequest
// shape and spec.md's "at most one job per JobKey in flight" rule.
package job

import (
	"github.com/google/uuid"

	"github.com/ghabrous/fgc-pm/internal/model"
)

// Func is the unit of work an AreaPool runs for one converter: it is
// handed the converter name and returns only whether the run failed, the
// Go shape of area_worker.py's fgc_work.
type Func func(converter string) error

// Task is one queued unit of work: its dedup key, the work itself, and a
// trace ID threaded through every log line the run emits.
type Task struct {
	Key     model.JobKey
	Run     Func
	TraceID string
}

// New builds a Task for converter with a fresh trace ID.
func New(converter string, run Func) Task {
	return Task{Key: model.JobKey(converter), Run: run, TraceID: uuid.NewString()}
}
