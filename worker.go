package asyncproc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// worker runs the processing loop on a dedicated goroutine.
// It shares the queue, buffer and error slot with its Processor; it owns none of them.
type worker struct {
	step    Step
	tasks   *taskQueue
	results *resultBuffer
	errs    *errorSlot
	ins     *instruments
	log     zerolog.Logger
	wake    <-chan struct{}

	// stopped runs before a failure is recorded, so an observed error always
	// finds the worker reported as not running.
	stopped func()
}

// run drains the task queue until the queue is empty and a halt was requested,
// a step fails, or ctx is cancelled. It returns the failure record, if any.
func (w *worker) run(ctx context.Context, rc *runControl) *ErrorRecord {
	for {
		for !rc.stopRequested() && ctx.Err() == nil {
			t, err := w.tasks.popFront()
			if err != nil {
				break
			}
			if rec := w.execute(ctx, t); rec != nil {
				return rec
			}
		}

		if rc.stopRequested() || rc.finishRequested() || ctx.Err() != nil {
			return nil
		}

		select {
		case <-w.wake:
		case <-rc.halt:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *worker) execute(ctx context.Context, t Task) *ErrorRecord {
	w.ins.pending.Add(-1)

	start := time.Now()
	res, err := w.step.Run(ctx, t)
	w.ins.duration.Record(time.Since(start).Seconds())

	if err != nil {
		w.ins.failed.Add(1)
		rec := newErrorRecord(err, t)
		if w.stopped != nil {
			w.stopped()
		}
		if !w.errs.set(rec) {
			// An earlier failure was never cleared; it stays authoritative.
			w.log.Warn().Err(err).Str("task_id", t.ID).Int("task_index", t.Index).
				Msg("error slot occupied, failure not recorded")
		}
		w.log.Error().Err(err).Str("task_id", t.ID).Int("task_index", t.Index).
			Str("identifier", rec.Identifier).Msg("processing step failed, worker stopped")
		return rec
	}

	w.ins.completed.Add(1)
	if len(res) == 0 {
		w.ins.empty.Add(1)
		return nil
	}
	w.results.pushFront(res)
	w.ins.available.Add(1)
	return nil
}
