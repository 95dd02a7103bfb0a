package asyncproc

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ygrebnov/errorc"
)

// Processor executes pushed tasks with a single processing step on one background worker.
// Tasks are processed in push order; results are retrieved in completion order.
// All methods are safe for concurrent use.
type Processor struct {
	// noCopy prevents accidental copying of the controller.
	//go:nocopy
	nc noCopy

	cfg config
	ctx context.Context
	log zerolog.Logger

	step    Step
	tasks   *taskQueue
	results *resultBuffer
	errs    errorSlot
	ins     *instruments

	// wake is signalled (non-blocking) on every push so an idle loop picks up new work.
	wake chan struct{}

	// pushMu orders PushTask against Close: pushes hold it shared from the
	// state check to the enqueue, Close holds it exclusively to flip the state.
	pushMu sync.RWMutex

	state   atomic.Int32
	running atomic.Bool

	// lifeMu serializes lifecycle transitions: start, pause, resume, cancel, close.
	lifeMu sync.Mutex
	rc     *runControl
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
// It works with the "-copylocks" analyzer via the presence of Lock/Unlock methods.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates a Processor that runs step for every pushed task.
// The worker loop starts on the first PushTask unless WithStartImmediately is given.
// Cancelling ctx stops the loop the same way Pause does.
func New(ctx context.Context, step Step, opts ...Option) (*Processor, error) {
	if step == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "processing step must not be nil"))
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := &Processor{
		cfg:     cfg,
		ctx:     ctx,
		log:     cfg.Logger.With().Str("processor", cfg.Name).Logger(),
		step:    step,
		tasks:   newTaskQueue(cfg.QueueCapacity),
		results: newResultBuffer(cfg.QueueCapacity),
		ins:     newInstruments(cfg.Metrics),
		wake:    make(chan struct{}, 1),
	}
	p.state.Store(int32(StateIdle))

	if cfg.StartImmediately {
		p.lifeMu.Lock()
		p.startLocked()
		p.lifeMu.Unlock()
	}
	return p, nil
}

// Name returns the configured processor name.
func (p *Processor) Name() string { return p.cfg.Name }

// State returns the current lifecycle state.
func (p *Processor) State() State { return State(p.state.Load()) }

// Running reports whether the worker loop is active.
// It becomes false after Pause, CancelRemainingTasks, Close, a step failure or ctx cancellation.
func (p *Processor) Running() bool { return p.running.Load() }

// PushTask enqueues a task built from a copy of values.
// The first push on an idle processor starts the worker loop.
// A paused processor queues the task without resuming.
// It returns ErrClosed once Close has been called.
func (p *Processor) PushTask(values ...Value) error {
	p.pushMu.RLock()
	switch p.State() {
	case StateShuttingDown, StateTerminated:
		p.pushMu.RUnlock()
		return ErrClosed
	}

	t := Task{
		ID:         uuid.NewString(),
		Values:     slices.Clone(values),
		EnqueuedAt: time.Now(),
	}
	if p.cfg.Snapshotter != nil {
		t.Snapshot = p.cfg.Snapshotter()
	}

	p.ins.enqueued.Add(1)
	p.ins.pending.Add(1)
	p.tasks.push(t)
	p.pushMu.RUnlock()

	if p.State() == StateIdle {
		p.lifeMu.Lock()
		// re-check under the lock; a concurrent push may have started the loop
		if p.State() == StateIdle {
			p.startLocked()
		}
		p.lifeMu.Unlock()
	}
	p.notify()
	return nil
}

// PopResult removes and returns the oldest completed result.
// It returns ErrEmptyResults when the buffer is empty.
func (p *Processor) PopResult() (Result, error) {
	r, err := p.results.popBack()
	if err != nil {
		return nil, err
	}
	p.ins.available.Add(-1)
	return r, nil
}

// RemainingTasks returns the number of tasks waiting in the queue.
// A task that is being processed is no longer counted.
func (p *Processor) RemainingTasks() int { return p.tasks.len() }

// AvailableResults returns the number of results waiting in the buffer.
func (p *Processor) AvailableResults() int { return p.results.len() }

// NumResultOutputArgs returns the number of values in the result PopResult would return next,
// or 0 when the buffer is empty.
func (p *Processor) NumResultOutputArgs() int { return p.results.backLen() }

// ClearResults discards all buffered results and returns how many were dropped.
func (p *Processor) ClearResults() int {
	n := p.results.clear()
	p.ins.available.Add(int64(-n))
	return n
}

// Pause stops the worker loop after the in-flight task, if any, and waits for it to exit.
// Queued tasks and results are retained. Pausing an idle processor prevents pushes from auto-starting it.
func (p *Processor) Pause() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	p.pauseLocked()
}

// Resume restarts the worker loop. It is a no-op while the loop is running.
// Resume does not clear a recorded error and does not re-run the task that failed.
// It returns ErrClosed after Close and the context error once ctx is done.
func (p *Processor) Resume() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	switch p.State() {
	case StateShuttingDown, StateTerminated:
		return ErrClosed
	}
	if p.running.Load() {
		return nil
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	// join a loop that ended on its own (step failure or ctx cancellation)
	p.haltLocked(haltStop)
	p.startLocked()
	p.log.Debug().Int("remaining_tasks", p.tasks.len()).Msg("worker resumed")
	return nil
}

// CancelRemainingTasks pauses the processor and discards every queued task.
// The in-flight task, if any, completes first and its result is kept.
// It returns the number of discarded tasks.
func (p *Processor) CancelRemainingTasks() int {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	switch p.State() {
	case StateShuttingDown, StateTerminated:
		return 0
	}
	p.pauseLocked()
	return p.discardLocked("tasks cancelled")
}

// WasErrorThrown reports whether the error slot holds a failure.
func (p *Processor) WasErrorThrown() bool { return p.errs.isSet() }

// LastError returns the recorded failure, if any. The slot is not cleared.
func (p *Processor) LastError() (*ErrorRecord, bool) { return p.errs.get() }

// ClearError empties the error slot. It does not restart the worker loop.
func (p *Processor) ClearError() { p.errs.clear() }

// Close finishes every queued task and stops the worker loop, then waits for it to exit.
// When the loop is not running (idle, paused or stopped on a failure) queued tasks are discarded.
// Close is idempotent; after it returns PushTask fails with ErrClosed. Buffered results remain retrievable.
func (p *Processor) Close() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	switch p.State() {
	case StateShuttingDown, StateTerminated:
		return
	}
	p.pushMu.Lock()
	p.state.Store(int32(StateShuttingDown))
	p.pushMu.Unlock()

	if p.running.Load() {
		p.haltLocked(haltFinish)
	} else {
		p.haltLocked(haltStop)
	}
	p.discardLocked("tasks discarded on close")

	p.state.Store(int32(StateTerminated))
	p.log.Debug().Int("available_results", p.results.len()).Msg("processor closed")
}

// startLocked spawns a new worker loop. Callers must hold lifeMu and must have joined any previous loop.
func (p *Processor) startLocked() {
	rc := newRunControl()
	p.rc = rc
	p.running.Store(true)
	p.state.Store(int32(StateRunning))

	w := &worker{
		step:    p.step,
		tasks:   p.tasks,
		results: p.results,
		errs:    &p.errs,
		ins:     p.ins,
		log:     p.log,
		wake:    p.wake,
		stopped: p.workerStopped,
	}
	go p.loop(w, rc)
	p.log.Debug().Msg("worker started")
}

func (p *Processor) loop(w *worker, rc *runControl) {
	defer close(rc.done)

	rec := w.run(p.ctx, rc)
	p.running.Store(false)

	if rec != nil || p.ctx.Err() != nil {
		// Pause/Close set the state themselves; a self-terminated loop leaves the processor paused.
		p.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
	}
	if rec == nil && p.ctx.Err() != nil {
		p.log.Debug().Err(p.ctx.Err()).Msg("context done, worker stopped")
	}
}

// workerStopped marks a loop that is about to exit on a step failure as stopped.
func (p *Processor) workerStopped() {
	p.running.Store(false)
	p.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// haltLocked signals the current loop with mode and waits for it to exit.
func (p *Processor) haltLocked(mode haltMode) {
	rc := p.rc
	if rc == nil {
		return
	}
	if !rc.exited() {
		rc.signal(mode)
	}
	rc.wait()
	p.rc = nil
	p.running.Store(false)
	p.log.Debug().Stringer("mode", mode).Msg("worker halted")
}

func (p *Processor) pauseLocked() {
	switch p.State() {
	case StateIdle:
		p.state.Store(int32(StatePaused))
	case StateRunning, StatePaused:
		p.haltLocked(haltStop)
		p.state.Store(int32(StatePaused))
	default:
		return
	}
	p.log.Debug().Int("remaining_tasks", p.tasks.len()).Msg("worker paused")
}

func (p *Processor) discardLocked(msg string) int {
	n := p.tasks.clear()
	if n == 0 {
		return 0
	}
	p.ins.cancelled.Add(int64(n))
	p.ins.pending.Add(int64(-n))
	p.log.Info().Int("tasks", n).Msg(msg)
	return n
}

// notify wakes an idle worker loop without blocking.
func (p *Processor) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
