package asyncproc

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Processor.
type State int32

const (
	// StateIdle: constructed, the worker loop has never started.
	StateIdle State = iota
	// StateRunning: the worker loop is active and draining the task queue.
	StateRunning
	// StatePaused: the worker loop is stopped; queued tasks and results are retained.
	// A loop that stopped on a processing failure also ends up here.
	StatePaused
	// StateShuttingDown: Close is finishing the remaining work.
	StateShuttingDown
	// StateTerminated: Close has returned; no further work is accepted.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// haltMode selects how a running worker loop is asked to end.
type haltMode int

const (
	// haltStop ends the loop after the in-flight task, leaving queued tasks in place.
	haltStop haltMode = iota
	// haltFinish lets the loop drain every queued task before it ends.
	haltFinish
)

func (m haltMode) String() string {
	if m == haltFinish {
		return "finish"
	}
	return "stop"
}

// runControl coordinates a single worker loop run.
// It doesn't own the loop; it carries the two control flags, the halt signal
// that wakes an idle loop, and the done channel the loop closes on exit.
type runControl struct {
	stop   atomic.Bool
	finish atomic.Bool

	halt     chan struct{}
	haltOnce sync.Once

	done chan struct{}
}

func newRunControl() *runControl {
	return &runControl{
		halt: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// signal raises the flag for mode and wakes the loop. Safe to call more than once.
func (rc *runControl) signal(mode haltMode) {
	switch mode {
	case haltFinish:
		rc.finish.Store(true)
	default:
		rc.stop.Store(true)
	}
	rc.haltOnce.Do(func() { close(rc.halt) })
}

func (rc *runControl) stopRequested() bool   { return rc.stop.Load() }
func (rc *runControl) finishRequested() bool { return rc.finish.Load() }

// wait blocks until the loop has exited.
func (rc *runControl) wait() { <-rc.done }

// exited reports whether the loop has already returned.
func (rc *runControl) exited() bool {
	select {
	case <-rc.done:
		return true
	default:
		return false
	}
}
