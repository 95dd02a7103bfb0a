package asyncproc

import (
	"context"
	"fmt"
	"time"
)

// Value is an opaque payload crossing the host boundary (numeric scalar, string or structured blob).
// The processor never inspects or mutates values.
type Value = any

// Task is one unit of work: an ordered bundle of input values plus the metadata
// assigned when it was pushed. A Task is immutable once enqueued.
type Task struct {
	// ID is a unique identifier assigned at push time.
	ID string

	// Index is the 0-based push sequence number within the owning processor.
	Index int

	// Values are the positional inputs given to PushTask.
	Values []Value

	// Snapshot holds whatever the configured snapshotter returned at push time
	// (see WithSnapshotter). It is nil when no snapshotter is configured.
	Snapshot any

	// EnqueuedAt is the push time.
	EnqueuedAt time.Time
}

// Len returns the number of input values.
func (t Task) Len() int { return len(t.Values) }

// Result is the ordered bundle of output values produced by processing one Task.
type Result []Value

// Step is the pluggable processing step. It is invoked on the worker goroutine,
// one task at a time, and never concurrently with itself.
//
// A Step may take arbitrarily long, may fail, and may return an empty Result,
// in which case nothing is queued for retrieval.
//
// Example:
//
//	s := StepFunc(func(ctx context.Context, t Task) (Result, error) { return Result(t.Values), nil })
//	_ = s
type Step func(ctx context.Context, t Task) (Result, error)

// StepFunc adapts func(ctx, Task) (Result, error) to Step.
func StepFunc(fn func(context.Context, Task) (Result, error)) Step { return Step(fn) }

// StepValue adapts a step that cannot fail.
func StepValue(fn func(context.Context, Task) Result) Step {
	return func(ctx context.Context, t Task) (Result, error) { return fn(ctx, t), nil }
}

// StepError adapts a step that produces no outputs and reports only failure.
// Tasks processed by such a step never produce a Result.
func StepError(fn func(context.Context, Task) error) Step {
	return func(ctx context.Context, t Task) (Result, error) { return nil, fn(ctx, t) }
}

// Run executes the step with panic recovery.
// A recovered panic is reported as an error wrapping ErrStepPanicked.
func (s Step) Run(ctx context.Context, t Task) (res Result, err error) {
	defer func() {
		if ePanic := recover(); ePanic != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrStepPanicked, ePanic)
		}
	}()

	return s(ctx, t)
}
