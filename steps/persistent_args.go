package steps

import (
	"context"
	"slices"
	"sync"

	"github.com/ygrebnov/asyncproc"
)

// PersistentArgsProcessor is a Processor whose tasks are extended with a set of
// persistent arguments. The arguments current at push time are appended to the
// task values before the step sees them.
type PersistentArgsProcessor struct {
	*asyncproc.Processor

	mu   sync.Mutex
	args []asyncproc.Value
}

// NewPersistentArgsProcessor creates a PersistentArgsProcessor running step.
// Any WithSnapshotter in opts is overridden.
func NewPersistentArgsProcessor(ctx context.Context, step asyncproc.Step, opts ...asyncproc.Option) (*PersistentArgsProcessor, error) {
	if step == nil {
		return nil, ErrNilStep
	}
	pa := &PersistentArgsProcessor{}
	wrapped := func(ctx context.Context, t asyncproc.Task) (asyncproc.Result, error) {
		if extra, _ := t.Snapshot.([]asyncproc.Value); len(extra) > 0 {
			t.Values = append(slices.Clip(t.Values), extra...)
		}
		return step.Run(ctx, t)
	}
	opts = append(slices.Clone(opts), asyncproc.WithSnapshotter(func() any { return pa.snapshot() }))

	p, err := asyncproc.New(ctx, wrapped, opts...)
	if err != nil {
		return nil, err
	}
	pa.Processor = p
	return pa, nil
}

// SetPersistentArgs replaces the persistent arguments with a copy of args.
func (pa *PersistentArgsProcessor) SetPersistentArgs(args ...asyncproc.Value) {
	next := slices.Clone(args)
	pa.mu.Lock()
	pa.args = next
	pa.mu.Unlock()
}

// ClearPersistentArgs removes the persistent arguments.
func (pa *PersistentArgsProcessor) ClearPersistentArgs() {
	pa.mu.Lock()
	pa.args = nil
	pa.mu.Unlock()
}

// PersistentArgs returns a copy of the current persistent arguments.
func (pa *PersistentArgsProcessor) PersistentArgs() []asyncproc.Value {
	return slices.Clone(pa.snapshot())
}

func (pa *PersistentArgsProcessor) snapshot() []asyncproc.Value {
	pa.mu.Lock()
	defer pa.mu.Unlock()
	return pa.args
}
