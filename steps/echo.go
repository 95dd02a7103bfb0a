// Package steps provides ready-made processing steps and processors that carry
// extra per-task state (parameters, persistent arguments) into the step.
package steps

import (
	"context"
	"time"

	"github.com/ygrebnov/asyncproc"
)

// Echo returns a step that copies its inputs to its outputs after delay.
// A zero delay returns immediately. Cancelling ctx aborts the wait with ctx.Err().
func Echo(delay time.Duration) asyncproc.Step {
	return func(ctx context.Context, t asyncproc.Task) (asyncproc.Result, error) {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		out := make(asyncproc.Result, len(t.Values))
		copy(out, t.Values)
		return out, nil
	}
}
