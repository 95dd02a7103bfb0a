// Package asyncproc runs a pluggable processing step over a queue of tasks on a
// single background worker, so a host can keep pushing work and collecting
// results without blocking on the processing itself.
//
// Constructor
//   - New(ctx, step, opts...): the step is required; everything else has defaults.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created Processor:
//   - Name: "asyncproc"
//   - StartImmediately: false (the first PushTask starts the worker)
//   - QueueCapacity: 0 (library default storage)
//   - Logger: zerolog.Nop()
//   - Metrics: metrics.NoopProvider
//
// Ordering
//   - Tasks are processed strictly in push order, one at a time.
//   - PopResult returns results in completion order, oldest first.
//   - A step that returns an empty Result produces nothing to retrieve.
//
// Failures
// A step error (or a recovered panic) is captured into a single error slot and
// stops the worker. The failed task is not retried, and the slot keeps the first
// failure until ClearError. Resume restarts the worker with the remaining queue
// and leaves the slot as it is.
//
// Lifecycle
//
//	idle -> running <-> paused -> shutting-down -> terminated
//
// Pause and CancelRemainingTasks wait for the in-flight task. Close drains the
// queue when the worker is running and discards it otherwise; buffered results
// remain retrievable after Close.
package asyncproc
