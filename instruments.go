package asyncproc

import "github.com/ygrebnov/asyncproc/metrics"

const (
	MetricTasksEnqueued    = "asyncproc_tasks_enqueued_total"
	MetricTasksCompleted   = "asyncproc_tasks_completed_total"
	MetricTasksFailed      = "asyncproc_tasks_failed_total"
	MetricTasksCancelled   = "asyncproc_tasks_cancelled_total"
	MetricResultsEmpty     = "asyncproc_results_empty_total"
	MetricTasksPending     = "asyncproc_tasks_pending"
	MetricResultsAvailable = "asyncproc_results_available"
	MetricStepDuration     = "asyncproc_step_duration_seconds"
)

type instruments struct {
	enqueued  metrics.Counter
	completed metrics.Counter
	failed    metrics.Counter
	cancelled metrics.Counter
	empty     metrics.Counter
	pending   metrics.UpDownCounter
	available metrics.UpDownCounter
	duration  metrics.Histogram
}

func newInstruments(p metrics.Provider) *instruments {
	return &instruments{
		enqueued: p.Counter(MetricTasksEnqueued,
			metrics.WithDescription("Tasks pushed to the task queue"), metrics.WithUnit("1")),
		completed: p.Counter(MetricTasksCompleted,
			metrics.WithDescription("Tasks processed without error"), metrics.WithUnit("1")),
		failed: p.Counter(MetricTasksFailed,
			metrics.WithDescription("Tasks whose processing step failed"), metrics.WithUnit("1")),
		cancelled: p.Counter(MetricTasksCancelled,
			metrics.WithDescription("Queued tasks discarded before processing"), metrics.WithUnit("1")),
		empty: p.Counter(MetricResultsEmpty,
			metrics.WithDescription("Processed tasks that produced no outputs"), metrics.WithUnit("1")),
		pending: p.UpDownCounter(MetricTasksPending,
			metrics.WithDescription("Tasks waiting in the task queue"), metrics.WithUnit("1")),
		available: p.UpDownCounter(MetricResultsAvailable,
			metrics.WithDescription("Results waiting in the results buffer"), metrics.WithUnit("1")),
		duration: p.Histogram(MetricStepDuration,
			metrics.WithDescription("Processing step duration"), metrics.WithUnit("seconds")),
	}
}
