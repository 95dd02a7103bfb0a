package asyncproc

import "errors"

const Namespace = "asyncproc"

var (
	ErrEmptyQueue        = errors.New(Namespace + ": no tasks in the task queue")
	ErrEmptyResults      = errors.New(Namespace + ": no results in the results buffer, cannot pop result")
	ErrClosed            = errors.New(Namespace + ": processor is closed")
	ErrProcessingFailure = errors.New(Namespace + ": task processing failed")
	ErrStepPanicked      = errors.New(Namespace + ": processing step panicked")
	ErrInvalidConfig     = errors.New(Namespace + ": invalid configuration")
)
