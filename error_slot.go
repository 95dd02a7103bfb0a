package asyncproc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// IdentifierProcessing tags failures returned by a processing step.
	IdentifierProcessing = "ProcessingError"
	// IdentifierPanic tags panics recovered from a processing step.
	IdentifierPanic = "ProcessingPanic"
)

// TaskMetaError exposes correlation metadata for a task failure.
type TaskMetaError interface {
	error
	TaskID() (string, bool)
	TaskIndex() (int, bool)
}

// ErrorRecord captures a single failure raised by the processing step on the worker goroutine.
// It matches ErrProcessingFailure and the underlying step error with errors.Is.
type ErrorRecord struct {
	Identifier string
	Message    string
	Err        error
	Time       time.Time

	taskID    string
	taskIndex int
}

func newErrorRecord(err error, t Task) *ErrorRecord {
	id := IdentifierProcessing
	if errors.Is(err, ErrStepPanicked) {
		id = IdentifierPanic
	}
	return &ErrorRecord{
		Identifier: id,
		Message:    err.Error(),
		Err:        err,
		Time:       time.Now(),
		taskID:     t.ID,
		taskIndex:  t.Index,
	}
}

func (e *ErrorRecord) Error() string { return e.Message }

func (e *ErrorRecord) Unwrap() []error { return []error{ErrProcessingFailure, e.Err} }

func (e *ErrorRecord) TaskID() (string, bool) {
	if e.taskID == "" {
		return "", false
	}
	return e.taskID, true
}

func (e *ErrorRecord) TaskIndex() (int, bool) { return e.taskIndex, true }

func (e *ErrorRecord) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "%s: task(index=%d,id=%s): %+v", e.Identifier, e.taskIndex, e.taskID, e.Err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskID returns the task ID from err if present.
func ExtractTaskID(err error) (string, bool) {
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return tme.TaskID()
	}
	return "", false
}

// ExtractTaskIndex returns the task index from err if present.
func ExtractTaskIndex(err error) (int, bool) {
	var tme TaskMetaError
	if errors.As(err, &tme) {
		return tme.TaskIndex()
	}
	return 0, false
}

// errorSlot holds at most one ErrorRecord.
// A set slot is never overwritten; it must be cleared first.
type errorSlot struct {
	mu  sync.Mutex
	rec *ErrorRecord
}

// set stores rec if the slot is empty and reports whether it did.
func (s *errorSlot) set(rec *ErrorRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		return false
	}
	s.rec = rec
	return true
}

func (s *errorSlot) get() (*ErrorRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, s.rec != nil
}

func (s *errorSlot) isSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil
}

func (s *errorSlot) clear() {
	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()
}
