// Package registry maps opaque numeric handles to live objects for hosts that
// cannot hold Go pointers.
package registry

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/ygrebnov/errorc"
)

const Namespace = "registry"

var (
	// ErrInvalidHandle is returned for a handle that was never issued or was already destroyed.
	ErrInvalidHandle = errors.New(Namespace + ": invalid object handle")
	// ErrNotAHandle is returned by HandleFrom for values that cannot represent a handle.
	ErrNotAHandle = errors.New(Namespace + ": value is not an object handle")
)

// Handle identifies an object in a Table. Handles start at 1 and are never reused.
type Handle int64

// Table is a concurrency-safe handle table.
// Objects are released with the release function (if any) when destroyed or cleared.
type Table[T any] struct {
	mu      sync.Mutex
	next    Handle
	objs    map[Handle]T
	release func(T) error
}

// NewTable creates an empty table. release may be nil.
func NewTable[T any](release func(T) error) *Table[T] {
	return &Table[T]{
		next:    1,
		objs:    make(map[Handle]T),
		release: release,
	}
}

// Create stores obj and returns its new handle.
func (t *Table[T]) Create(obj T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.objs[h] = obj
	return h
}

// Get returns the object for h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, ok := t.objs[h]
	if !ok {
		var zero T
		return zero, invalid(h)
	}
	return obj, nil
}

// Destroy removes h and releases its object.
// The object is removed even if release fails; the release error is returned.
func (t *Table[T]) Destroy(h Handle) error {
	t.mu.Lock()
	obj, ok := t.objs[h]
	if ok {
		delete(t.objs, h)
	}
	t.mu.Unlock()

	if !ok {
		return invalid(h)
	}
	if t.release != nil {
		return t.release(obj)
	}
	return nil
}

// Clear destroys every object and returns the joined release errors.
func (t *Table[T]) Clear() error {
	t.mu.Lock()
	objs := t.objs
	t.objs = make(map[Handle]T)
	t.mu.Unlock()

	if t.release == nil {
		return nil
	}
	var errs []error
	for _, h := range sortedKeys(objs) {
		if err := t.release(objs[h]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live objects.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objs)
}

// Handles returns the live handles in ascending order.
func (t *Table[T]) Handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.objs)
}

func sortedKeys[T any](m map[Handle]T) []Handle {
	out := make([]Handle, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func invalid(h Handle) error {
	return errorc.With(ErrInvalidHandle, errorc.String("handle", strconv.FormatInt(int64(h), 10)))
}

// HandleFrom converts a host value to a Handle.
// Integers and integral floats (hosts often send numbers as doubles) are accepted.
func HandleFrom(v any) (Handle, error) {
	switch x := v.(type) {
	case Handle:
		return x, nil
	case int:
		return Handle(x), nil
	case int32:
		return Handle(x), nil
	case int64:
		return Handle(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, ErrNotAHandle
		}
		return Handle(x), nil
	case float64:
		if x != math.Trunc(x) || x < 0 || x >= 1<<63 {
			return 0, ErrNotAHandle
		}
		return Handle(x), nil
	default:
		return 0, ErrNotAHandle
	}
}
