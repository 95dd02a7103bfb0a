package asyncproc

import (
	"sync"

	"github.com/gammazero/deque"
)

// taskQueue holds pending tasks in push order.
// All methods are safe for concurrent use; the lock is held only for the container mutation.
type taskQueue struct {
	mu    sync.Mutex
	items deque.Deque[Task]
	// next is the Index given to the next pushed task.
	next int
}

func newTaskQueue(baseCap int) *taskQueue {
	q := &taskQueue{}
	if baseCap > 0 {
		q.items.SetBaseCap(baseCap)
	}
	return q
}

// push stamps t with the next push sequence number and appends it to the back.
// It returns the assigned index.
func (q *taskQueue) push(t Task) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.Index = q.next
	q.next++
	q.items.PushBack(t)
	return t.Index
}

// popFront removes and returns the oldest task, or ErrEmptyQueue.
func (q *taskQueue) popFront() (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return Task{}, ErrEmptyQueue
	}
	return q.items.PopFront(), nil
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// clear discards all pending tasks and reports how many were dropped.
func (q *taskQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items.Len()
	q.items.Clear()
	return n
}
