package asyncproc

import (
	"sync"

	"github.com/gammazero/deque"
)

// resultBuffer holds completed results awaiting retrieval.
//
// Results are inserted at the front and removed from the back, so callers
// observe them in completion order (oldest completed first). Do not replace
// this pairing with a stack.
type resultBuffer struct {
	mu    sync.Mutex
	items deque.Deque[Result]
}

func newResultBuffer(baseCap int) *resultBuffer {
	b := &resultBuffer{}
	if baseCap > 0 {
		b.items.SetBaseCap(baseCap)
	}
	return b
}

func (b *resultBuffer) pushFront(r Result) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items.PushFront(r)
	return b.items.Len()
}

// popBack removes and returns the oldest completed result, or ErrEmptyResults.
func (b *resultBuffer) popBack() (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items.Len() == 0 {
		return nil, ErrEmptyResults
	}
	return b.items.PopBack(), nil
}

// backLen returns the number of values in the result popBack would return next (0 if empty).
func (b *resultBuffer) backLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items.Len() == 0 {
		return 0
	}
	return len(b.items.Back())
}

func (b *resultBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Len()
}

func (b *resultBuffer) clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.items.Len()
	b.items.Clear()
	return n
}
