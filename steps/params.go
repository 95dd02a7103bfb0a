package steps

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/ygrebnov/asyncproc"
)

// Params is an immutable snapshot of named parameters.
// Do not modify a Params received by a step; it may be shared with other tasks.
type Params map[string]asyncproc.Value

// Get returns the parameter named name.
func (p Params) Get(name string) (asyncproc.Value, bool) {
	v, ok := p[name]
	return v, ok
}

// StringOr returns the named parameter as a string, def when unset,
// or ErrInvalidFormat when it is set to a non-string.
func (p Params) StringOr(name, def string) (string, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrInvalidFormat, name, v)
	}
	return s, nil
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// paramStore holds the current parameter set. Updates replace the map; snapshots
// already handed to tasks never change.
type paramStore struct {
	mu  sync.Mutex
	cur Params
}

func (s *paramStore) set(pairs []asyncproc.Value) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("%w: got %d arguments", ErrInvalidParameters, len(pairs))
	}
	for i := 0; i < len(pairs); i += 2 {
		if _, ok := pairs[i].(string); !ok {
			return fmt.Errorf("%w: argument %d is %T", ErrInvalidParameters, i, pairs[i])
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(Params, len(s.cur)+len(pairs)/2)
	maps.Copy(next, s.cur)
	for i := 0; i < len(pairs); i += 2 {
		next[pairs[i].(string)] = pairs[i+1]
	}
	s.cur = next
	return nil
}

func (s *paramStore) clear() {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
}

func (s *paramStore) snapshot() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// ParamStep is a processing step that also receives the parameters current when the task was pushed.
// params is never nil.
type ParamStep func(ctx context.Context, t asyncproc.Task, params Params) (asyncproc.Result, error)

// ParamProcessor is a Processor with a persistent set of named parameters.
// Each pushed task captures the parameters current at push time; later changes
// do not affect tasks already queued.
type ParamProcessor struct {
	*asyncproc.Processor
	params paramStore
}

// NewParamProcessor creates a ParamProcessor running step.
// Any WithSnapshotter in opts is overridden.
func NewParamProcessor(ctx context.Context, step ParamStep, opts ...asyncproc.Option) (*ParamProcessor, error) {
	if step == nil {
		return nil, ErrNilStep
	}
	pp := &ParamProcessor{}
	wrapped := func(ctx context.Context, t asyncproc.Task) (asyncproc.Result, error) {
		params, _ := t.Snapshot.(Params)
		if params == nil {
			params = Params{}
		}
		return step(ctx, t, params)
	}
	opts = append(slices.Clone(opts), asyncproc.WithSnapshotter(func() any { return pp.params.snapshot() }))

	p, err := asyncproc.New(ctx, wrapped, opts...)
	if err != nil {
		return nil, err
	}
	pp.Processor = p
	return pp, nil
}

// SetParameters adds or replaces parameters given as name/value pairs.
// Names must be strings and the number of arguments must be even.
func (pp *ParamProcessor) SetParameters(pairs ...asyncproc.Value) error {
	return pp.params.set(pairs)
}

// ClearParameters removes all parameters.
func (pp *ParamProcessor) ClearParameters() { pp.params.clear() }

// Parameters returns a copy of the current parameters.
func (pp *ParamProcessor) Parameters() Params {
	return maps.Clone(pp.params.snapshot())
}
