// Package session binds a handle registry to a named-command surface, so a host
// can create objects, address them by handle, and call their operations by name.
package session

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/asyncproc"
	"github.com/ygrebnov/asyncproc/registry"
)

// Built-in command names handled by every Manager.
const (
	CmdNew            = "new"
	CmdDelete         = "delete"
	CmdClearObjects   = "clear_objects"
	CmdGetMethodNames = "getMethodNames"
)

// Arity bounds the number of arguments an object command accepts, not counting the handle.
// Max < 0 means unbounded.
type Arity struct {
	Min, Max int
}

// Exactly accepts exactly n arguments.
func Exactly(n int) Arity { return Arity{Min: n, Max: n} }

// AtLeast accepts n or more arguments.
func AtLeast(n int) Arity { return Arity{Min: n, Max: -1} }

// Between accepts min to max arguments inclusive.
func Between(min, max int) Arity { return Arity{Min: min, Max: max} }

func (a Arity) check(n int) bool {
	return n >= a.Min && (a.Max < 0 || n <= a.Max)
}

// Factory creates a new object from the arguments of the "new" command.
type Factory[O any] func(ctx context.Context, args []asyncproc.Value) (O, error)

// Handler runs a command against obj. args excludes the handle.
type Handler[O any] func(ctx context.Context, obj O, args []asyncproc.Value) ([]asyncproc.Value, error)

type command[O any] struct {
	arity Arity
	fn    Handler[O]
}

// Manager dispatches named commands to objects held in a registry.Table.
// All methods are safe for concurrent use.
type Manager[O any] struct {
	objs    *registry.Table[O]
	factory Factory[O]
	log     zerolog.Logger

	mu   sync.RWMutex
	cmds map[string]command[O]
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger sets the logger for object lifetime events. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewManager returns a Manager creating objects with factory and releasing them with release.
// release may be nil.
func NewManager[O any](factory Factory[O], release func(O) error, opts ...Option) *Manager[O] {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Manager[O]{
		objs:    registry.NewTable(release),
		factory: factory,
		log:     o.logger,
		cmds:    make(map[string]command[O]),
	}
}

// Objects exposes the underlying handle table.
func (m *Manager[O]) Objects() *registry.Table[O] { return m.objs }

// AddCommand registers an object command.
func (m *Manager[O]) AddCommand(name string, arity Arity, fn Handler[O]) error {
	if name == "" || fn == nil {
		return errorc.With(ErrInvalidArgument, errorc.String("command", name))
	}
	if isBuiltin(name) {
		return errorc.With(ErrDuplicateCommand, errorc.String("command", name))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cmds[name]; ok {
		return errorc.With(ErrDuplicateCommand, errorc.String("command", name))
	}
	m.cmds[name] = command[O]{arity: arity, fn: fn}
	return nil
}

// CommandNames returns every callable command, built-ins included, sorted.
func (m *Manager[O]) CommandNames() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.cmds)+4)
	for n := range m.cmds {
		names = append(names, n)
	}
	m.mu.RUnlock()
	names = append(names, CmdNew, CmdDelete, CmdClearObjects, CmdGetMethodNames)
	sort.Strings(names)
	return names
}

// Call runs the command name.
//
// Built-ins:
//   - new(args...) -> handle
//   - delete(handle)
//   - clear_objects()
//   - getMethodNames() -> []string
//
// Every other command takes the object handle as its first argument.
func (m *Manager[O]) Call(ctx context.Context, name string, args ...asyncproc.Value) ([]asyncproc.Value, error) {
	switch name {
	case CmdNew:
		obj, err := m.factory(ctx, args)
		if err != nil {
			return nil, err
		}
		h := m.objs.Create(obj)
		m.log.Debug().Int64("handle", int64(h)).Int("objects", m.objs.Len()).Msg("object created")
		return []asyncproc.Value{h}, nil

	case CmdDelete:
		if len(args) != 1 {
			return nil, argCount(name, 1, len(args))
		}
		h, err := handleArg(args[0])
		if err != nil {
			return nil, err
		}
		if err := m.objs.Destroy(h); err != nil {
			return nil, err
		}
		m.log.Debug().Int64("handle", int64(h)).Int("objects", m.objs.Len()).Msg("object destroyed")
		return nil, nil

	case CmdClearObjects:
		if len(args) != 0 {
			return nil, argCount(name, 0, len(args))
		}
		n := m.objs.Len()
		err := m.objs.Clear()
		m.log.Debug().Int("objects", n).Msg("objects cleared")
		return nil, err

	case CmdGetMethodNames:
		if len(args) != 0 {
			return nil, argCount(name, 0, len(args))
		}
		return []asyncproc.Value{m.CommandNames()}, nil
	}

	m.mu.RLock()
	cmd, ok := m.cmds[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errorc.With(ErrUnknownCommand, errorc.String("command", name))
	}

	if len(args) < 1 {
		return nil, errorc.With(ErrArgCount, errorc.String(name, "object handle required"))
	}
	h, err := handleArg(args[0])
	if err != nil {
		return nil, err
	}
	obj, err := m.objs.Get(h)
	if err != nil {
		return nil, err
	}

	rest := args[1:]
	if !cmd.arity.check(len(rest)) {
		return nil, errorc.With(ErrArgCount, errorc.String(name, "got "+strconv.Itoa(len(rest))+" arguments"))
	}
	return cmd.fn(ctx, obj, rest)
}

func isBuiltin(name string) bool {
	switch name {
	case CmdNew, CmdDelete, CmdClearObjects, CmdGetMethodNames:
		return true
	}
	return false
}

func handleArg(v asyncproc.Value) (registry.Handle, error) {
	h, err := registry.HandleFrom(v)
	if err != nil {
		return 0, errorc.With(ErrInvalidArgument, errorc.String("handle", err.Error()))
	}
	return h, nil
}

func argCount(name string, want, got int) error {
	return errorc.With(ErrArgCount,
		errorc.String(name, "want "+strconv.Itoa(want)+" arguments, got "+strconv.Itoa(got)))
}
