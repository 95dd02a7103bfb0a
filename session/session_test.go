package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/asyncproc"
	"github.com/ygrebnov/asyncproc/registry"
)

func squareStep(_ context.Context, t asyncproc.Task) (asyncproc.Result, error) {
	v, ok := t.Values[0].(float64)
	if !ok {
		return nil, fmt.Errorf("want float64, got %T", t.Values[0])
	}
	return asyncproc.Result{v * v}, nil
}

func newTestManager(t *testing.T) *Manager[*asyncproc.Processor] {
	t.Helper()
	m := NewManager(
		func(ctx context.Context, _ []asyncproc.Value) (*asyncproc.Processor, error) {
			return asyncproc.New(ctx, squareStep)
		},
		func(p *asyncproc.Processor) error { p.Close(); return nil },
	)
	require.NoError(t, RegisterAsyncCommands(m, func(p *asyncproc.Processor) *asyncproc.Processor { return p }))
	t.Cleanup(func() { _ = m.Objects().Clear() })
	return m
}

func call(t *testing.T, m *Manager[*asyncproc.Processor], name string, args ...asyncproc.Value) []asyncproc.Value {
	t.Helper()
	out, err := m.Call(context.Background(), name, args...)
	require.NoError(t, err, "command %s", name)
	return out
}

func TestManager_NewDelete(t *testing.T) {
	m := newTestManager(t)

	out := call(t, m, CmdNew)
	require.Len(t, out, 1)
	h := out[0].(registry.Handle)
	require.Equal(t, registry.Handle(1), h)
	require.Equal(t, 1, m.Objects().Len())

	// hosts commonly send handles as doubles
	call(t, m, CmdDelete, float64(h))
	require.Equal(t, 0, m.Objects().Len())

	_, err := m.Call(context.Background(), CmdDelete, h)
	require.ErrorIs(t, err, registry.ErrInvalidHandle)
}

func TestManager_ProcessorRoundTrip(t *testing.T) {
	m := newTestManager(t)
	h := call(t, m, CmdNew)[0]

	for _, v := range []float64{1, 2, 3} {
		call(t, m, CmdPushTask, h, v)
	}
	require.Eventually(t, func() bool {
		return call(t, m, CmdAvailableResults, h)[0] == 3
	}, 2*time.Second, time.Millisecond)

	require.Equal(t, []asyncproc.Value{0}, call(t, m, CmdRemainingTasks, h))
	require.Equal(t, []asyncproc.Value{true}, call(t, m, CmdRunning, h))
	require.Equal(t, []asyncproc.Value{1}, call(t, m, CmdNumResultOutputArgs, h))

	require.Equal(t, []asyncproc.Value{1.0}, call(t, m, CmdPopResult, h))
	require.Equal(t, []asyncproc.Value{4.0}, call(t, m, CmdPopResult, h))
	require.Equal(t, []asyncproc.Value{1}, call(t, m, CmdClearResults, h))

	_, err := m.Call(context.Background(), CmdPopResult, h)
	require.ErrorIs(t, err, asyncproc.ErrEmptyResults)

	call(t, m, CmdPause, h)
	require.Equal(t, []asyncproc.Value{false}, call(t, m, CmdRunning, h))
	call(t, m, CmdPushTask, h, 5.0)
	require.Equal(t, []asyncproc.Value{1}, call(t, m, CmdCancelRemainingTasks, h))
	call(t, m, CmdResume, h)
	require.Equal(t, []asyncproc.Value{true}, call(t, m, CmdRunning, h))
}

func TestManager_ErrorCommands(t *testing.T) {
	m := newTestManager(t)
	h := call(t, m, CmdNew)[0]

	require.Equal(t, []asyncproc.Value{nil}, call(t, m, CmdGetError, h))

	call(t, m, CmdPushTask, h, "not a number")
	require.Eventually(t, func() bool {
		return call(t, m, CmdWasErrorThrown, h)[0] == true
	}, 2*time.Second, time.Millisecond)

	out := call(t, m, CmdGetError, h)
	rec := out[0].(map[string]any)
	require.Equal(t, asyncproc.IdentifierProcessing, rec["identifier"])
	require.Equal(t, "want float64, got string", rec["message"])
	require.Equal(t, 0, rec["task_index"])
	require.NotEmpty(t, rec["task_id"])

	call(t, m, CmdClearError, h)
	require.Equal(t, []asyncproc.Value{false}, call(t, m, CmdWasErrorThrown, h))
}

func TestManager_Validation(t *testing.T) {
	m := newTestManager(t)
	h := call(t, m, CmdNew)[0]
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  string
		args []asyncproc.Value
		want error
	}{
		{name: "unknown command", cmd: "explode", args: []asyncproc.Value{h}, want: ErrUnknownCommand},
		{name: "missing handle", cmd: CmdRunning, want: ErrArgCount},
		{name: "extra argument", cmd: CmdRunning, args: []asyncproc.Value{h, 1}, want: ErrArgCount},
		{name: "bad handle type", cmd: CmdRunning, args: []asyncproc.Value{"one"}, want: ErrInvalidArgument},
		{name: "unknown handle", cmd: CmdRunning, args: []asyncproc.Value{registry.Handle(99)}, want: registry.ErrInvalidHandle},
		{name: "delete without handle", cmd: CmdDelete, want: ErrArgCount},
		{name: "clear_objects with args", cmd: CmdClearObjects, args: []asyncproc.Value{1}, want: ErrArgCount},
		{name: "getMethodNames with args", cmd: CmdGetMethodNames, args: []asyncproc.Value{1}, want: ErrArgCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Call(ctx, tt.cmd, tt.args...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_ClearObjects(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 3; i++ {
		call(t, m, CmdNew)
	}
	require.Equal(t, 3, m.Objects().Len())

	call(t, m, CmdClearObjects)
	require.Equal(t, 0, m.Objects().Len())

	// handles keep increasing after a clear
	require.Equal(t, registry.Handle(4), call(t, m, CmdNew)[0])
}

func TestManager_GetMethodNames(t *testing.T) {
	m := newTestManager(t)

	names := call(t, m, CmdGetMethodNames)[0].([]string)
	require.IsIncreasing(t, names)
	for _, want := range []string{
		CmdNew, CmdDelete, CmdClearObjects, CmdGetMethodNames,
		CmdPushTask, CmdPopResult, CmdRemainingTasks, CmdAvailableResults, CmdRunning,
		CmdPause, CmdResume, CmdCancelRemainingTasks, CmdNumResultOutputArgs,
		CmdClearResults, CmdWasErrorThrown, CmdGetError, CmdClearError,
	} {
		require.Contains(t, names, want)
	}
	require.Len(t, names, 17)
}

func TestManager_AddCommand_Rejects(t *testing.T) {
	m := newTestManager(t)
	noop := func(context.Context, *asyncproc.Processor, []asyncproc.Value) ([]asyncproc.Value, error) { return nil, nil }

	require.ErrorIs(t, m.AddCommand(CmdNew, Exactly(0), noop), ErrDuplicateCommand)
	require.ErrorIs(t, m.AddCommand(CmdPushTask, Exactly(0), noop), ErrDuplicateCommand)
	require.ErrorIs(t, m.AddCommand("", Exactly(0), noop), ErrInvalidArgument)
	require.ErrorIs(t, m.AddCommand("x", Exactly(0), nil), ErrInvalidArgument)
	require.NoError(t, m.AddCommand("x", Between(1, 2), noop))
}

func TestManager_FactoryError(t *testing.T) {
	boom := errors.New("no resources")
	m := NewManager(
		func(context.Context, []asyncproc.Value) (int, error) { return 0, boom },
		nil,
	)
	_, err := m.Call(context.Background(), CmdNew)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, m.Objects().Len())
}

func TestArity(t *testing.T) {
	require.True(t, Exactly(2).check(2))
	require.False(t, Exactly(2).check(1))
	require.True(t, AtLeast(1).check(10))
	require.False(t, AtLeast(1).check(0))
	require.True(t, Between(1, 3).check(3))
	require.False(t, Between(1, 3).check(4))
}
