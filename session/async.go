package session

import (
	"context"

	"github.com/ygrebnov/asyncproc"
)

// Processor command names registered by RegisterAsyncCommands.
const (
	CmdPushTask             = "pushTask"
	CmdPopResult            = "popResult"
	CmdRemainingTasks       = "remainingTasks"
	CmdAvailableResults     = "availableResults"
	CmdRunning              = "running"
	CmdPause                = "pause"
	CmdResume               = "resume"
	CmdCancelRemainingTasks = "cancelRemainingTasks"
	CmdNumResultOutputArgs  = "numResultOutputArgs"
	CmdClearResults         = "clearResults"
	CmdWasErrorThrown       = "wasErrorThrown"
	CmdGetError             = "getError"
	CmdClearError           = "clearError"
)

// RegisterAsyncCommands adds the Processor command surface to m.
// proc extracts the Processor from a managed object.
//
// getError returns a map with "identifier", "message", "task_id" and "task_index",
// or nil when no error is recorded.
func RegisterAsyncCommands[O any](m *Manager[O], proc func(O) *asyncproc.Processor) error {
	cmds := []struct {
		name  string
		arity Arity
		fn    func(p *asyncproc.Processor, args []asyncproc.Value) ([]asyncproc.Value, error)
	}{
		{CmdPushTask, AtLeast(0), func(p *asyncproc.Processor, args []asyncproc.Value) ([]asyncproc.Value, error) {
			return nil, p.PushTask(args...)
		}},
		{CmdPopResult, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			r, err := p.PopResult()
			if err != nil {
				return nil, err
			}
			return r, nil
		}},
		{CmdRemainingTasks, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.RemainingTasks()), nil
		}},
		{CmdAvailableResults, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.AvailableResults()), nil
		}},
		{CmdRunning, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.Running()), nil
		}},
		{CmdPause, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			p.Pause()
			return nil, nil
		}},
		{CmdResume, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return nil, p.Resume()
		}},
		{CmdCancelRemainingTasks, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.CancelRemainingTasks()), nil
		}},
		{CmdNumResultOutputArgs, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.NumResultOutputArgs()), nil
		}},
		{CmdClearResults, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.ClearResults()), nil
		}},
		{CmdWasErrorThrown, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return one(p.WasErrorThrown()), nil
		}},
		{CmdGetError, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			rec, ok := p.LastError()
			if !ok {
				return one(nil), nil
			}
			return one(ErrorValue(rec)), nil
		}},
		{CmdClearError, Exactly(0), func(p *asyncproc.Processor, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			p.ClearError()
			return nil, nil
		}},
	}

	for _, c := range cmds {
		fn := c.fn
		err := m.AddCommand(c.name, c.arity, func(_ context.Context, obj O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			return fn(proc(obj), args)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ErrorValue converts an ErrorRecord to a host-friendly map.
func ErrorValue(rec *asyncproc.ErrorRecord) map[string]any {
	id, _ := rec.TaskID()
	idx, _ := rec.TaskIndex()
	return map[string]any{
		"identifier": rec.Identifier,
		"message":    rec.Message,
		"task_id":    id,
		"task_index": idx,
	}
}

func one(v asyncproc.Value) []asyncproc.Value { return []asyncproc.Value{v} }
