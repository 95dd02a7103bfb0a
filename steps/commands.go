package steps

import (
	"context"
	"fmt"

	"github.com/ygrebnov/asyncproc"
	"github.com/ygrebnov/asyncproc/session"
)

// Command names for the extended processors.
const (
	CmdSetParameters       = "setParameters"
	CmdClearParameters     = "clearParameters"
	CmdGetParameters       = "getParameters"
	CmdSetPersistentArgs   = "setPersistentArgs"
	CmdClearPersistentArgs = "clearPersistentArgs"
	CmdGetPersistentArgs   = "getPersistentArgs"
	CmdOpenFile            = "openFile"
	CmdCloseFile           = "closeFile"
	CmdIsFileOpen          = "isFileOpen"
	CmdFilePath            = "filepath"
	CmdFileAccessMode      = "fileAccessMode"
)

// RegisterParamCommands adds the Processor commands plus setParameters, clearParameters and getParameters.
func RegisterParamCommands[O any](m *session.Manager[O], pp func(O) *ParamProcessor) error {
	if err := session.RegisterAsyncCommands(m, func(o O) *asyncproc.Processor { return pp(o).Processor }); err != nil {
		return err
	}
	if err := m.AddCommand(CmdSetParameters, session.AtLeast(0),
		func(_ context.Context, o O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			return nil, pp(o).SetParameters(args...)
		}); err != nil {
		return err
	}
	if err := m.AddCommand(CmdClearParameters, session.Exactly(0),
		func(_ context.Context, o O, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			pp(o).ClearParameters()
			return nil, nil
		}); err != nil {
		return err
	}
	return m.AddCommand(CmdGetParameters, session.Exactly(0),
		func(_ context.Context, o O, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return []asyncproc.Value{map[string]asyncproc.Value(pp(o).Parameters())}, nil
		})
}

// RegisterPersistentArgsCommands adds the Processor commands plus
// setPersistentArgs, clearPersistentArgs and getPersistentArgs.
func RegisterPersistentArgsCommands[O any](m *session.Manager[O], pa func(O) *PersistentArgsProcessor) error {
	if err := session.RegisterAsyncCommands(m, func(o O) *asyncproc.Processor { return pa(o).Processor }); err != nil {
		return err
	}
	if err := m.AddCommand(CmdSetPersistentArgs, session.AtLeast(0),
		func(_ context.Context, o O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			pa(o).SetPersistentArgs(args...)
			return nil, nil
		}); err != nil {
		return err
	}
	if err := m.AddCommand(CmdClearPersistentArgs, session.Exactly(0),
		func(_ context.Context, o O, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			pa(o).ClearPersistentArgs()
			return nil, nil
		}); err != nil {
		return err
	}
	return m.AddCommand(CmdGetPersistentArgs, session.Exactly(0),
		func(_ context.Context, o O, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return []asyncproc.Value{pa(o).PersistentArgs()}, nil
		})
}

// RegisterCSVCommands adds the parameter processor commands plus the file commands:
// openFile(path[, mode]), closeFile, isFileOpen, filepath and fileAccessMode.
func RegisterCSVCommands[O any](m *session.Manager[O], cw func(O) *CSVWriter) error {
	if err := RegisterParamCommands(m, func(o O) *ParamProcessor { return cw(o).ParamProcessor }); err != nil {
		return err
	}

	cmds := []struct {
		name  string
		arity session.Arity
		fn    func(w *CSVWriter, args []asyncproc.Value) ([]asyncproc.Value, error)
	}{
		{CmdOpenFile, session.Between(1, 2), func(w *CSVWriter, args []asyncproc.Value) ([]asyncproc.Value, error) {
			path, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("%w: file path must be a string", session.ErrInvalidArgument)
			}
			mode := "w"
			if len(args) == 2 {
				if mode, ok = args[1].(string); !ok {
					return nil, fmt.Errorf("%w: file mode must be a string", session.ErrInvalidArgument)
				}
			}
			return nil, w.OpenFile(path, mode)
		}},
		{CmdCloseFile, session.Exactly(0), func(w *CSVWriter, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return nil, w.CloseFile()
		}},
		{CmdIsFileOpen, session.Exactly(0), func(w *CSVWriter, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return []asyncproc.Value{w.IsFileOpen()}, nil
		}},
		{CmdFilePath, session.Exactly(0), func(w *CSVWriter, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return []asyncproc.Value{w.FilePath()}, nil
		}},
		{CmdFileAccessMode, session.Exactly(0), func(w *CSVWriter, _ []asyncproc.Value) ([]asyncproc.Value, error) {
			return []asyncproc.Value{w.FileAccessMode()}, nil
		}},
	}
	for _, c := range cmds {
		fn := c.fn
		err := m.AddCommand(c.name, c.arity, func(_ context.Context, o O, args []asyncproc.Value) ([]asyncproc.Value, error) {
			return fn(cw(o), args)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
