package steps

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ygrebnov/asyncproc"
)

// CSV writer parameter names.
const (
	ParamNumericFormat = "NumericFormat"
	ParamStringFormat  = "StringFormat"

	DefaultNumericFormat = "%G"
)

// Result keys reported for every written row.
const (
	KeyOffsetBefore = "ftell_before"
	KeyOffsetAfter  = "ftell_after"
)

// CSVWriter is a ParamProcessor that writes one comma-separated row per task to an open file.
//
// Each task value must be a numeric scalar or a string. Numbers are formatted with
// the NumericFormat parameter (default %G), strings with StringFormat (default: as is).
// Every task produces one result: a map with the file offsets before and after the write.
// A task processed while no file is open fails with ErrFileNotOpen.
type CSVWriter struct {
	*ParamProcessor

	mu   sync.Mutex
	f    *os.File
	path string
	mode string
}

// NewCSVWriter creates a CSVWriter with no open file.
func NewCSVWriter(ctx context.Context, opts ...asyncproc.Option) (*CSVWriter, error) {
	w := &CSVWriter{}
	pp, err := NewParamProcessor(ctx, w.writeRow, opts...)
	if err != nil {
		return nil, err
	}
	w.ParamProcessor = pp
	return w, nil
}

// OpenFile opens path with an fopen-style mode made of the characters "rwab+".
// The mode must start with r, w or a. Any file already open is closed first.
func (w *CSVWriter) OpenFile(path, mode string) error {
	if mode == "" {
		mode = "w"
	}
	flags, err := openFlags(mode)
	if err != nil {
		return err
	}
	if err := w.CloseFile(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%s: could not open file %s: %w", Namespace, path, err)
	}
	if flags&os.O_APPEND != 0 {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.f, w.path, w.mode = f, path, mode
	return nil
}

// CloseFile flushes and closes the open file, if any.
func (w *CSVWriter) CloseFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Sync()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f, w.path, w.mode = nil, "", ""
	return err
}

// IsFileOpen reports whether a file is open.
func (w *CSVWriter) IsFileOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f != nil
}

// FilePath returns the open file path, or "" when no file is open.
func (w *CSVWriter) FilePath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// FileAccessMode returns the mode the file was opened with, or "" when no file is open.
func (w *CSVWriter) FileAccessMode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Close finishes the queued rows, stops the processor and closes the file.
func (w *CSVWriter) Close() error {
	w.ParamProcessor.Close()
	return w.CloseFile()
}

func (w *CSVWriter) writeRow(_ context.Context, t asyncproc.Task, params Params) (asyncproc.Result, error) {
	numFmt, err := params.StringOr(ParamNumericFormat, DefaultNumericFormat)
	if err != nil {
		return nil, err
	}
	strFmt, err := params.StringOr(ParamStringFormat, "")
	if err != nil {
		return nil, err
	}

	row, err := formatRow(t.Values, numFmt, strFmt)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil, ErrFileNotOpen
	}

	before, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := w.f.WriteString(row); err != nil {
		return nil, err
	}
	after, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	return asyncproc.Result{map[string]int64{
		KeyOffsetBefore: before,
		KeyOffsetAfter:  after,
	}}, nil
}

func formatRow(values []asyncproc.Value, numFmt, strFmt string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		if s, ok := v.(string); ok {
			if strFmt != "" {
				fmt.Fprintf(&b, strFmt, s)
			} else {
				b.WriteString(s)
			}
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return "", fmt.Errorf("%w: value %d is %T", ErrUnsupportedValue, i, v)
		}
		fmt.Fprintf(&b, numFmt, f)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

func toFloat(v asyncproc.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// openFlags maps an fopen-style mode to os.OpenFile flags.
func openFlags(mode string) (int, error) {
	if strings.Trim(mode, "rwab+") != "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	plus := strings.Contains(mode, "+")
	switch mode[0] {
	case 'r':
		if plus {
			return os.O_RDWR, nil
		}
		return os.O_RDONLY, nil
	case 'w':
		if plus {
			return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
		}
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case 'a':
		if plus {
			return os.O_RDWR | os.O_CREATE | os.O_APPEND, nil
		}
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}
