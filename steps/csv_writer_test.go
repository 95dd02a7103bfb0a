package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/asyncproc"
)

func newCSVWriter(t *testing.T) *CSVWriter {
	t.Helper()
	w, err := NewCSVWriter(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestCSVWriter_WritesRows(t *testing.T) {
	w := newCSVWriter(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, w.OpenFile(path, "w"))
	require.True(t, w.IsFileOpen())
	require.Equal(t, path, w.FilePath())
	require.Equal(t, "w", w.FileAccessMode())

	require.NoError(t, w.PushTask(1.5, "a", 2))
	require.NoError(t, w.SetParameters(ParamNumericFormat, "%.2f", ParamStringFormat, "'%s'"))
	require.NoError(t, w.PushTask(1.5, "b"))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1.5,a,2\n1.50,'b'\n", string(data))

	require.False(t, w.IsFileOpen())
	require.Equal(t, "", w.FilePath())
	require.Equal(t, "", w.FileAccessMode())

	r, err := w.PopResult()
	require.NoError(t, err)
	require.Equal(t, asyncproc.Result{map[string]int64{KeyOffsetBefore: 0, KeyOffsetAfter: 8}}, r)
	r, err = w.PopResult()
	require.NoError(t, err)
	require.Equal(t, asyncproc.Result{map[string]int64{KeyOffsetBefore: 8, KeyOffsetAfter: 17}}, r)
}

func TestCSVWriter_AppendMode(t *testing.T) {
	w := newCSVWriter(t)
	path := filepath.Join(t.TempDir(), "append.csv")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	require.NoError(t, w.OpenFile(path, "a"))
	require.NoError(t, w.PushTask("y"))
	require.Eventually(t, func() bool { return w.AvailableResults() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, w.CloseFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "x\ny\n", string(data))

	r, err := w.PopResult()
	require.NoError(t, err)
	require.Equal(t, int64(2), r[0].(map[string]int64)[KeyOffsetBefore])
}

func TestCSVWriter_FileNotOpen(t *testing.T) {
	w := newCSVWriter(t)

	require.NoError(t, w.PushTask(1))
	require.Eventually(t, w.WasErrorThrown, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !w.Running() }, 2*time.Second, time.Millisecond)

	rec, ok := w.LastError()
	require.True(t, ok)
	require.ErrorIs(t, rec, ErrFileNotOpen)
	require.Equal(t, "steps: file is not open", rec.Message)
}

func TestCSVWriter_UnsupportedValue(t *testing.T) {
	w := newCSVWriter(t)
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, w.OpenFile(path, "w"))

	require.NoError(t, w.PushTask(1, []int{1, 2}))
	require.Eventually(t, w.WasErrorThrown, 2*time.Second, time.Millisecond)

	rec, _ := w.LastError()
	require.ErrorIs(t, rec, ErrUnsupportedValue)

	require.NoError(t, w.CloseFile())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, data, "a failed row writes nothing")
}

func TestCSVWriter_NonStringFormatParameter(t *testing.T) {
	w := newCSVWriter(t)
	require.NoError(t, w.OpenFile(filepath.Join(t.TempDir(), "f.csv"), "w"))
	require.NoError(t, w.SetParameters(ParamNumericFormat, 3))

	require.NoError(t, w.PushTask(1))
	require.Eventually(t, w.WasErrorThrown, 2*time.Second, time.Millisecond)
	rec, _ := w.LastError()
	require.ErrorIs(t, rec, ErrInvalidFormat)
}

func TestCSVWriter_OpenFile_InvalidMode(t *testing.T) {
	w := newCSVWriter(t)
	path := filepath.Join(t.TempDir(), "m.csv")

	for _, mode := range []string{"x", "wt", "+w", "b"} {
		require.ErrorIs(t, w.OpenFile(path, mode), ErrInvalidMode, "mode %q", mode)
	}
	require.False(t, w.IsFileOpen())
}

func TestCSVWriter_OpenFile_ReplacesOpenFile(t *testing.T) {
	w := newCSVWriter(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "1.csv")
	second := filepath.Join(dir, "2.csv")

	require.NoError(t, w.OpenFile(first, "w"))
	require.NoError(t, w.OpenFile(second, "w+b"))
	require.Equal(t, second, w.FilePath())
	require.Equal(t, "w+b", w.FileAccessMode())

	require.Error(t, w.OpenFile(filepath.Join(dir, "missing", "x.csv"), "r"))
	require.False(t, w.IsFileOpen(), "a failed open leaves no file open")
}

func TestOpenFlags(t *testing.T) {
	tests := map[string]int{
		"r":   os.O_RDONLY,
		"rb":  os.O_RDONLY,
		"r+":  os.O_RDWR,
		"w":   os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
		"w+":  os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		"a":   os.O_WRONLY | os.O_CREATE | os.O_APPEND,
		"ab+": os.O_RDWR | os.O_CREATE | os.O_APPEND,
	}
	for mode, want := range tests {
		got, err := openFlags(mode)
		require.NoError(t, err, "mode %q", mode)
		require.Equal(t, want, got, "mode %q", mode)
	}
}

func TestFormatRow(t *testing.T) {
	row, err := formatRow([]asyncproc.Value{int8(1), uint16(2), float32(0.5), 1e6, "s"}, DefaultNumericFormat, "")
	require.NoError(t, err)
	require.Equal(t, "1,2,0.5,1E+06,s\n", row)

	row, err = formatRow(nil, DefaultNumericFormat, "")
	require.NoError(t, err)
	require.Equal(t, "", row)

	_, err = formatRow([]asyncproc.Value{true}, DefaultNumericFormat, "")
	require.ErrorIs(t, err, ErrUnsupportedValue)
}
