package steps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/asyncproc"
)

func TestParams_Accessors(t *testing.T) {
	p := Params{"b": 2, "a": "x"}

	v, ok := p.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, v)

	_, ok = p.Get("zzz")
	require.False(t, ok)

	s, err := p.StringOr("a", "def")
	require.NoError(t, err)
	require.Equal(t, "x", s)

	s, err = p.StringOr("missing", "def")
	require.NoError(t, err)
	require.Equal(t, "def", s)

	_, err = p.StringOr("b", "def")
	require.ErrorIs(t, err, ErrInvalidFormat)

	require.Equal(t, []string{"a", "b"}, p.Names())
}

func TestParamProcessor_SetClearGet(t *testing.T) {
	pp, err := NewParamProcessor(context.Background(), func(_ context.Context, _ asyncproc.Task, _ Params) (asyncproc.Result, error) {
		return nil, nil
	})
	require.NoError(t, err)
	defer pp.Close()

	require.Empty(t, pp.Parameters())

	require.NoError(t, pp.SetParameters("gain", 2.0, "label", "run1"))
	require.NoError(t, pp.SetParameters("gain", 3.0))
	require.Equal(t, Params{"gain": 3.0, "label": "run1"}, pp.Parameters())

	// returned copy is detached
	got := pp.Parameters()
	got["gain"] = 100.0
	require.Equal(t, 3.0, pp.Parameters()["gain"])

	require.ErrorIs(t, pp.SetParameters("odd"), ErrInvalidParameters)
	require.ErrorIs(t, pp.SetParameters(1, 2), ErrInvalidParameters)
	require.Equal(t, Params{"gain": 3.0, "label": "run1"}, pp.Parameters(), "failed set leaves parameters unchanged")

	pp.ClearParameters()
	require.Empty(t, pp.Parameters())
}

func TestParamProcessor_SnapshotAtPush(t *testing.T) {
	pp, err := NewParamProcessor(context.Background(),
		func(_ context.Context, t asyncproc.Task, params Params) (asyncproc.Result, error) {
			gain, _ := params.Get("gain")
			return asyncproc.Result{t.Values[0], gain}, nil
		})
	require.NoError(t, err)
	defer pp.Close()

	pp.Pause()
	require.NoError(t, pp.PushTask(1))
	require.NoError(t, pp.SetParameters("gain", 2))
	require.NoError(t, pp.PushTask(2))
	require.NoError(t, pp.SetParameters("gain", 3))
	require.NoError(t, pp.PushTask(3))
	pp.ClearParameters()
	require.NoError(t, pp.PushTask(4))

	require.NoError(t, pp.Resume())
	require.Eventually(t, func() bool { return pp.AvailableResults() == 4 }, 2*time.Second, time.Millisecond)

	want := []asyncproc.Result{{1, nil}, {2, 2}, {3, 3}, {4, nil}}
	for _, w := range want {
		r, err := pp.PopResult()
		require.NoError(t, err)
		require.Equal(t, w, r)
	}
}

func TestParamProcessor_StepSeesNonNilParams(t *testing.T) {
	seen := make(chan Params, 1)
	pp, err := NewParamProcessor(context.Background(),
		func(_ context.Context, _ asyncproc.Task, params Params) (asyncproc.Result, error) {
			seen <- params
			return nil, nil
		})
	require.NoError(t, err)
	defer pp.Close()

	require.NoError(t, pp.PushTask())
	select {
	case p := <-seen:
		require.NotNil(t, p)
	case <-time.After(2 * time.Second):
		t.Fatal("step not called")
	}
}

func TestNewParamProcessor_NilStep(t *testing.T) {
	_, err := NewParamProcessor(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilStep)
}
