package asyncproc

import (
	"testing"
	"time"
)

// helper to wait for a channel close with timeout
func waitClosed(t *testing.T, ch <-chan struct{}, d time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

func TestRunControl_SignalStop(t *testing.T) {
	rc := newRunControl()
	if rc.stopRequested() || rc.finishRequested() {
		t.Fatalf("fresh runControl must have no flags raised")
	}

	rc.signal(haltStop)
	if !rc.stopRequested() {
		t.Fatalf("stop flag not raised")
	}
	if rc.finishRequested() {
		t.Fatalf("finish flag raised by stop signal")
	}
	if !waitClosed(t, rc.halt, 100*time.Millisecond) {
		t.Fatalf("halt channel not closed")
	}
}

func TestRunControl_SignalTwice_NoPanic(t *testing.T) {
	rc := newRunControl()
	rc.signal(haltFinish)
	rc.signal(haltStop)
	if !rc.finishRequested() || !rc.stopRequested() {
		t.Fatalf("both flags expected after two signals")
	}
}

func TestRunControl_WaitAndExited(t *testing.T) {
	rc := newRunControl()
	if rc.exited() {
		t.Fatalf("exited before done closed")
	}

	returned := make(chan struct{})
	go func() { rc.wait(); close(returned) }()

	select {
	case <-returned:
		t.Fatalf("wait returned before done closed")
	case <-time.After(20 * time.Millisecond):
	}

	close(rc.done)
	if !waitClosed(t, returned, time.Second) {
		t.Fatalf("wait did not return after done closed")
	}
	if !rc.exited() {
		t.Fatalf("exited = false after done closed")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:         "idle",
		StateRunning:      "running",
		StatePaused:       "paused",
		StateShuttingDown: "shutting-down",
		StateTerminated:   "terminated",
		State(42):         "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q; want %q", int32(s), got, want)
		}
	}
	if haltFinish.String() != "finish" || haltStop.String() != "stop" {
		t.Fatalf("unexpected haltMode strings")
	}
}
