package asyncproc

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorRecord_IsAndExtract(t *testing.T) {
	base := errors.New("disk full")
	rec := newErrorRecord(base, Task{ID: "abc", Index: 7})

	if rec.Identifier != IdentifierProcessing {
		t.Fatalf("Identifier = %q; want %q", rec.Identifier, IdentifierProcessing)
	}
	if rec.Error() != "disk full" {
		t.Fatalf("Error() = %q", rec.Error())
	}
	if !errors.Is(rec, ErrProcessingFailure) || !errors.Is(rec, base) {
		t.Fatalf("errors.Is must match both ErrProcessingFailure and the step error")
	}

	wrapped := fmt.Errorf("outer: %w", rec)
	if id, ok := ExtractTaskID(wrapped); !ok || id != "abc" {
		t.Fatalf("ExtractTaskID = %q, %v", id, ok)
	}
	if idx, ok := ExtractTaskIndex(wrapped); !ok || idx != 7 {
		t.Fatalf("ExtractTaskIndex = %d, %v", idx, ok)
	}
	if _, ok := ExtractTaskID(base); ok {
		t.Fatalf("ExtractTaskID on plain error must report false")
	}
}

func TestErrorRecord_PanicIdentifier(t *testing.T) {
	err := fmt.Errorf("%w: %v", ErrStepPanicked, "nil map")
	rec := newErrorRecord(err, Task{})
	if rec.Identifier != IdentifierPanic {
		t.Fatalf("Identifier = %q; want %q", rec.Identifier, IdentifierPanic)
	}
	if _, ok := rec.TaskID(); ok {
		t.Fatalf("TaskID must report false for empty id")
	}
}

func TestErrorRecord_Format(t *testing.T) {
	rec := newErrorRecord(errors.New("boom"), Task{ID: "id-1", Index: 3})

	if got := fmt.Sprintf("%v", rec); got != "boom" {
		t.Fatalf("%%v = %q", got)
	}
	if got := fmt.Sprintf("%q", rec); got != `"boom"` {
		t.Fatalf("%%q = %q", got)
	}
	got := fmt.Sprintf("%+v", rec)
	for _, part := range []string{IdentifierProcessing, "index=3", "id=id-1", "boom"} {
		if !strings.Contains(got, part) {
			t.Fatalf("%%+v = %q; missing %q", got, part)
		}
	}
}

func TestErrorSlot_KeepsFirst(t *testing.T) {
	var s errorSlot
	if s.isSet() {
		t.Fatalf("zero slot must be empty")
	}
	first := newErrorRecord(errors.New("first"), Task{Index: 0})
	second := newErrorRecord(errors.New("second"), Task{Index: 1})

	if !s.set(first) {
		t.Fatalf("set on empty slot must succeed")
	}
	if s.set(second) {
		t.Fatalf("set on occupied slot must be refused")
	}
	rec, ok := s.get()
	if !ok || rec.Message != "first" {
		t.Fatalf("get = %v, %v; want first", rec, ok)
	}

	s.clear()
	if s.isSet() {
		t.Fatalf("slot set after clear")
	}
	if !s.set(second) {
		t.Fatalf("set after clear must succeed")
	}
}
