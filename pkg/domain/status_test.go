package domain

import (
	"testing"
	"time"
)

func TestLifecycleTransitions(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLifecycle(t0)
	if l.Status != StatusNotReady {
		t.Fatalf("initial status = %s", l.Status)
	}
	if err := l.Transition(StatusNeedsUpdate, t0); err == nil {
		t.Fatal("NOT_READY -> NEEDS_UPDATE must be rejected")
	}
	t1 := t0.Add(time.Minute)
	if err := l.MarkSucceeded(t1); err != nil {
		t.Fatal(err)
	}
	if !l.StatusUpdatedAt.Equal(t1) {
		t.Fatalf("timestamp not updated: %v", l.StatusUpdatedAt)
	}
	if err := l.MarkSucceeded(t1); err == nil {
		t.Fatal("SUCCESS -> SUCCESS must be rejected")
	}
	if err := l.Transition(StatusNotReady, t1); err == nil {
		t.Fatal("SUCCESS -> NOT_READY must be rejected")
	}
	t2 := t1.Add(time.Minute)
	if !l.Invalidate(t2) || l.Status != StatusNeedsUpdate || !l.StatusUpdatedAt.Equal(t2) {
		t.Fatalf("invalidate failed: %+v", l)
	}
	if l.Invalidate(t2.Add(time.Minute)) {
		t.Fatal("invalidate of NEEDS_UPDATE must be a no-op")
	}
	if err := l.MarkSucceeded(t2); err != nil {
		t.Fatal(err)
	}
}

func TestInvalidateNotReadyIsNoop(t *testing.T) {
	l := NewLifecycle(time.Now())
	if l.Invalidate(time.Now()) || l.Status != StatusNotReady {
		t.Fatalf("NOT_READY must stay NOT_READY: %s", l.Status)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusNotReady, StatusSuccess, StatusNeedsUpdate} {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Fatalf("ParseStatus(%s) = %s, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("DONE"); err == nil {
		t.Fatal("expected error")
	}
}
