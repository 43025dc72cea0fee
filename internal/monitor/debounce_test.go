package monitor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerBurstCollapsesToOne(t *testing.T) {
	var calls int32
	d := NewDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	// Fire a burst of notifications well inside the window.
	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback for a burst, got %d", got)
	}
}

func TestDebouncerSpacedTriggersFireSeparately(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	for i := 0; i < 3; i++ {
		d.Trigger()
		// Wait past the window so each trigger gets its own cycle.
		time.Sleep(80 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 separate callbacks, got %d", got)
	}
}

func TestDebouncerTimerRestartsOnTrigger(t *testing.T) {
	var calls int32
	d := NewDebouncer(60*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	defer d.Stop()

	// Keep triggering inside the window; the callback must not fire while
	// notifications keep arriving.
	for i := 0; i < 6; i++ {
		d.Trigger()
		time.Sleep(30 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("callback fired %d times while triggers kept arriving", got)
	}

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 callback after the burst ended, got %d", got)
	}
}

func TestDebouncerStopPreventsCallback(t *testing.T) {
	var calls int32
	d := NewDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	d.Trigger()
	d.Stop()
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("callback fired %d times after Stop", got)
	}

	// Triggers after Stop are ignored.
	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("callback fired after Stop + Trigger")
	}
}
