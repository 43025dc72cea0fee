// Package monitor drives the parse→diff→apply pipeline: a debounced
// file-change trigger, a lock-guarded retained snapshot, and the fsnotify
// watcher feeding it.
package monitor

import (
	"sync"
	"time"
)

// DefaultDebounceWindow absorbs the multi-event bursts editors produce on
// save: the pipeline fires only once no further notification arrives for a
// full window.
const DefaultDebounceWindow = time.Second

// Debouncer collapses rapid change notifications into a single callback.
// The timer restarts on every Trigger, so a burst of notifications spaced
// inside the window yields exactly one firing.
type Debouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer firing callback after window elapses
// without further triggers.
func NewDebouncer(window time.Duration, callback func()) *Debouncer {
	return &Debouncer{window: window, callback: callback}
}

// Trigger records a change notification and restarts the window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.callback)
}

// Stop prevents any further callbacks from firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
