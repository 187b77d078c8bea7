// Package schedule provides small coordination primitives for overlapping
// asynchronous work: a cancellable debouncer with supersession semantics and
// a sequencer that discards stale completions.
package schedule

import (
	"sync"
	"time"
)

// DefaultQuiescence is the debounce interval for geocoding search input.
const DefaultQuiescence = 500 * time.Millisecond

// Debouncer coalesces rapid task submissions: a task runs only once input
// has been quiet for the configured interval, and each new submission
// supersedes any pending one. At most one task is ever dispatched per quiet
// period, and it is always the most recently scheduled one.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiescence interval.
// A non-positive interval falls back to DefaultQuiescence.
func NewDebouncer(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultQuiescence
	}
	return &Debouncer{interval: interval}
}

// Schedule arranges for fn to run after the quiescence interval, replacing
// any previously scheduled task that has not fired yet.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

// Cancel drops any pending task without stopping the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending task and refuses further scheduling.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.stopped = true
}
