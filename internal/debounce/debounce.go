// Package debounce implements a keyed trailing-edge debouncer.
//
// Each call to Trigger for a key restarts that key's window and replaces its
// pending callback; the callback runs once the key has been quiet for the
// full window. Intermediate callbacks are dropped, not queued.
package debounce

import (
	"sync"
	"time"

	"github.com/roach88/qwsync/internal/clock"
)

// Debouncer coalesces calls per key.
//
// Callbacks run on the clock's timer goroutine, one at a time per firing.
// A callback that has been superseded by a later Trigger never runs, even if
// its timer had already fired.
//
// Thread-safety: safe for concurrent use.
type Debouncer[K comparable] struct {
	clock   clock.Clock
	delay   time.Duration
	mu      sync.Mutex
	pending map[K]*pendingCall
	closed  bool
	active  int
	idle    *sync.Cond
}

type pendingCall struct {
	timer clock.Timer
	fn    func()
}

// New creates a debouncer with the given quiescence window.
// A nil clock selects the wall clock.
func New[K comparable](c clock.Clock, delay time.Duration) *Debouncer[K] {
	if c == nil {
		c = clock.Real{}
	}
	d := &Debouncer[K]{
		clock:   c,
		delay:   delay,
		pending: make(map[K]*pendingCall),
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Delay returns the quiescence window.
func (d *Debouncer[K]) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn for key, superseding any pending callback for key.
// Returns false if the debouncer has been closed.
func (d *Debouncer[K]) Trigger(key K, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	call := &pendingCall{fn: fn}
	call.timer = d.clock.AfterFunc(d.delay, func() { d.fire(key, call) })
	d.pending[key] = call
	return true
}

// Pending reports whether key has a callback waiting to run.
func (d *Debouncer[K]) Pending(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len returns the number of keys with pending callbacks.
func (d *Debouncer[K]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush runs every pending callback now, on the calling goroutine, and waits
// for callbacks already running on timer goroutines to finish.
func (d *Debouncer[K]) Flush() {
	d.mu.Lock()
	calls := make([]*pendingCall, 0, len(d.pending))
	for key, call := range d.pending {
		call.timer.Stop()
		calls = append(calls, call)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, call := range calls {
		call.fn()
	}
	d.waitIdle()
}

// Cancel drops the pending callback for key, if any.
func (d *Debouncer[K]) Cancel(key K) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if call, ok := d.pending[key]; ok {
		call.timer.Stop()
		delete(d.pending, key)
	}
}

// Close drops every pending callback, rejects further Triggers, and waits for
// callbacks already running to return.
func (d *Debouncer[K]) Close() {
	d.mu.Lock()
	d.closed = true
	for key, call := range d.pending {
		call.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()

	d.waitIdle()
}

// waitIdle blocks until no timer-fired callback is running.
func (d *Debouncer[K]) waitIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.active > 0 {
		d.idle.Wait()
	}
}

func (d *Debouncer[K]) fire(key K, call *pendingCall) {
	d.mu.Lock()
	if d.pending[key] != call {
		// Superseded or cancelled after the timer fired.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.active++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.active--
		if d.active == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	call.fn()
}
