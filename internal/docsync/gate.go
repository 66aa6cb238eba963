package docsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/qwsync/internal/clock"
)

// ErrGateTimeout is returned by Gate.Wait when the timeout elapses first.
var ErrGateTimeout = errors.New("readiness gate timed out")

// Gate is a one-shot readiness signal for the remote client.
// A nil *Gate is always open.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate returns a closed gate; call Open once the remote client is usable.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases every current and future waiter. Safe to call more than once.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}

// Ready returns a channel closed once the gate opens.
func (g *Gate) Ready() <-chan struct{} {
	if g == nil {
		return closedChan
	}
	return g.ch
}

// IsOpen reports whether Open has been called.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.Ready():
		return true
	default:
		return false
	}
}

// Wait blocks until the gate opens, ctx is done, or timeout elapses on the
// wall clock. A zero timeout waits as long as ctx allows.
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) error {
	return g.WaitClock(ctx, clock.Real{}, timeout)
}

// WaitClock is Wait with the timeout measured on c.
func (g *Gate) WaitClock(ctx context.Context, c clock.Clock, timeout time.Duration) error {
	if g.IsOpen() {
		return nil
	}

	expired := make(chan struct{})
	if timeout > 0 {
		t := c.AfterFunc(timeout, func() { close(expired) })
		defer t.Stop()
	}

	select {
	case <-g.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrGateTimeout
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
