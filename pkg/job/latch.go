package job

import (
	"context"
	"sync"
)

// Latch is a one-shot broadcast signal. It starts unsignaled, can be signaled
// exactly once and then stays signaled forever. Any number of goroutines may
// wait on it.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// NewLatch returns an unsignaled Latch
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Signal releases all current and future waiters. It returns true only for the
// call that actually signaled the latch, further calls are no-ops.
func (l *Latch) Signal() bool {
	var fired bool
	l.once.Do(func() {
		close(l.done)
		fired = true
	})
	return fired
}

// Done returns a channel that is closed once the latch is signaled
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Signaled returns whether or not the latch has been signaled
func (l *Latch) Signaled() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the latch is signaled or ctx is done
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		// prefer reporting the signal if both happened
		if l.Signaled() {
			return nil
		}
		return ctx.Err()
	}
}
