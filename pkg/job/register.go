package job

import (
	"context"
	"sync"
)

// Register holds the current Status of a job along with one Latch per Status
// that is signaled the first time that Status is set. The latches are never
// reset, so waiting on a Status that has already been reached returns
// immediately.
type Register struct {
	mu      sync.RWMutex
	current Status
	latches [numStatuses]*Latch

	// changed is closed and replaced every time a latch is signaled for the
	// first time
	changed chan struct{}
}

// NewRegister returns a Register in the ready state. The ready latch is
// already signaled.
func NewRegister() *Register {
	r := Register{
		current: StatusReady,
		changed: make(chan struct{}),
	}

	for i := range r.latches {
		r.latches[i] = NewLatch()
	}

	r.latches[StatusReady].Signal()

	return &r
}

// Set stores s as the current Status and signals its latch. Both happen under
// the same lock, so a reader never observes the new Status without its latch
// being signaled.
func (r *Register) Set(s Status) error {
	if err := s.check(); err != nil {
		return err
	}
	r.set(s)
	return nil
}

func (r *Register) set(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = s
	if r.latches[s].Signal() {
		close(r.changed)
		r.changed = make(chan struct{})
	}
}

// Get returns the most recently set Status
func (r *Register) Get() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reached returns whether or not s has been set at least once
func (r *Register) Reached(s Status) bool {
	if !s.Valid() {
		return false
	}
	return r.latches[s].Signaled()
}

// Done returns a channel that is closed once s has been set
func (r *Register) Done(s Status) (<-chan struct{}, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return r.latches[s].Done(), nil
}

// WaitFor blocks until s has been set at least once or ctx is done
func (r *Register) WaitFor(ctx context.Context, s Status) error {
	if err := s.check(); err != nil {
		return err
	}
	return r.latches[s].Wait(ctx)
}

// WaitForAny blocks until any of statuses has been set at least once and
// returns the first of them, in argument order, that has been reached.
func (r *Register) WaitForAny(ctx context.Context, statuses ...Status) (Status, error) {
	for _, s := range statuses {
		if err := s.check(); err != nil {
			return 0, err
		}
	}

	for {
		r.mu.RLock()
		for _, s := range statuses {
			if r.latches[s].Signaled() {
				r.mu.RUnlock()
				return s, nil
			}
		}
		changed := r.changed
		r.mu.RUnlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
