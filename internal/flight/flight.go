// Package flight implements single-slot memoization of asynchronous calls.
//
// A Slot holds at most one call per resource: callers that arrive while a
// call is pending share its result instead of issuing duplicates, and callers
// that arrive after completion get the settled result without re-running the
// function. Slots are never evicted; a fresh call replaces the occupant.
package flight

import (
	"context"
	"fmt"
	"sync"
)

// call is a pending or settled function invocation.
type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func (c *call[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Slot memoizes a single in-flight or settled call. The zero value is ready
// to use. Safe for concurrent use.
//
// A settled error stays in the slot like any other result: repeat callers
// observe the same failure until someone runs a fresh call.
type Slot[T any] struct {
	mu sync.Mutex
	c  *call[T]
}

// Do returns the slot's memoized result, running fn at most once per
// occupancy. With fresh=true the slot is reoccupied and fn always runs;
// waiters on the previous call are unaffected. The call is installed before
// fn runs, so concurrent callers coalesce onto it.
//
// ctx only bounds the caller's wait; it does not cancel the underlying call.
func (s *Slot[T]) Do(ctx context.Context, fresh bool, fn func() (T, error)) (T, error) {
	s.mu.Lock()
	if !fresh && s.c != nil {
		c := s.c
		s.mu.Unlock()
		return c.wait(ctx)
	}
	c := &call[T]{done: make(chan struct{})}
	s.c = c
	s.mu.Unlock()

	// A panicking fn must still settle the call, or waiters would block
	// until their contexts expire. The panic propagates to this caller;
	// everyone else observes it as a settled error.
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("flight: call panicked: %v", r)
			close(c.done)
			panic(r)
		}
	}()

	c.val, c.err = fn()
	close(c.done)
	return c.val, c.err
}

// Occupied reports whether a call, pending or settled, holds the slot.
func (s *Slot[T]) Occupied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}
