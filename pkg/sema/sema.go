// Package sema provides the counting semaphores the workshop protocol is
// written in.
//
// A Semaphore behaves like a POSIX unnamed semaphore: Post never blocks and
// may be called any number of times, Wait blocks until a permit is available.
// Unlike sem_wait, Wait also returns when its context is cancelled, so a
// supervisor can unblock every unit once one of them has failed.
package sema

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// capacity is the weight of the underlying semaphore. The semaphore starts
// with capacity-initial weight already held, so the number of permits
// available is capacity minus the weight held.
const capacity = math.MaxInt64

// OpError reports a failed wait or post on a named semaphore.
type OpError struct {
	Op   string // "wait" or "post"
	Name string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("sem_%s(%s) failed: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Semaphore is a named counting semaphore.
type Semaphore struct {
	name  string
	w     *semaphore.Weighted
	posts atomic.Int64
	waits atomic.Int64
}

// New creates a semaphore holding initial permits. initial must be >= 0.
func New(name string, initial int64) (*Semaphore, error) {
	if initial < 0 {
		return nil, fmt.Errorf("sem_init(%s): negative initial value %d", name, initial)
	}
	w := semaphore.NewWeighted(capacity)
	if !w.TryAcquire(capacity - initial) {
		return nil, fmt.Errorf("sem_init(%s): cannot reserve initial value %d", name, initial)
	}
	return &Semaphore{name: name, w: w}, nil
}

// Name returns the semaphore's name.
func (s *Semaphore) Name() string { return s.name }

// Wait takes one permit, blocking until one is posted or ctx is done.
func (s *Semaphore) Wait(ctx context.Context) error {
	if err := s.w.Acquire(ctx, 1); err != nil {
		return &OpError{Op: "wait", Name: s.name, Err: err}
	}
	s.waits.Add(1)
	return nil
}

// Post adds one permit and wakes a waiter if there is one.
func (s *Semaphore) Post() error { return s.PostN(1) }

// PostN adds n permits, one at a time.
func (s *Semaphore) PostN(n int) (err error) {
	// Weighted panics when released past its capacity.
	defer func() {
		if r := recover(); r != nil {
			err = &OpError{Op: "post", Name: s.name, Err: fmt.Errorf("%v", r)}
		}
	}()
	for i := 0; i < n; i++ {
		s.w.Release(1)
		s.posts.Add(1)
	}
	return nil
}

// Posts returns how many permits have been posted since creation.
func (s *Semaphore) Posts() int64 { return s.posts.Load() }

// Waits returns how many permits have been taken since creation.
func (s *Semaphore) Waits() int64 { return s.waits.Load() }
