package sched

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// A Semaphore is a counting, FIFO semaphore: Acquire(n) suspends until
// the count is at least n, and Release(n) wakes waiters in the order
// they enqueued while credit remains. It is the primitive behind the
// per-connection fairness bound (32 requests in flight). The acceptor's
// connection-count ceiling does not use it; the acceptor keeps a plain
// counter under its own mutex.
//
// Built on golang.org/x/sync/semaphore.Weighted, whose internal waiter
// list provides the FIFO wakeup order; Semaphore wraps its
// context-taking Acquire, Release and non-blocking TryAcquire.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a Semaphore with the given maximum count.
func NewSemaphore(max int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(max)}
}

// Acquire blocks until n units are available, or until ctx is done, in
// which case it returns ctx.Err().
func (s *Semaphore) Acquire(ctx context.Context, n int64) error {
	return s.w.Acquire(ctx, n)
}

// Release returns n units to the semaphore, waking the longest-waiting
// blocked Acquire call(s) that can now proceed.
func (s *Semaphore) Release(n int64) {
	s.w.Release(n)
}

// TryAcquire acquires n units without blocking. It reports whether the
// acquisition succeeded.
func (s *Semaphore) TryAcquire(n int64) bool {
	return s.w.TryAcquire(n)
}
