package sched

import "sync"

// A Lock is a mutual-exclusion primitive with FIFO wakeup where release
// transfers ownership directly to the next waiter: the protected
// invariants can never be observed by a third party between one
// holder's release and the next holder's resumption, because the next
// holder is woken by having its own private channel closed rather than
// by re-contending for a shared mutex.
//
// This backs the per-connection send lock, under which each request
// writes its one framed response. The File fid's shared/exclusive
// guard in package fid is a sync.RWMutex, not a Lock.
type Lock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{}
}

// A Guard represents ownership of a Lock. Its Unlock method must be
// called exactly once to release it.
type Guard struct {
	l *Lock
}

// Lock blocks until the Lock can be acquired, then returns a Guard.
func (l *Lock) Lock() *Guard {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return &Guard{l: l}
	}
	wait := make(chan struct{})
	l.waiters = append(l.waiters, wait)
	l.mu.Unlock()

	<-wait
	return &Guard{l: l}
}

// TryLock attempts to acquire the Lock without blocking.
func (l *Lock) TryLock() (*Guard, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false
	}
	l.held = true
	return &Guard{l: l}, true
}

// Unlock releases the Lock. If another goroutine is waiting, ownership
// transfers directly to it (it is woken with the lock already held on
// its behalf); otherwise the Lock becomes free.
func (g *Guard) Unlock() {
	l := g.l
	l.mu.Lock()
	if len(l.waiters) == 0 {
		l.held = false
		l.mu.Unlock()
		return
	}
	next := l.waiters[0]
	l.waiters = l.waiters[1:]
	l.mu.Unlock()
	close(next)
}
