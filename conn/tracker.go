// Package conn implements the per-connection receive loop, per-request
// task spawning, the request tracker used by flush, and the dispatcher
// that routes each parsed frame to its handler.
package conn

import (
	"sync"

	"libp9.dev/w9p/sched"
)

// A RequestTracker records one in-flight request's tag, giving flush a
// way to find it and wait for its completion event: flush scans the
// request list for oldtag, and if found and not already cancelled,
// marks it cancelled, takes ownership of the tracker, and awaits its
// event before sending Rflush.
type RequestTracker struct {
	Tag uint16

	mu        sync.Mutex
	cancelled bool
	done      *sched.Event
}

func newRequestTracker(tag uint16) *RequestTracker {
	return &RequestTracker{Tag: tag, done: sched.NewEvent()}
}

// MarkDone signals the tracker's completion event, run once by the
// handler goroutine after the response has been handed to the send
// lock.
func (rt *RequestTracker) MarkDone() {
	rt.done.Set()
}

// Wait blocks until MarkDone has been called.
func (rt *RequestTracker) Wait() {
	rt.done.Wait()
}

// tryCancel marks the tracker cancelled exactly once, reporting whether
// this call was the one that did it (flush takes ownership only on a
// successful transition).
func (rt *RequestTracker) tryCancel() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancelled {
		return false
	}
	rt.cancelled = true
	return true
}

// requestList is the per-connection set of in-flight RequestTrackers
// keyed by tag.
type requestList struct {
	mu sync.Mutex
	m  map[uint16]*RequestTracker
}

func newRequestList() *requestList {
	return &requestList{m: make(map[uint16]*RequestTracker)}
}

func (l *requestList) register(tag uint16) *RequestTracker {
	rt := newRequestTracker(tag)
	l.mu.Lock()
	l.m[tag] = rt
	l.mu.Unlock()
	return rt
}

func (l *requestList) unregister(tag uint16) {
	l.mu.Lock()
	delete(l.m, tag)
	l.mu.Unlock()
}

// find returns the tracker for oldtag, or nil if not found — treated
// the same as "already completed": flush returns immediately, no wait.
func (l *requestList) find(oldtag uint16) *RequestTracker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m[oldtag]
}

// flush implements the oldtag scan: if the tracker exists and this call
// wins the cancel race, it waits for the request to complete before
// returning, so the caller sends Rflush only after the original
// response. If the tag is not found, or a concurrent flush already
// cancelled it, flush returns immediately without waiting.
func (l *requestList) flush(oldtag uint16) {
	rt := l.find(oldtag)
	if rt == nil {
		return
	}
	if !rt.tryCancel() {
		return
	}
	rt.Wait()
}
