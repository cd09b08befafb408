// Package sched provides the async primitives the protocol engine uses
// to coordinate in-flight requests: a sticky Event latch, a FIFO
// counting Semaphore, a FIFO mutual-exclusion Lock that hands ownership
// directly to the next waiter, and a CancelToken tree for tearing down
// connections.
//
// The spec this engine implements describes a single process-wide
// cooperative scheduler with explicit suspension points, modeled on a
// stackless-coroutine runtime. Its own design notes sanction an
// alternative rendering: "a thread-per-connection implementation is an
// acceptable alternative if the per-request semaphore bound is enforced
// and the handler body does not expect an ambient single-threaded
// scope." This package takes that alternative, because Go's goroutines
// already are the cooperative, suspend-at-explicit-points scheduler the
// spec describes — a goroutine that blocks on I/O or a channel yields
// the OS thread back to the runtime exactly the way the spec's "declare
// blocked, release queue ownership" handoff does. What the spec still
// requires on top of that are the ordering and fairness guarantees of
// its primitives (FIFO wakeup, ownership transfer on Lock release, a
// cancellation tree that is not keyed on context.Context deadlines but
// on an explicit Cancel call), which is what the types in this package
// provide. Semaphore.Release wakes as many queued waiters, in FIFO
// order, as the returned credit covers; it does not stop after one
// waiter per call.
package sched
