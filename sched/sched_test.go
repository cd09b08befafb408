package sched_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"libp9.dev/w9p/sched"
)

func TestEventWaitUnblocksOnSet(t *testing.T) {
	e := sched.NewEvent()
	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Set")
	case <-time.After(20 * time.Millisecond):
	}

	e.Set()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
	require.True(t, e.IsSet())
}

func TestEventResetBlocksNewWaiters(t *testing.T) {
	e := sched.NewEvent()
	e.Set()
	e.Wait() // already set, returns immediately

	e.Reset()
	require.False(t, e.IsSet())

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait returned before the post-Reset Set")
	case <-time.After(20 * time.Millisecond):
	}
	e.Set()
	<-done
}

func TestLockFIFOOwnershipTransfer(t *testing.T) {
	l := sched.NewLock()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	g := l.Lock()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			gg := l.Lock()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			gg.Unlock()
		}(i)
		time.Sleep(5 * time.Millisecond) // let each goroutine enqueue in turn
	}
	g.Unlock()
	wg.Wait()

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLockTryLock(t *testing.T) {
	l := sched.NewLock()
	g, ok := l.TryLock()
	require.True(t, ok)

	_, ok = l.TryLock()
	require.False(t, ok)

	g.Unlock()
	g2, ok := l.TryLock()
	require.True(t, ok)
	g2.Unlock()
}

func TestSemaphoreAcquireRelease(t *testing.T) {
	s := sched.NewSemaphore(2)
	require.True(t, s.TryAcquire(2))
	require.False(t, s.TryAcquire(1))
	s.Release(1)
	require.True(t, s.TryAcquire(1))
}

func TestSemaphoreAcquireBlocksUntilRelease(t *testing.T) {
	s := sched.NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background(), 1))

	acquired := make(chan struct{})
	go func() {
		s.Acquire(context.Background(), 1)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned before Release")
	case <-time.After(20 * time.Millisecond):
	}
	s.Release(1)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not unblock after Release")
	}
}

func TestCancelTokenCancelsChildren(t *testing.T) {
	root := sched.NewCancelRoot()
	child := root.NewChild()
	grandchild := child.NewChild()

	require.False(t, child.Cancelled())
	root.Cancel()
	require.True(t, child.Cancelled())
	require.True(t, grandchild.Cancelled())
	require.ErrorIs(t, child.Err(), context.Canceled)
}

func TestCancelTokenNewChildOfCancelledIsCancelled(t *testing.T) {
	root := sched.NewCancelRoot()
	root.Cancel()
	child := root.NewChild()
	require.True(t, child.Cancelled())
}

type fakeCancellable struct{ cancelled bool }

func (f *fakeCancellable) Cancel() { f.cancelled = true }

func TestCancelTokenRegisterHandle(t *testing.T) {
	root := sched.NewCancelRoot()
	h := &fakeCancellable{}
	require.NoError(t, root.Register(h))
	root.Cancel()
	require.True(t, h.cancelled)
}

func TestCancelTokenRegisterOnCancelledFiresImmediately(t *testing.T) {
	root := sched.NewCancelRoot()
	root.Cancel()
	h := &fakeCancellable{}
	err := root.Register(h)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, h.cancelled)
}
