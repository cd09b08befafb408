// Package accept implements the acceptor: the connection-count
// ceiling check, per-connection cancellation-token wiring, and the
// Pause/Resume/Teardown lifecycle.
//
// Uses aqwari.net/retry for accept-error backoff; each accepted
// connection gets its own conn.Conn under a sched.CancelToken tree.
package accept

import (
	"net"
	"sync"
	"time"

	"aqwari.net/retry"
	"go.uber.org/zap"

	"libp9.dev/w9p/conn"
	"libp9.dev/w9p/internal/util"
	"libp9.dev/w9p/sched"
	"libp9.dev/w9p/share"
)

// MaxConnections mirrors share.MaxConnections, the fixed ceiling spec
// §4.3 describes.
const MaxConnections = share.MaxConnections

// Acceptor owns a listener and spawns a Conn per accepted connection,
// bounded by MaxConnections and torn down as a group via a
// sched.CancelToken tree.
type Acceptor struct {
	listener net.Listener
	shares   *share.List
	log      *zap.SugaredLogger

	serverUID  uint32
	serverRoot bool

	mu       sync.Mutex
	token    *sched.CancelToken
	wg       sync.WaitGroup
	nconns   int
	running  bool
}

// New returns an Acceptor over l.
func New(l net.Listener, shares *share.List, serverUID uint32, serverRoot bool, log *zap.SugaredLogger) *Acceptor {
	return &Acceptor{
		listener:   l,
		shares:     shares,
		log:        log,
		serverUID:  serverUID,
		serverRoot: serverRoot,
		token:      sched.NewCancelRoot(),
	}
}

// Resume launches a fresh run task, replacing any cancelled token from
// a prior Pause.
func (a *Acceptor) Resume() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.token = sched.NewCancelRoot()
	a.running = true
	a.mu.Unlock()

	go a.run()
}

func (a *Acceptor) run() {
	backoff := retry.Exponential(5*time.Millisecond, 2, time.Second)
	for {
		conn_, err := a.listener.Accept()
		if err != nil {
			select {
			case <-a.token.Done():
				return
			default:
			}
			if util.IsTempErr(err) {
				time.Sleep(backoff.Next())
				continue
			}
			a.log.Errorw("acceptor: fatal accept error", "error", err)
			return
		}
		backoff.Reset()

		a.mu.Lock()
		if a.nconns >= MaxConnections {
			a.mu.Unlock()
			conn_.Close()
			continue
		}
		a.nconns++
		token := a.token
		a.mu.Unlock()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer func() {
				a.mu.Lock()
				a.nconns--
				a.mu.Unlock()
			}()
			c := conn.New(conn_, a.shares, a.serverUID, a.serverRoot, token, a.log)
			c.Serve()
		}()
	}
}

// Pause cancels the acceptor token and waits for every in-flight
// connection to exit. It does not itself interrupt a blocked Accept
// call on the listener; Teardown (closing the listener) is what
// actually unblocks the run goroutine if no connection is currently
// being accepted.
func (a *Acceptor) Pause() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	token := a.token
	a.mu.Unlock()

	token.Cancel()
	a.wg.Wait()
}

// Teardown drops the listener.
func (a *Acceptor) Teardown() error {
	return a.listener.Close()
}

// HasConnections reports whether any non-primary connection is active.
func (a *Acceptor) HasConnections() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nconns > 0
}
