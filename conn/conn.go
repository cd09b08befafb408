package conn

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/sched"
	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

const (
	// MinMsize is the smallest negotiated frame size the server will
	// accept.
	MinMsize = 4096
	// MaxMsize is the negotiated frame size ceiling.
	MaxMsize = 256 * 1024
	// requestFairness bounds concurrent in-flight requests per
	// connection.
	requestFairness = 32
	// stackBufSize names an inline response buffer size; nothing uses
	// it, and sendResponse allocates every response at its exact size.
	stackBufSize = 256
)

// Conn is one connection's protocol engine: the receive loop, the
// fairness-bounded per-request task spawner, the send lock, and the
// fid table and negotiated state the dispatcher reads and mutates.
type Conn struct {
	rw  net.Conn
	log *zap.SugaredLogger

	shares    *share.List
	serverUID uint32
	serverRoot bool

	msize         uint32
	versionOK     bool
	versionString string

	fids *fid.Table
	root *share.Root

	reqs     *requestList
	sem      *sched.Semaphore
	sendLock *sched.Lock
	token    *sched.CancelToken

	closeOnce sync.Once
}

// New returns a Conn ready to Serve rw. parentToken is the acceptor's
// cancellation token; the connection's own token is registered as its
// child so that cancelling the acceptor tears down every connection.
func New(rw net.Conn, shares *share.List, serverUID uint32, serverRoot bool, parentToken *sched.CancelToken, log *zap.SugaredLogger) *Conn {
	return &Conn{
		rw:         rw,
		log:        log,
		shares:     shares,
		serverUID:  serverUID,
		serverRoot: serverRoot,
		msize:      MaxMsize,
		fids:       fid.NewTable(),
		reqs:       newRequestList(),
		sem:        sched.NewSemaphore(requestFairness),
		sendLock:   sched.NewLock(),
		token:      parentToken.NewChild(),
	}
}

// Serve runs the receive loop until EOF, a fatal protocol error, or the
// connection's CancelToken is cancelled, then tears the connection down:
// cancels the token, drains in-flight request tasks by re-acquiring the
// full fairness semaphore, clunks every surviving fid, and closes the
// transport (spec §4.4: "Teardown: on exit, cancel the connection token
// and acquire(32) on the semaphore to drain in-flight tasks before
// releasing resources").
//
// A blocked c.rw.Read has no way to observe c.token.Done() on its own,
// so a watcher goroutine closes the transport the moment the token is
// cancelled (by a parent acceptor token tearing down, or by a future
// direct cancel of this connection); that's what actually unblocks
// fill() so Acceptor.Pause's wg.Wait() can return instead of hanging on
// an otherwise-idle connection (spec §4.3: "cancelling the acceptor
// token eventually drains all connections").
func (c *Conn) Serve() {
	defer c.teardown()

	go func() {
		<-c.token.Done()
		c.closeRW()
	}()

	buf := make([]byte, MaxMsize)
	var have int

	for {
		n, err := c.fill(buf, have)
		if err != nil {
			return
		}
		have = n

		for have >= wire.HeaderLen {
			size := binary.LittleEndian.Uint32(buf[0:4])
			if size < wire.HeaderLen || size > uint32(c.msize) {
				c.log.Errorw("protocol fault: frame size out of bounds", "size", size, "msize", c.msize)
				return
			}
			if uint32(have) < size {
				break
			}

			frame := make([]byte, size)
			copy(frame, buf[:size])

			remaining := have - int(size)
			copy(buf, buf[size:have])
			have = remaining

			c.spawnRequest(frame)
		}

		if have > 0 {
			copy(buf, buf[:have])
		}
	}
}

// fill reads until at least a full frame or the 4-byte size prefix is
// available, appending to any bytes already buffered at buf[:have].
func (c *Conn) fill(buf []byte, have int) (int, error) {
	if have >= wire.HeaderLen {
		size := binary.LittleEndian.Uint32(buf[0:4])
		if int(size) <= have {
			return have, nil
		}
	}
	n, err := c.rw.Read(buf[have:])
	if n == 0 && err != nil {
		if err == io.EOF {
			return have, err
		}
		return have, err
	}
	return have + n, nil
}

// spawnRequest acquires a fairness unit and runs the request on its own
// goroutine, matching spec §4.4's "Per-request task": the goroutine
// itself is the task; blocking inside it yields the OS thread back to
// the Go runtime the same way the spec's scheduler yields on explicit
// suspension.
func (c *Conn) spawnRequest(frame []byte) {
	if err := c.sem.Acquire(c.token.Context(), 1); err != nil {
		return
	}
	go func() {
		defer c.sem.Release(1)
		c.processMessage(frame)
	}()
}

// processMessage parses the header, dispatches, and writes exactly one
// framed response, converting a nonzero handler error into an Rlerror
// (spec §4.4 "Process_message").
func (c *Conn) processMessage(frame []byte) {
	r := wire.NewReader(frame[wire.HeaderLen:])
	mtype := frame[4]
	tag := binary.LittleEndian.Uint16(frame[5:7])

	if mtype == wire.Tflush {
		c.handleFlush(r, tag)
		return
	}

	rt := c.reqs.register(tag)
	defer func() {
		rt.MarkDone()
		c.reqs.unregister(tag)
	}()

	resp, rtype, err := c.dispatch(c.token.Context(), mtype, tag, r)
	c.sendResponse(tag, rtype, resp, err)
}

// sendResponse writes one framed response under the connection send
// lock. A non-nil err is rewritten to Rlerror per spec §4.4.
func (c *Conn) sendResponse(tag uint16, rtype uint8, body []byte, err error) {
	g := c.sendLock.Lock()
	defer g.Unlock()

	if err != nil {
		errno := errnoOf(err)
		buf := make([]byte, wire.HeaderLen+4)
		w := wire.NewWriter(buf)
		w.WriteHeaderPlaceholder()
		w.PutUint32(uint32(errno))
		w.Backpatch(wire.Rlerror, tag)
		c.rw.Write(w.Bytes())
		return
	}

	buf := make([]byte, wire.HeaderLen+len(body))
	w := wire.NewWriter(buf)
	w.WriteHeaderPlaceholder()
	w.PutBytes(body)
	w.Backpatch(rtype, tag)
	c.rw.Write(w.Bytes())
}

// handleFlush implements spec §4.5's flush(oldtag): it never takes the
// fid table lock, and it waits for the original tag's completion event
// (if the tracker existed and this call won the cancel race) before
// sending Rflush, guaranteeing the ordering spec §4.4/§8 property 4
// requires.
func (c *Conn) handleFlush(r *wire.Reader, tag uint16) {
	oldtag := r.Uint16()
	c.reqs.flush(oldtag)

	g := c.sendLock.Lock()
	defer g.Unlock()
	buf := make([]byte, wire.HeaderLen)
	w := wire.NewWriter(buf)
	w.WriteHeaderPlaceholder()
	w.Backpatch(wire.Rflush, tag)
	c.rw.Write(w.Bytes())
}

// closeRW closes the transport exactly once, whether triggered by the
// token watcher goroutine in Serve or by teardown itself.
func (c *Conn) closeRW() error {
	var err error
	c.closeOnce.Do(func() { err = c.rw.Close() })
	return err
}

func (c *Conn) teardown() {
	c.token.Cancel()
	c.sem.Acquire(context.Background(), requestFairness)

	var err error
	c.fids.Range(func(num uint32, f fid.Fid) {
		err = multierr.Append(err, f.Clunk())
	})
	err = multierr.Append(err, c.closeRW())

	if err != nil {
		c.log.Debugw("conn: teardown cleanup errors", "error", err)
	}
}
