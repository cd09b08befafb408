package conn_test

import (
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"libp9.dev/w9p/accept"
	"libp9.dev/w9p/internal/netutil"
	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

func openDir(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
}

// rawClient is a minimal, test-only 9P2000.L/.W client: it knows
// nothing about fid lifecycle or retries, just how to frame a request
// and read back exactly one response. Grounded on the teacher's own
// server_test.go, which drives the wire protocol directly with a
// similar hand-rolled client rather than importing a full client
// library into the test.
type rawClient struct {
	t    *testing.T
	conn net.Conn
}

func (c *rawClient) send(mtype uint8, tag uint16, body []byte) {
	buf := make([]byte, wire.HeaderLen+len(body))
	w := wire.NewWriter(buf)
	w.WriteHeaderPlaceholder()
	w.PutBytes(body)
	w.Backpatch(mtype, tag)
	_, err := c.conn.Write(w.Bytes())
	require.NoError(c.t, err)
}

func (c *rawClient) recv() (mtype uint8, tag uint16, body []byte) {
	hdr := make([]byte, wire.HeaderLen)
	_, err := readFull(c.conn, hdr)
	require.NoError(c.t, err)
	size := binary.LittleEndian.Uint32(hdr[0:4])
	mtype = hdr[4]
	tag = binary.LittleEndian.Uint16(hdr[5:7])
	body = make([]byte, size-wire.HeaderLen)
	_, err = readFull(c.conn, body)
	require.NoError(c.t, err)
	return mtype, tag, body
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func newTestServer(t *testing.T, shareName, dir string) (*netutil.PipeListener, *accept.Acceptor) {
	t.Helper()
	shares := share.NewList()
	srv := &netutil.PipeListener{}

	require.NoError(t, addShare(shares, shareName, dir))

	a := accept.New(srv, shares, uint32(os.Getuid()), os.Getuid() == 0, zap.NewNop().Sugar())
	a.Resume()
	t.Cleanup(func() {
		a.Pause()
		a.Teardown()
	})
	return srv, a
}

func addShare(list *share.List, name, dir string) error {
	fd, err := openDir(dir)
	if err != nil {
		return err
	}
	qid := wire.NewQid(wire.QTDir, 0, 1)
	return list.Add(&share.Share{Name: name, Path: dir, DirFd: fd, Qid: qid})
}

func attachBody(fidNum, afid uint32, uname, aname string, uid uint32) []byte {
	size := 4 + 4 + 2 + len(uname) + 2 + len(aname) + 4
	body := make([]byte, size)
	w := wire.NewWriter(body)
	w.PutUint32(fidNum)
	w.PutUint32(afid)
	w.PutString(uname)
	w.PutString(aname)
	w.PutUint32(uid)
	return w.Bytes()
}

func dial(t *testing.T, l *netutil.PipeListener) *rawClient {
	t.Helper()
	c, err := l.Dial()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return &rawClient{t: t, conn: c}
}

// TestVersionAttachWalkLopenWriteRead exercises scenario E from the
// spec's end-to-end list: lcreate, write, clunk, then a fresh walk +
// lopen of the same path reads back the written bytes.
func TestVersionAttachWalkLopenWriteRead(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestServer(t, "public", dir)
	c := dial(t, l)

	// Tversion
	body := make([]byte, 4+2+len("9P2000.W"))
	w := wire.NewWriter(body)
	w.PutUint32(64 * 1024)
	w.PutString("9P2000.W")
	c.send(wire.Tversion, 0xFFFF, w.Bytes())
	mtype, _, resp := c.recv()
	require.EqualValues(t, wire.Rversion, mtype)
	r := wire.NewReader(resp)
	require.EqualValues(t, 64*1024, r.Uint32())
	require.Equal(t, "9P2000.W", r.String())

	// Tattach fid=1
	c.send(wire.Tattach, 1, attachBody(1, 0xFFFFFFFF, "", "public", uint32(os.Getuid())))
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rattach, mtype)

	// Twalk fid=1 -> newfid=2, names=["greeting.txt"]
	body = make([]byte, 4+4+2+2+len("greeting.txt"))
	w = wire.NewWriter(body)
	w.PutUint32(1)
	w.PutUint32(2)
	w.PutUint16(0) // walking zero names just clones fid 1 into fid 2
	c.send(wire.Twalk, 2, w.Bytes())
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rwalk, mtype)

	// Tlcreate fid=2 name=greeting.txt flags=O_WRONLY|O_CREAT mode=0644
	name := "greeting.txt"
	body = make([]byte, 4+2+len(name)+4+4+4)
	w = wire.NewWriter(body)
	w.PutUint32(2)
	w.PutString(name)
	w.PutUint32(wire.LOWriteOnly | wire.LOCreate)
	w.PutUint32(0o644)
	w.PutUint32(uint32(os.Getgid()))
	c.send(wire.Tlcreate, 3, w.Bytes())
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rlcreate, mtype)

	// Twrite fid=2 offset=0 "hi"
	data := []byte("hi")
	body = make([]byte, 4+8+4+len(data))
	w = wire.NewWriter(body)
	w.PutUint32(2)
	w.PutUint64(0)
	w.PutUint32(uint32(len(data)))
	w.PutBytes(data)
	c.send(wire.Twrite, 4, w.Bytes())
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rwrite, mtype)
	require.EqualValues(t, len(data), binary.LittleEndian.Uint32(resp))

	// Tclunk fid=2
	body = make([]byte, 4)
	wire.NewWriter(body).PutUint32(2)
	c.send(wire.Tclunk, 5, body)
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rclunk, mtype)

	// Fresh walk + lopen of the same path, verify the written bytes.
	body = make([]byte, 4+4+2+2+len(name))
	w = wire.NewWriter(body)
	w.PutUint32(1)
	w.PutUint32(6)
	w.PutUint16(1)
	w.PutString(name)
	c.send(wire.Twalk, 6, w.Bytes())
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rwalk, mtype)

	body = make([]byte, 4+4)
	w = wire.NewWriter(body)
	w.PutUint32(6)
	w.PutUint32(wire.LOReadOnly)
	c.send(wire.Tlopen, 7, w.Bytes())
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rlopen, mtype)

	body = make([]byte, 4+8+4)
	w = wire.NewWriter(body)
	w.PutUint32(6)
	w.PutUint64(0)
	w.PutUint32(4)
	c.send(wire.Tread, 8, w.Bytes())
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rread, mtype)
	r = wire.NewReader(resp)
	n := r.Uint32()
	require.EqualValues(t, len(data), n)
	require.Equal(t, data, r.Bytes(int(n)))
}

// TestReadOnlyShareRejectsMkdir covers spec §8 property 5: mutating
// operations against a read-only root fail with EROFS.
func TestReadOnlyShareRejectsMkdir(t *testing.T) {
	dir := t.TempDir()
	shares := share.NewList()
	fd, err := openDir(dir)
	require.NoError(t, err)
	require.NoError(t, shares.Add(&share.Share{
		Name: "ro", Path: dir, DirFd: fd, ReadOnly: true,
		Qid: wire.NewQid(wire.QTDir, 0, 1),
	}))

	l := &netutil.PipeListener{}
	a := accept.New(l, shares, uint32(os.Getuid()), os.Getuid() == 0, zap.NewNop().Sugar())
	a.Resume()
	t.Cleanup(func() { a.Pause(); a.Teardown() })

	c := dial(t, l)

	body := make([]byte, 4+2+len("9P2000.L"))
	w := wire.NewWriter(body)
	w.PutUint32(8192)
	w.PutString("9P2000.L")
	c.send(wire.Tversion, 0xFFFF, w.Bytes())
	c.recv()

	c.send(wire.Tattach, 1, attachBody(1, 0xFFFFFFFF, "", "ro", uint32(os.Getuid())))
	c.recv()

	body = make([]byte, 4+2+len("sub")+4+4)
	w = wire.NewWriter(body)
	w.PutUint32(1)
	w.PutString("sub")
	w.PutUint32(0o755)
	w.PutUint32(uint32(os.Getgid()))
	c.send(wire.Tmkdir, 2, w.Bytes())
	mtype, _, resp := c.recv()
	require.EqualValues(t, wire.Rlerror, mtype)
	require.Len(t, resp, 4)
}

// TestPauseDrainsIdleConnection covers the graceful-shutdown path
// cmd/w9pd's SIGTERM handler relies on: Acceptor.Pause must return even
// while a client is still attached and otherwise idle (no read error of
// its own to exit Conn.Serve's receive loop), since that is the normal
// steady state of a mounted filesystem. The client socket is
// deliberately left open for the whole test (no t.Cleanup on it) so
// Pause cannot be rescued by a client-initiated EOF racing ahead of it.
func TestPauseDrainsIdleConnection(t *testing.T) {
	dir := t.TempDir()
	shares := share.NewList()
	require.NoError(t, addShare(shares, "public", dir))

	l := &netutil.PipeListener{}
	a := accept.New(l, shares, uint32(os.Getuid()), os.Getuid() == 0, zap.NewNop().Sugar())
	a.Resume()

	rw, err := l.Dial()
	require.NoError(t, err)
	defer rw.Close()
	c := &rawClient{t: t, conn: rw}

	body := make([]byte, 4+2+len("9P2000.L"))
	w := wire.NewWriter(body)
	w.PutUint32(8192)
	w.PutString("9P2000.L")
	c.send(wire.Tversion, 0xFFFF, w.Bytes())
	c.recv()

	require.True(t, a.HasConnections())

	done := make(chan struct{})
	go func() {
		a.Pause()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Acceptor.Pause did not return for a still-connected, idle client")
	}

	require.NoError(t, a.Teardown())
}

// wopenBody encodes a Twopen request body: fid[4] newfid[4] flags[4]
// wflags[4] mode[4] gid[4] attr_mask[8] nwname[2] wname[s]*, matching
// the field order fixed against the original implementation's
// p9data.h/p9defs.h layout.
func wopenBody(fidNum, newFidNum, flags, wflags, mode, gid uint32, attrMask uint64, names ...string) []byte {
	size := 4 + 4 + 4 + 4 + 4 + 4 + 8 + 2
	for _, n := range names {
		size += 2 + len(n)
	}
	body := make([]byte, size)
	w := wire.NewWriter(body)
	w.PutUint32(fidNum)
	w.PutUint32(newFidNum)
	w.PutUint32(flags)
	w.PutUint32(wflags)
	w.PutUint32(mode)
	w.PutUint32(gid)
	w.PutUint64(attrMask)
	w.PutUint16(uint16(len(names)))
	for _, n := range names {
		w.PutString(n)
	}
	return w.Bytes()
}

// TestTwopenCreateThenOpen exercises the fused walk-open-create handler
// end to end: a Twopen that creates a new file under a distinct newfid,
// followed by a second Twopen that opens the same, now-existing file
// under the source fid in place, verifying the Rwopen status, qid,
// and attr tail the wire layout fix produced.
func TestTwopenCreateThenOpen(t *testing.T) {
	dir := t.TempDir()
	l, _ := newTestServer(t, "public", dir)
	c := dial(t, l)

	body := make([]byte, 4+2+len("9P2000.W"))
	w := wire.NewWriter(body)
	w.PutUint32(64 * 1024)
	w.PutString("9P2000.W")
	c.send(wire.Tversion, 0xFFFF, w.Bytes())
	c.recv()

	c.send(wire.Tattach, 1, attachBody(1, 0xFFFFFFFF, "", "public", uint32(os.Getuid())))
	mtype, _, _ := c.recv()
	require.EqualValues(t, wire.Rattach, mtype)

	name := "newfile.txt"
	const attrMask = ^uint64(0)

	// Twopen fid=1 -> newfid=2, create "newfile.txt" for writing.
	c.send(wire.Twopen, 2, wopenBody(1, 2, wire.LOWriteOnly|wire.LOCreate, 0, 0o644, uint32(os.Getgid()), attrMask, name))
	mtype, _, resp := c.recv()
	require.EqualValues(t, wire.Rwopen, mtype)

	r := wire.NewReader(resp)
	status := r.Uint8()
	walked := r.Uint16()
	qid := r.Qid()
	symTarget := r.String()
	iounit := r.Uint32()
	attr := r.AttrTail()
	require.NoError(t, r.Err())
	require.EqualValues(t, wire.WOpenCreated, status)
	require.EqualValues(t, 1, walked)
	require.Equal(t, wire.QTFile, qid.Type())
	require.Empty(t, symTarget)
	require.Zero(t, iounit)
	require.EqualValues(t, 0o644, attr.Mode&0o777)

	// Write through the newly installed fid 2.
	data := []byte("hello wopen")
	body = make([]byte, 4+8+4+len(data))
	w = wire.NewWriter(body)
	w.PutUint32(2)
	w.PutUint64(0)
	w.PutUint32(uint32(len(data)))
	w.PutBytes(data)
	c.send(wire.Twrite, 3, w.Bytes())
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rwrite, mtype)
	require.EqualValues(t, len(data), binary.LittleEndian.Uint32(resp))

	body = make([]byte, 4)
	wire.NewWriter(body).PutUint32(2)
	c.send(wire.Tclunk, 4, body)
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rclunk, mtype)

	// Fresh attach (fid=5), then Twopen fid=5 -> newfid=5 (same number,
	// replace in place) to open the now-existing file read-only.
	c.send(wire.Tattach, 5, attachBody(5, 0xFFFFFFFF, "", "public", uint32(os.Getuid())))
	mtype, _, _ = c.recv()
	require.EqualValues(t, wire.Rattach, mtype)

	c.send(wire.Twopen, 6, wopenBody(5, 5, wire.LOReadOnly, 0, 0, 0, attrMask, name))
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rwopen, mtype)

	r = wire.NewReader(resp)
	status = r.Uint8()
	walked = r.Uint16()
	qid = r.Qid()
	symTarget = r.String()
	_ = r.Uint32()
	_ = r.AttrTail()
	require.NoError(t, r.Err())
	require.EqualValues(t, wire.WOpenOpened, status)
	require.EqualValues(t, 1, walked)
	require.Equal(t, wire.QTFile, qid.Type())
	require.Empty(t, symTarget)

	body = make([]byte, 4+8+4)
	w = wire.NewWriter(body)
	w.PutUint32(5)
	w.PutUint64(0)
	w.PutUint32(uint32(len(data)))
	c.send(wire.Tread, 7, w.Bytes())
	mtype, _, resp = c.recv()
	require.EqualValues(t, wire.Rread, mtype)
	r = wire.NewReader(resp)
	n := r.Uint32()
	require.EqualValues(t, len(data), n)
	require.Equal(t, data, r.Bytes(int(n)))
}

