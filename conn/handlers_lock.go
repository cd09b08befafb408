package conn

import (
	"golang.org/x/sys/unix"

	"libp9.dev/w9p/wire"
)

// Advisory byte-range lock status codes, echoed verbatim since this
// server never actually contends locks between clients (spec §4.5:
// "lock / getlock: always reported Success / Unlocked respectively;
// the body echoes start/length/proc_id/client_id").
const (
	lockSuccess  = 0
	lockUnlocked = 2
)

func (c *Conn) tLock(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	_ = r.Uint8()  // type
	_ = r.Uint32() // flags
	_ = r.Uint64() // start
	_ = r.Uint64() // length
	_ = r.Uint32() // proc_id
	_ = r.String() // client_id
	if r.Err() != nil {
		return nil, wire.Rlock, unix.EINVAL
	}
	if _, err := c.fids.Lookup(fidNum); err != nil {
		return nil, wire.Rlock, unix.EBADF
	}
	return []byte{lockSuccess}, wire.Rlock, nil
}

func (c *Conn) tGetlock(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	_ = r.Uint8() // type, ignored: always reported unlocked
	start := r.Uint64()
	length := r.Uint64()
	procID := r.Uint32()
	clientID := r.String()
	if r.Err() != nil {
		return nil, wire.Rgetlock, unix.EINVAL
	}
	if _, err := c.fids.Lookup(fidNum); err != nil {
		return nil, wire.Rgetlock, unix.EBADF
	}
	body := make([]byte, 1+8+8+4+2+len(clientID))
	w := wire.NewWriter(body)
	w.PutUint8(lockUnlocked)
	w.PutUint64(start)
	w.PutUint64(length)
	w.PutUint32(procID)
	w.PutString(clientID)
	return w.Bytes(), wire.Rgetlock, nil
}
