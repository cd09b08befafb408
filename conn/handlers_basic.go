package conn

import (
	"context"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

func (c *Conn) tVersion(r *wire.Reader) ([]byte, uint8, error) {
	reqMsize := r.Uint32()
	reqVersion := r.String()
	if r.Err() != nil {
		return nil, wire.Rversion, unix.EINVAL
	}

	if reqVersion != "9P2000.L" && reqVersion != "9P2000.W" {
		return nil, wire.Rversion, unix.ENOTSUP
	}
	if reqMsize < MinMsize {
		return nil, wire.Rversion, unix.ENOTSUP
	}

	if c.versionOK {
		// Renegotiation is not enabled; a second Tversion is only
		// accepted if it repeats the already-negotiated parameters.
		if reqMsize != uint32(c.msize) || reqVersion != c.versionString {
			return nil, wire.Rversion, unix.ENOTSUP
		}
	}

	negotiated := reqMsize
	if negotiated > MaxMsize {
		negotiated = MaxMsize
	}
	c.msize = negotiated
	c.versionString = reqVersion
	c.versionOK = true

	body := make([]byte, 4+2+len(reqVersion))
	w := wire.NewWriter(body)
	w.PutUint32(negotiated)
	w.PutString(reqVersion)
	return w.Bytes(), wire.Rversion, nil
}

func (c *Conn) tAttach(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	_ = r.Uint32() // afid, always ignored: attach never goes through a separate auth exchange
	_ = r.String() // uname, ignored
	aname := r.String()
	uid := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rattach, unix.EINVAL
	}

	root, err := share.MakeRoot(c.shares, aname, uid, c.serverUID, c.serverRoot)
	if err != nil {
		return nil, wire.Rattach, err
	}

	var st unix.Stat_t
	if err := unix.Fstat(root.DirFd(), &st); err != nil {
		return nil, wire.Rattach, err
	}

	f := fid.NewRootFile(root, root.Qid(), st.Dev)
	if err := c.fids.Insert(fidNum, f); err != nil {
		return nil, wire.Rattach, unix.EBADF
	}
	c.root = root

	body := make([]byte, wire.QidLen)
	w := wire.NewWriter(body)
	w.PutQid(f.Qid())
	return w.Bytes(), wire.Rattach, nil
}

func (c *Conn) tWalk(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	newfidNum := r.Uint32()
	nwname := r.Uint16()
	if r.Err() != nil {
		return nil, wire.Rwalk, unix.EINVAL
	}
	names := make([]string, nwname)
	for i := range names {
		names[i] = r.PathElem()
	}
	if r.Err() != nil {
		return nil, wire.Rwalk, unix.EINVAL
	}

	start, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rwalk, unix.EBADF
	}

	cur := start.Clone()
	qids := make([]wire.Qid, 0, len(names))
	for _, name := range names {
		next, err := cur.Walk(ctx, name)
		if err != nil {
			if len(qids) == 0 {
				return nil, wire.Rwalk, err
			}
			break
		}
		cur = next
		qids = append(qids, cur.Qid())
	}

	if len(qids) == len(names) {
		if fidNum == newfidNum {
			c.fids.Replace(newfidNum, cur)
		} else if err := c.fids.Insert(newfidNum, cur); err != nil {
			return nil, wire.Rwalk, unix.EBADF
		}
	}

	body := make([]byte, 2+wire.QidLen*len(qids))
	w := wire.NewWriter(body)
	w.PutUint16(uint16(len(qids)))
	for _, q := range qids {
		w.PutQid(q)
	}
	return w.Bytes(), wire.Rwalk, nil
}

func openFlags(loFlags uint32) int {
	m := map[uint32]int{
		wire.LOReadOnly: unix.O_RDONLY, wire.LOWriteOnly: unix.O_WRONLY, wire.LOReadWrite: unix.O_RDWR,
	}
	out := m[loFlags&0o3]
	if loFlags&wire.LOCreate != 0 {
		out |= unix.O_CREAT
	}
	if loFlags&wire.LOExclusive != 0 {
		out |= unix.O_EXCL
	}
	if loFlags&wire.LOTruncate != 0 {
		out |= unix.O_TRUNC
	}
	if loFlags&wire.LOAppend != 0 {
		out |= unix.O_APPEND
	}
	if loFlags&wire.LONonBlock != 0 {
		out |= unix.O_NONBLOCK
	}
	if loFlags&wire.LODSync != 0 {
		out |= unix.O_DSYNC
	}
	if loFlags&wire.LODirect != 0 {
		out |= unix.O_DIRECT
	}
	if loFlags&wire.LODirectory != 0 {
		out |= unix.O_DIRECTORY
	}
	if loFlags&wire.LONoFollow != 0 {
		out |= unix.O_NOFOLLOW
	}
	if loFlags&wire.LOCloseOnExec != 0 {
		out |= unix.O_CLOEXEC
	}
	if loFlags&wire.LOSync != 0 {
		out |= unix.O_SYNC
	}
	return out
}

func (c *Conn) tLopen(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	flags := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rlopen, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rlopen, unix.EBADF
	}
	qid, err := f.Open(ctx, uint32(openFlags(flags)))
	if err != nil {
		return nil, wire.Rlopen, err
	}
	body := make([]byte, wire.QidLen+4)
	w := wire.NewWriter(body)
	w.PutQid(qid)
	w.PutUint32(0) // iounit: no server limit
	return w.Bytes(), wire.Rlopen, nil
}

func (c *Conn) tLcreate(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	name := r.PathElem()
	flags := r.Uint32()
	mode := r.Uint32()
	gid := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rlcreate, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rlcreate, unix.EBADF
	}
	qid, err := f.Create(ctx, name, uint32(openFlags(flags)), mode, gid)
	if err != nil {
		return nil, wire.Rlcreate, err
	}
	body := make([]byte, wire.QidLen+4)
	w := wire.NewWriter(body)
	w.PutQid(qid)
	w.PutUint32(0)
	return w.Bytes(), wire.Rlcreate, nil
}

func (c *Conn) tClunk(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rclunk, unix.EINVAL
	}
	f, ok := c.fids.Delete(fidNum)
	if !ok {
		return nil, wire.Rclunk, unix.EBADF
	}
	f.Clunk()
	return nil, wire.Rclunk, nil
}

func (c *Conn) tRemove(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rremove, unix.EINVAL
	}
	f, ok := c.fids.Delete(fidNum)
	if !ok {
		return nil, wire.Rremove, unix.EBADF
	}
	if err := f.Remove(ctx); err != nil {
		return nil, wire.Rremove, err
	}
	return nil, wire.Rremove, nil
}

func (c *Conn) tRead(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	offset := r.Uint64()
	count := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rread, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rread, unix.EBADF
	}
	buf := make([]byte, 4+count)
	n, err := f.Read(ctx, offset, buf[4:4+count])
	if err != nil {
		return nil, wire.Rread, err
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))
	return buf[:4+n], wire.Rread, nil
}

func (c *Conn) tWrite(ctx context.Context, r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	offset := r.Uint64()
	count := r.Uint32()
	data := r.Bytes(int(count))
	if r.Err() != nil {
		return nil, wire.Rwrite, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rwrite, unix.EBADF
	}
	n, err := f.Write(ctx, offset, data)
	if err != nil {
		return nil, wire.Rwrite, err
	}
	body := make([]byte, 4)
	w := wire.NewWriter(body)
	w.PutUint32(uint32(n))
	return w.Bytes(), wire.Rwrite, nil
}
