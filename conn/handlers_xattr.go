package conn

import (
	"golang.org/x/sys/unix"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/wire"
)

func (c *Conn) tXattrwalk(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	newfidNum := r.Uint32()
	name := r.String()
	if r.Err() != nil {
		return nil, wire.Rxattrwalk, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rxattrwalk, err
	}
	xr, err := fid.NewXattrRead(f.Root(), f.Path(), name, f.Qid())
	if err != nil {
		return nil, wire.Rxattrwalk, err
	}
	if err := c.fids.Insert(newfidNum, xr); err != nil {
		return nil, wire.Rxattrwalk, unix.EBADF
	}
	body := make([]byte, 8)
	wire.NewWriter(body).PutUint64(xr.Size())
	return body, wire.Rxattrwalk, nil
}

func (c *Conn) tXattrcreate(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	name := r.String()
	size := r.Uint64()
	flags := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rxattrcreate, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rxattrcreate, err
	}
	if f.Root().ReadOnly() {
		return nil, wire.Rxattrcreate, unix.EROFS
	}
	xw := fid.NewXattrWrite(f.Root(), f.Path(), name, size, int(flags), f.Qid())
	c.fids.Replace(fidNum, xw)
	return nil, wire.Rxattrcreate, nil
}
