package fid

import (
	"context"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/wire"
)

// XattrRead is the fid installed by xattrwalk: a read-only view over
// either a single named attribute's value or, when name is empty, the
// attribute-name listing. Read requires offset == 0 and fetches the
// full value into the caller's buffer in one call.
type XattrRead struct {
	Unsupported

	root Root
	path string
	name string
	qid  wire.Qid
	size uint64
}

var _ Fid = (*XattrRead)(nil)

// NewXattrRead stats the attribute (or the listing, if name is empty)
// to learn its size and returns a fid exposing it.
func NewXattrRead(root Root, path, name string, qid wire.Qid) (*XattrRead, error) {
	abs := root.Resolve(path)
	var n int
	var err error
	if name == "" {
		n, err = unix.Llistxattr(abs, nil)
	} else {
		n, err = unix.Lgetxattr(abs, name, nil)
	}
	if err != nil {
		return nil, err
	}
	root.IncRef()
	return &XattrRead{root: root, path: path, name: name, qid: qid, size: uint64(n)}, nil
}

func (x *XattrRead) Qid() wire.Qid { return x.qid }

func (x *XattrRead) Clone() Fid {
	x.root.IncRef()
	c := *x
	return &c
}

// Size returns the cached attribute (or listing) size, the value
// xattrwalk's response reports.
func (x *XattrRead) Size() uint64 { return x.size }

func (x *XattrRead) Read(ctx context.Context, offset uint64, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset != 0 {
		return 0, unix.EINVAL
	}
	abs := x.root.Resolve(x.path)
	if x.name == "" {
		return unix.Llistxattr(abs, buf)
	}
	return unix.Lgetxattr(abs, x.name, buf)
}

func (x *XattrRead) Clunk() error {
	x.root.DecRef()
	return nil
}

// XattrWrite is the fid installed in place of its predecessor by
// xattrcreate: a pre-sized write buffer that commits on clunk. Write
// fills into the pre-sized buffer, ignoring bytes past it; clunk
// commits with lsetxattr, or lremovexattr if the buffer ended up empty.
type XattrWrite struct {
	Unsupported

	root  Root
	path  string
	name  string
	flags int
	qid   wire.Qid

	buf    []byte
	filled int
}

var _ Fid = (*XattrWrite)(nil)

// NewXattrWrite returns a fid holding a zeroed buffer of the declared
// size, ready to receive write calls before being committed on clunk.
func NewXattrWrite(root Root, path, name string, size uint64, flags int, qid wire.Qid) *XattrWrite {
	return &XattrWrite{root: root, path: path, name: name, flags: flags, qid: qid, buf: make([]byte, size)}
}

func (x *XattrWrite) Qid() wire.Qid { return x.qid }

func (x *XattrWrite) Clone() Fid {
	x.root.IncRef()
	c := *x
	c.buf = append([]byte(nil), x.buf...)
	return &c
}

func (x *XattrWrite) Write(ctx context.Context, offset uint64, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if x.root.ReadOnly() {
		return 0, unix.EROFS
	}
	if offset > uint64(len(x.buf)) {
		return 0, nil
	}
	n := copy(x.buf[offset:], p)
	if int(offset)+n > x.filled {
		x.filled = int(offset) + n
	}
	return n, nil
}

// Clunk commits the buffered attribute value: lremovexattr if the
// buffer ended at size 0, lsetxattr with the declared flags otherwise.
func (x *XattrWrite) Clunk() error {
	defer x.root.DecRef()
	abs := x.root.Resolve(x.path)
	if len(x.buf) == 0 {
		return unix.Lremovexattr(abs, x.name)
	}
	return unix.Lsetxattr(abs, x.name, x.buf, x.flags)
}
