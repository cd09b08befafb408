// Package fid implements the polymorphic per-connection fid model:
// File (a path-rooted filesystem object), XattrRead and XattrWrite (the
// two halves of extended-attribute access), and the Table that maps a
// client-chosen 32-bit number to one of them.
//
// Fid is a narrow interface backed by a small closed set of concrete
// types — a tagged variant rather than an inheritance hierarchy, since
// the variant set never grows at runtime.
package fid

import (
	"context"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/wire"
)

// Fid is the full union of 9P operations any fid variant might support.
// A variant that doesn't implement a given operation embeds Unsupported
// to default it to EINVAL (ENOTSUP for Access).
//
// ctx carries the connection's sched.CancelToken context. Each
// operation checks ctx.Err() before starting its filesystem work, so a
// request whose connection has been torn down before the operation
// starts never reaches the syscall; a request already blocked inside a
// Pread/Pwrite/Openat syscall runs it to completion regardless, since
// the host syscalls this package calls have no cancellable variant to
// select against. Flush does not cancel ctx.
type Fid interface {
	// Qid returns the fid's current identity snapshot.
	Qid() wire.Qid

	// Clone returns a new, independent Fid positioned identically to
	// this one (used by walk and wopen to produce a sibling before
	// mutating it).
	Clone() Fid

	Walk(ctx context.Context, name string) (Fid, error)
	Open(ctx context.Context, flags uint32) (wire.Qid, error)
	Create(ctx context.Context, name string, flags uint32, mode uint32, gid uint32) (wire.Qid, error)
	Read(ctx context.Context, offset uint64, buf []byte) (int, error)
	Write(ctx context.Context, offset uint64, buf []byte) (int, error)
	Readdir(ctx context.Context, offset uint64, buf []byte) (int, error)
	GetAttr(mask uint64) (wire.Attr, error)
	SetAttr(valid uint64, attr SetAttrArgs) error
	Access(mode uint32) error
	Readlink() (string, error)
	Clunk() error
	Remove(ctx context.Context) error
}

// SetAttrArgs carries the fields of a setattr request; the valid mask
// says which are meaningful.
type SetAttrArgs struct {
	Mode uint32
	UID  uint32
	GID  uint32
	Size uint64

	AtimeSec, AtimeNsec uint64
	MtimeSec, MtimeNsec uint64
}

// Unsupported is embedded by fid variants to default every operation to
// EINVAL (ENOTSUP for Access) unless the embedder overrides it.
type Unsupported struct{}

func (Unsupported) Walk(context.Context, string) (Fid, error) { return nil, unix.EINVAL }
func (Unsupported) Open(context.Context, uint32) (wire.Qid, error) {
	return wire.Qid{}, unix.EINVAL
}
func (Unsupported) Create(context.Context, string, uint32, uint32, uint32) (wire.Qid, error) {
	return wire.Qid{}, unix.EINVAL
}
func (Unsupported) Read(context.Context, uint64, []byte) (int, error)  { return 0, unix.EINVAL }
func (Unsupported) Write(context.Context, uint64, []byte) (int, error) { return 0, unix.EINVAL }
func (Unsupported) Readdir(context.Context, uint64, []byte) (int, error) {
	return 0, unix.EINVAL
}
func (Unsupported) GetAttr(uint64) (wire.Attr, error)        { return wire.Attr{}, unix.EINVAL }
func (Unsupported) SetAttr(uint64, SetAttrArgs) error        { return unix.EINVAL }
func (Unsupported) Access(uint32) error                      { return unix.ENOTSUP }
func (Unsupported) Readlink() (string, error)                { return "", unix.EINVAL }
func (Unsupported) Remove(context.Context) error              { return unix.EINVAL }
