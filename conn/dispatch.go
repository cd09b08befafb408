package conn

import (
	"context"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/wire"
)

// dispatch routes mtype to its handler and returns the encoded response
// body (header-less; sendResponse prepends the frame header) along with
// the response message type. Each handler parses its own arguments,
// resolves referenced fids, performs the operation, and returns a body
// plus a Linux errno (via the error return).
func (c *Conn) dispatch(ctx context.Context, mtype uint8, tag uint16, r *wire.Reader) ([]byte, uint8, error) {
	switch mtype {
	case wire.Tversion:
		return c.tVersion(r)
	case wire.Tauth:
		return nil, wire.Rauth, unix.ENOTSUP
	case wire.Tattach:
		return c.tAttach(r)
	case wire.Twalk:
		return c.tWalk(ctx, r)
	case wire.Tlopen:
		return c.tLopen(ctx, r)
	case wire.Tlcreate:
		return c.tLcreate(ctx, r)
	case wire.Tsymlink:
		return c.tSymlink(r)
	case wire.Tmknod:
		return c.tMknod(r)
	case wire.Trename:
		return c.tRename(r)
	case wire.Treadlink:
		return c.tReadlink(r)
	case wire.Tgetattr:
		return c.tGetattr(r)
	case wire.Tsetattr:
		return c.tSetattr(r)
	case wire.Txattrwalk:
		return c.tXattrwalk(r)
	case wire.Txattrcreate:
		return c.tXattrcreate(r)
	case wire.Treaddir:
		return c.tReaddir(ctx, r, false)
	case wire.Twreaddir:
		return c.tReaddir(ctx, r, true)
	case wire.Tfsync:
		return c.tFsync(r)
	case wire.Tlock:
		return c.tLock(r)
	case wire.Tgetlock:
		return c.tGetlock(r)
	case wire.Tlink:
		return c.tLink(r)
	case wire.Tmkdir:
		return c.tMkdir(r)
	case wire.Trenameat:
		return c.tRenameat(r)
	case wire.Tunlinkat:
		return c.tUnlinkat(r)
	case wire.Tread:
		return c.tRead(ctx, r)
	case wire.Twrite:
		return c.tWrite(ctx, r)
	case wire.Tclunk:
		return c.tClunk(r)
	case wire.Tremove:
		return c.tRemove(ctx, r)
	case wire.Taccess:
		return c.tAccess(r)
	case wire.Twopen:
		return c.tWopen(ctx, r)
	case wire.Tstatfs:
		return c.tStatfs(r)
	default:
		return nil, wire.Rlerror, unix.ENOTSUP
	}
}
