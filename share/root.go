package share

import (
	"runtime"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/internal/identity"
	"libp9.dev/w9p/internal/util"
	"libp9.dev/w9p/wire"
)

// Root is the per-connection view of a Share under a specific user
// identity, ref-counted by every fid created on the connection (spec
// §4.7/§3). It implements fid.Root.
//
// Grounded on the teacher's internal/util.RefCount, originally used to
// track the lifetime of styx session state; Root reuses it unchanged
// for the lifetime spec §4.7 describes ("Root created on first
// successful attach; destroyed when the last referencing fid is
// destroyed").
type Root struct {
	share *Share
	id    identity.Identity

	refs util.RefCount
}

// MakeRoot implements spec §4.7's make_root(aname, uid):
//   - uid == serverUID: no identity switch.
//   - server is root: resolve uid's primary gid, falling back to the
//     nobody group's gid if uid has no password-database entry.
//   - otherwise: EPERM.
func MakeRoot(list *List, aname string, uid uint32, serverUID uint32, serverIsRoot bool) (*Root, error) {
	s, err := list.Lookup(aname)
	if err != nil {
		return nil, err
	}
	if uid != serverUID && !serverIsRoot {
		return nil, unix.EPERM
	}
	id, err := identity.Resolve(uid, serverUID, serverIsRoot)
	if err != nil {
		return nil, unix.EINVAL
	}
	r := &Root{share: s, id: id}
	r.refs.IncRef()
	return r, nil
}

// DirFd returns the share's root directory descriptor.
func (r *Root) DirFd() int { return r.share.DirFd }

// ReadOnly reports whether the bound share is read-only.
func (r *Root) ReadOnly() bool { return r.share.ReadOnly }

// Qid returns the share root's qid, installed on the attach fid.
func (r *Root) Qid() wire.Qid { return r.share.Qid }

// Resolve joins relPath onto the share's absolute mount path.
func (r *Root) Resolve(relPath string) string {
	if relPath == "" {
		return r.share.Path
	}
	return r.share.Path + "/" + relPath
}

// IncRef adds a reference, taken by every fid constructed against this
// root (walk's clone, xattrwalk, wopen).
func (r *Root) IncRef() {
	r.refs.IncRef()
}

// DecRef releases a reference. It reports whether any references
// remain; callers drop the Root's resources once it reaches zero.
func (r *Root) DecRef() bool {
	return r.refs.DecRef()
}

// WithIdentity runs fn with the calling goroutine's OS thread's
// effective uid/gid/supplementary groups set to this root's resolved
// identity, then restores them, matching spec §5: "per-thread effective
// uid/gid is set around host syscalls via a scoped holder; the holder
// restores to (root, root) and to an empty supplementary set on drop."
// Because Go does not pin goroutines to OS threads across suspension
// points, the caller must ensure fn contains no suspension (channel
// receive, context wait, blocking I/O handed to another goroutine)
// between the identity set and restore — the same "wholly enclosed
// within a blocking region" requirement the spec states.
func (r *Root) WithIdentity(fn func() error) error {
	if r.id.NoIdentitySwitch {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := unix.Setgroups(toIntSlice(r.id.Groups)); err != nil {
		return err
	}
	defer unix.Setgroups(nil)

	if err := unix.Setfsgid(int(r.id.GID)); err != nil {
		return err
	}
	defer unix.Setfsgid(0)

	if err := unix.Setfsuid(int(r.id.UID)); err != nil {
		return err
	}
	defer unix.Setfsuid(0)

	return fn()
}

func toIntSlice(u []uint32) []int {
	out := make([]int, len(u))
	for i, v := range u {
		out[i] = int(v)
	}
	return out
}
