// Package identity resolves host user/group records for the share
// list's make_root step: primary gid lookup, a nobody-group fallback,
// and the full supplementary group set.
//
// Grounded on the teacher's internal/sys owner_unix.go, which resolves
// a *syscall.Stat_t's numeric uid/gid into names via os/user; identity
// turns that lookup around (numeric uid in, resolved gid/groups out)
// for the attach-time root construction spec §4.7 describes.
package identity

import (
	"os/user"
	"strconv"

	"github.com/pkg/errors"
)

// Identity is the resolved effective identity for a connection's Root:
// the uid and primary gid requested at attach, plus the full
// supplementary group set from the host group database.
type Identity struct {
	UID          uint32
	GID          uint32
	Groups       []uint32
	NoIdentitySwitch bool
}

// ErrNoSuchUser means the requested uid has no password-database entry
// and no nobody group fallback was available either.
var ErrNoSuchUser = errors.New("identity: no such user and no nobody group fallback")

// Resolve implements spec §4.7's make_root(aname, uid) identity half:
// if uid equals serverUID, the returned Identity carries
// NoIdentitySwitch and serverIsRoot is irrelevant. Otherwise, if
// serverIsRoot is false the caller must reject with EPERM before ever
// calling Resolve (Resolve does not itself check that). If serverIsRoot
// is true, Resolve looks up uid's primary gid; on failure it falls back
// to the gid of the "nobody" group; if that also fails it returns
// ErrNoSuchUser (the caller maps this to EINVAL).
func Resolve(uid uint32, serverUID uint32, serverIsRoot bool) (Identity, error) {
	if uid == serverUID {
		return Identity{UID: uid, NoIdentitySwitch: true}, nil
	}

	gid, groups, err := primaryGID(uid)
	if err != nil {
		if !serverIsRoot {
			return Identity{}, errors.Wrap(err, "identity: resolve")
		}
		nobody, nerr := user.LookupGroup("nobody")
		if nerr != nil {
			return Identity{}, ErrNoSuchUser
		}
		gidNum, perr := strconv.Atoi(nobody.Gid)
		if perr != nil {
			return Identity{}, ErrNoSuchUser
		}
		return Identity{UID: uid, GID: uint32(gidNum)}, nil
	}
	return Identity{UID: uid, GID: gid, Groups: groups}, nil
}

func primaryGID(uid uint32) (gid uint32, groups []uint32, err error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return 0, nil, err
	}
	gidNum, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, nil, err
	}
	gids, err := u.GroupIds()
	if err != nil {
		return uint32(gidNum), nil, nil
	}
	groups = make([]uint32, 0, len(gids))
	for _, g := range gids {
		n, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		groups = append(groups, uint32(n))
	}
	return uint32(gidNum), groups, nil
}
