package conn

import (
	"golang.org/x/sys/unix"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/wire"
)

func (c *Conn) lookupFile(num uint32) (*fid.File, error) {
	f, err := c.fids.Lookup(num)
	if err != nil {
		return nil, unix.EBADF
	}
	file, ok := f.(*fid.File)
	if !ok {
		return nil, unix.EINVAL
	}
	return file, nil
}

func (c *Conn) tSymlink(r *wire.Reader) ([]byte, uint8, error) {
	dfidNum := r.Uint32()
	name := r.PathElem()
	target := r.String()
	gid := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rsymlink, unix.EINVAL
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Rsymlink, err
	}
	if dfid.Root().ReadOnly() {
		return nil, wire.Rsymlink, unix.EROFS
	}
	rel := joinPath(dfid.Path(), name)
	if err := dfid.Root().WithIdentity(func() error {
		return unix.Symlinkat(target, dfid.RootDirFd(), rel)
	}); err != nil {
		return nil, wire.Rsymlink, err
	}
	unix.Fchownat(dfid.RootDirFd(), rel, -1, int(gid), unix.AT_SYMLINK_NOFOLLOW)

	qid, err := statQid(dfid.RootDirFd(), rel)
	if err != nil {
		return nil, wire.Rsymlink, err
	}
	body := make([]byte, wire.QidLen)
	wire.NewWriter(body).PutQid(qid)
	return body, wire.Rsymlink, nil
}

func (c *Conn) tMknod(r *wire.Reader) ([]byte, uint8, error) {
	dfidNum := r.Uint32()
	name := r.PathElem()
	mode := r.Uint32()
	major := r.Uint32()
	minor := r.Uint32()
	gid := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rmknod, unix.EINVAL
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Rmknod, err
	}
	if dfid.Root().ReadOnly() {
		return nil, wire.Rmknod, unix.EROFS
	}
	rel := joinPath(dfid.Path(), name)
	dev := unix.Mkdev(major, minor)
	if err := dfid.Root().WithIdentity(func() error {
		return unix.Mknodat(dfid.RootDirFd(), rel, mode, int(dev))
	}); err != nil {
		return nil, wire.Rmknod, err
	}
	unix.Fchownat(dfid.RootDirFd(), rel, -1, int(gid), unix.AT_SYMLINK_NOFOLLOW)

	qid, err := statQid(dfid.RootDirFd(), rel)
	if err != nil {
		return nil, wire.Rmknod, err
	}
	body := make([]byte, wire.QidLen)
	wire.NewWriter(body).PutQid(qid)
	return body, wire.Rmknod, nil
}

func (c *Conn) tMkdir(r *wire.Reader) ([]byte, uint8, error) {
	dfidNum := r.Uint32()
	name := r.PathElem()
	mode := r.Uint32()
	gid := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rmkdir, unix.EINVAL
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Rmkdir, err
	}
	if dfid.Root().ReadOnly() {
		return nil, wire.Rmkdir, unix.EROFS
	}
	rel := joinPath(dfid.Path(), name)
	if err := dfid.Root().WithIdentity(func() error {
		return unix.Mkdirat(dfid.RootDirFd(), rel, mode)
	}); err != nil {
		return nil, wire.Rmkdir, err
	}
	unix.Fchownat(dfid.RootDirFd(), rel, -1, int(gid), unix.AT_SYMLINK_NOFOLLOW)

	qid, err := statQid(dfid.RootDirFd(), rel)
	if err != nil {
		return nil, wire.Rmkdir, err
	}
	body := make([]byte, wire.QidLen)
	wire.NewWriter(body).PutQid(qid)
	return body, wire.Rmkdir, nil
}

func (c *Conn) tLink(r *wire.Reader) ([]byte, uint8, error) {
	dfidNum := r.Uint32()
	fidNum := r.Uint32()
	name := r.PathElem()
	if r.Err() != nil {
		return nil, wire.Rlink, unix.EINVAL
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Rlink, err
	}
	target, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rlink, err
	}
	if dfid.Root().ReadOnly() {
		return nil, wire.Rlink, unix.EROFS
	}
	rel := joinPath(dfid.Path(), name)
	err = dfid.Root().WithIdentity(func() error {
		return unix.Linkat(target.RootDirFd(), target.Path(), dfid.RootDirFd(), rel, 0)
	})
	if err != nil {
		return nil, wire.Rlink, err
	}
	return nil, wire.Rlink, nil
}

func (c *Conn) tRename(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	dfidNum := r.Uint32()
	name := r.PathElem()
	if r.Err() != nil {
		return nil, wire.Rrename, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rrename, err
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Rrename, err
	}
	if f.Root().ReadOnly() {
		return nil, wire.Rrename, unix.EROFS
	}
	newRel := joinPath(dfid.Path(), name)
	err = f.Root().WithIdentity(func() error {
		return unix.Renameat(f.RootDirFd(), f.Path(), dfid.RootDirFd(), newRel)
	})
	if err != nil {
		return nil, wire.Rrename, err
	}
	return nil, wire.Rrename, nil
}

func (c *Conn) tRenameat(r *wire.Reader) ([]byte, uint8, error) {
	olddfidNum := r.Uint32()
	oldname := r.PathElem()
	newdfidNum := r.Uint32()
	newname := r.PathElem()
	if r.Err() != nil {
		return nil, wire.Rrenameat, unix.EINVAL
	}
	olddfid, err := c.lookupFile(olddfidNum)
	if err != nil {
		return nil, wire.Rrenameat, err
	}
	newdfid, err := c.lookupFile(newdfidNum)
	if err != nil {
		return nil, wire.Rrenameat, err
	}
	if olddfid.Root().ReadOnly() {
		return nil, wire.Rrenameat, unix.EROFS
	}
	oldRel := joinPath(olddfid.Path(), oldname)
	newRel := joinPath(newdfid.Path(), newname)
	err = olddfid.Root().WithIdentity(func() error {
		return unix.Renameat(olddfid.RootDirFd(), oldRel, newdfid.RootDirFd(), newRel)
	})
	if err != nil {
		return nil, wire.Rrenameat, err
	}
	return nil, wire.Rrenameat, nil
}

func (c *Conn) tUnlinkat(r *wire.Reader) ([]byte, uint8, error) {
	dfidNum := r.Uint32()
	name := r.PathElem()
	flags := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Runlinkat, unix.EINVAL
	}
	dfid, err := c.lookupFile(dfidNum)
	if err != nil {
		return nil, wire.Runlinkat, err
	}
	if dfid.Root().ReadOnly() {
		return nil, wire.Runlinkat, unix.EROFS
	}
	if dfid.Path() == "" && name == "" {
		return nil, wire.Runlinkat, unix.EPERM
	}
	rel := joinPath(dfid.Path(), name)
	err = dfid.Root().WithIdentity(func() error {
		return unix.Unlinkat(dfid.RootDirFd(), rel, int(flags)&unix.AT_REMOVEDIR)
	})
	if err != nil {
		return nil, wire.Runlinkat, err
	}
	return nil, wire.Runlinkat, nil
}

func (c *Conn) tReadlink(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rreadlink, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rreadlink, unix.EBADF
	}
	target, err := f.Readlink()
	if err != nil {
		return nil, wire.Rreadlink, err
	}
	body := make([]byte, 2+len(target))
	wire.NewWriter(body).PutString(target)
	return body, wire.Rreadlink, nil
}

func (c *Conn) tGetattr(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	mask := r.Uint64()
	if r.Err() != nil {
		return nil, wire.Rgetattr, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rgetattr, unix.EBADF
	}
	attr, err := f.GetAttr(mask)
	if err != nil {
		return nil, wire.Rgetattr, err
	}
	body := make([]byte, wire.AttrLen)
	wire.NewWriter(body).PutAttr(attr)
	return body, wire.Rgetattr, nil
}

func (c *Conn) tSetattr(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	valid := r.Uint32()
	mode := r.Uint32()
	uid := r.Uint32()
	gid := r.Uint32()
	size := r.Uint64()
	atimeSec := r.Uint64()
	atimeNsec := r.Uint64()
	mtimeSec := r.Uint64()
	mtimeNsec := r.Uint64()
	if r.Err() != nil {
		return nil, wire.Rsetattr, unix.EINVAL
	}
	f, err := c.fids.Lookup(fidNum)
	if err != nil {
		return nil, wire.Rsetattr, unix.EBADF
	}
	err = f.SetAttr(uint64(valid), fid.SetAttrArgs{
		Mode: mode, UID: uid, GID: gid, Size: size,
		AtimeSec: atimeSec, AtimeNsec: atimeNsec,
		MtimeSec: mtimeSec, MtimeNsec: mtimeNsec,
	})
	if err != nil {
		return nil, wire.Rsetattr, err
	}
	return nil, wire.Rsetattr, nil
}

func (c *Conn) tFsync(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rfsync, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rfsync, err
	}
	if !f.IsOpen() {
		return nil, wire.Rfsync, unix.EBADF
	}
	if err := unix.Fsync(f.Fd()); err != nil {
		return nil, wire.Rfsync, err
	}
	return nil, wire.Rfsync, nil
}

func (c *Conn) tStatfs(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Rstatfs, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Rstatfs, err
	}
	var st unix.Statfs_t
	if err := unix.Fstatfs(f.RootDirFd(), &st); err != nil {
		return nil, wire.Rstatfs, err
	}
	body := make([]byte, 4*7+8*2)
	w := wire.NewWriter(body)
	w.PutUint32(uint32(st.Type))
	w.PutUint32(uint32(st.Bsize))
	w.PutUint64(st.Blocks)
	w.PutUint64(st.Bfree)
	w.PutUint32(uint32(st.Bavail))
	w.PutUint32(uint32(st.Files))
	w.PutUint32(uint32(st.Ffree))
	w.PutUint32(0) // fsid
	w.PutUint32(uint32(st.Namelen))
	return w.Bytes(), wire.Rstatfs, nil
}

func (c *Conn) tAccess(r *wire.Reader) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	mask := r.Uint32()
	if r.Err() != nil {
		return nil, wire.Raccess, unix.EINVAL
	}
	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, wire.Raccess, err
	}
	if err := f.Access(mask); err != nil {
		return nil, wire.Raccess, err
	}
	return nil, wire.Raccess, nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func statQid(dirFd int, rel string) (wire.Qid, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(dirFd, rel, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return wire.Qid{}, err
	}
	var t wire.QidType
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		t = wire.QTDir
	case unix.S_IFLNK:
		t = wire.QTSymlink
	}
	return wire.NewQid(t, uint32(st.Mtim.Sec), uint64(st.Ino)), nil
}
