package fid

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/wire"
)

// Root is the subset of the share/root model (package share) a File
// fid needs: the share's root directory descriptor, its read-only
// flag, and a way to run a block of syscalls under the root's resolved
// identity. Kept as an interface here so fid does not import share
// (share imports fid to construct the initial attach File).
type Root interface {
	DirFd() int
	ReadOnly() bool
	WithIdentity(fn func() error) error

	// Resolve returns an absolute path for relPath, for the handful of
	// xattr syscalls that have no *at variant taking a directory fd.
	Resolve(relPath string) string

	// IncRef and DecRef track the Root's fid-referencing lifetime: the
	// Root is created on first successful attach and destroyed when the
	// last referencing fid is destroyed. Clone and NewXattrRead take a
	// reference and every variant's Clunk releases one; NewRootFile,
	// Walk and NewXattrWrite take none (the attach fid uses the
	// reference MakeRoot takes).
	IncRef()
	DecRef() bool
}

// A walk that would cross a mount boundary (into a filesystem with a
// different device id than the share root's) fails with EACCES.
// Detection is by device-id change compared against the root's device
// id, the host-portable proxy for "crossed a mount" available via
// fstatat.
type File struct {
	mu sync.RWMutex

	root Root
	path string // relative to root.DirFd(), "" is the root itself
	qid  wire.Qid
	dev  uint64

	fd     int // -1 if unopened
	isDir  bool
	opened bool

	dirCursor *dirCursor
}

var _ Fid = (*File)(nil)

// NewRootFile returns the File fid installed by a successful attach,
// positioned at the root of the share.
func NewRootFile(root Root, qid wire.Qid, dev uint64) *File {
	return &File{root: root, path: "", qid: qid, dev: dev, fd: -1, isDir: true}
}

func (f *File) Qid() wire.Qid {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.qid
}

// Clone returns a new File fid sharing the same root and positioned at
// the same path, with no open fd of its own.
func (f *File) Clone() Fid {
	f.mu.RLock()
	defer f.mu.RUnlock()
	f.root.IncRef()
	return &File{root: f.root, path: f.path, qid: f.qid, dev: f.dev, fd: -1, isDir: f.isDir}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return unix.EINVAL
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, 0) {
		return unix.EINVAL
	}
	return nil
}

func (f *File) join(name string) string {
	if f.path == "" {
		return name
	}
	return f.path + "/" + name
}

// Walk appends name to f's path after validating it and confirming f
// is currently a directory, then fstatats the result to refresh the
// qid and check for a mount-boundary crossing.
func (f *File) Walk(ctx context.Context, name string) (Fid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isDir {
		return nil, unix.ENOTDIR
	}

	newPath := f.join(name)

	var st unix.Stat_t
	if err := unix.Fstatat(f.root.DirFd(), newPath, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, err
	}

	if st.Dev != f.dev {
		// Rollback is implicit: we haven't mutated f yet, only
		// computed newPath. Spec §9 calls out that both path and qid
		// must roll back atomically on this failure; by deferring the
		// mutation until after the boundary check, there is nothing
		// to roll back.
		return nil, unix.EACCES
	}

	return &File{
		root:  f.root,
		path:  newPath,
		qid:   qidFromStat(&st),
		dev:   st.Dev,
		fd:    -1,
		isDir: st.Mode&unix.S_IFMT == unix.S_IFDIR,
	}, nil
}

func qidFromStat(st *unix.Stat_t) wire.Qid {
	var t wire.QidType
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		t = wire.QTDir
	case unix.S_IFLNK:
		t = wire.QTSymlink
	}
	return wire.NewQid(t, uint32(st.Mtim.Sec), uint64(st.Ino))
}

// Open opens the fid's current path with the given mapped Linux open
// flags. Must not be called on an already-open fid.
func (f *File) Open(ctx context.Context, flags uint32) (wire.Qid, error) {
	if err := ctx.Err(); err != nil {
		return wire.Qid{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.opened {
		return wire.Qid{}, unix.EINVAL
	}

	var fd int
	var err error
	rerr := f.root.WithIdentity(func() error {
		fd, err = unix.Openat(f.root.DirFd(), f.path, int(flags)|unix.O_NOFOLLOW, 0)
		return err
	})
	if rerr != nil {
		return wire.Qid{}, rerr
	}

	f.fd = fd
	f.opened = true
	return f.qid, nil
}

// Create creates and opens name inside the directory fid f, per
// lcreate's contract: f itself is overwritten to refer to the new file.
func (f *File) Create(ctx context.Context, name string, flags uint32, mode uint32, gid uint32) (wire.Qid, error) {
	if err := ctx.Err(); err != nil {
		return wire.Qid{}, err
	}
	if err := validateName(name); err != nil {
		return wire.Qid{}, err
	}
	if f.root.ReadOnly() {
		return wire.Qid{}, unix.EROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isDir {
		return wire.Qid{}, unix.ENOTDIR
	}
	if f.opened {
		return wire.Qid{}, unix.EINVAL
	}

	newPath := f.join(name)

	var fd int
	var err error
	rerr := f.root.WithIdentity(func() error {
		fd, err = unix.Openat(f.root.DirFd(), newPath, int(flags)|unix.O_CREAT|unix.O_EXCL|unix.O_NOFOLLOW, mode)
		if err != nil {
			return err
		}
		return unix.Fchown(fd, -1, int(gid))
	})
	if rerr != nil {
		return wire.Qid{}, rerr
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return wire.Qid{}, err
	}

	f.path = newPath
	f.qid = qidFromStat(&st)
	f.dev = st.Dev
	f.fd = fd
	f.opened = true
	f.isDir = false
	return f.qid, nil
}

func (f *File) Read(ctx context.Context, offset uint64, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.RLock()
	fd := f.fd
	opened := f.opened
	f.mu.RUnlock()

	if !opened {
		return 0, unix.EBADF
	}
	n, err := unix.Pread(fd, buf, int64(offset))
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (f *File) Write(ctx context.Context, offset uint64, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.root.ReadOnly() {
		return 0, unix.EROFS
	}
	f.mu.RLock()
	fd := f.fd
	opened := f.opened
	f.mu.RUnlock()

	if !opened {
		return 0, unix.EBADF
	}
	n, err := unix.Pwrite(fd, buf, int64(offset))
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Readdir enumerates directory entries from a cursor bound to the open
// directory fid, filling buf with as many raw getdents-style entries as
// fit. It is the caller (conn package)'s job to translate the raw
// kernel entries into wire-format Rreaddir/Rwreaddir entries; Readdir
// itself only manages the cursor lifecycle: enumeration is cursor-based
// on the open directory fid, a second call with the same offset resumes
// from the same point, and a different offset seeks.
func (f *File) Readdir(ctx context.Context, offset uint64, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.opened || !f.isDir {
		return 0, unix.EBADF
	}
	if f.dirCursor == nil {
		f.dirCursor = newDirCursor(f.fd)
	}
	return f.dirCursor.readAt(offset, buf)
}

func (f *File) GetAttr(mask uint64) (wire.Attr, error) {
	f.mu.RLock()
	path, fd, opened := f.path, f.fd, f.opened
	root := f.root
	f.mu.RUnlock()

	var st unix.Stat_t
	var err error
	if opened {
		err = unix.Fstat(fd, &st)
	} else {
		err = unix.Fstatat(root.DirFd(), path, &st, unix.AT_SYMLINK_NOFOLLOW)
	}
	if err != nil {
		return wire.Attr{}, err
	}
	return attrFromStat(&st, mask), nil
}

func attrFromStat(st *unix.Stat_t, mask uint64) wire.Attr {
	return wire.Attr{
		Valid:       mask,
		Qid:         qidFromStat(st),
		Mode:        uint32(st.Mode),
		UID:         st.Uid,
		GID:         st.Gid,
		Nlink:       uint64(st.Nlink),
		Rdev:        st.Rdev,
		Size:        uint64(st.Size),
		Blksize:     uint64(st.Blksize),
		Blocks:      uint64(st.Blocks),
		AtimeSec:    uint64(st.Atim.Sec),
		AtimeNsec:   uint64(st.Atim.Nsec),
		MtimeSec:    uint64(st.Mtim.Sec),
		MtimeNsec:   uint64(st.Mtim.Nsec),
		CtimeSec:    uint64(st.Ctim.Sec),
		CtimeNsec:   uint64(st.Ctim.Nsec),
	}
}

func (f *File) SetAttr(valid uint64, attr SetAttrArgs) error {
	if f.root.ReadOnly() {
		return unix.EROFS
	}
	f.mu.RLock()
	path, fd, opened := f.path, f.fd, f.opened
	root := f.root
	f.mu.RUnlock()

	const (
		attrMode = wire.AttrMode
		attrUID  = wire.AttrUID
		attrGID  = wire.AttrGID
		attrSize = wire.AttrSize
	)

	if valid&attrMode != 0 {
		var err error
		if opened {
			err = unix.Fchmod(fd, attr.Mode)
		} else {
			err = unix.Fchmodat(root.DirFd(), path, attr.Mode, 0)
		}
		if err != nil {
			return err
		}
	}
	if valid&(attrUID|attrGID) != 0 {
		uid, gid := -1, -1
		if valid&attrUID != 0 {
			uid = int(attr.UID)
		}
		if valid&attrGID != 0 {
			gid = int(attr.GID)
		}
		var err error
		if opened {
			err = unix.Fchown(fd, uid, gid)
		} else {
			err = unix.Fchownat(root.DirFd(), path, uid, gid, unix.AT_SYMLINK_NOFOLLOW)
		}
		if err != nil {
			return err
		}
	}
	if valid&attrSize != 0 {
		if !opened {
			return unix.EBADF
		}
		if err := unix.Ftruncate(fd, int64(attr.Size)); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) Access(mode uint32) error {
	f.mu.RLock()
	path := f.path
	root := f.root
	f.mu.RUnlock()
	return root.WithIdentity(func() error {
		return unix.Faccessat(root.DirFd(), path, mode, 0)
	})
}

func (f *File) Readlink() (string, error) {
	f.mu.RLock()
	path := f.path
	root := f.root
	f.mu.RUnlock()

	buf := make([]byte, unix.PathMax)
	n, err := unix.Readlinkat(root.DirFd(), path, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Clunk releases the held file descriptor, if any. It always succeeds:
// clunk removes and destroys the fid for any fid type.
func (f *File) Clunk() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened && f.fd >= 0 {
		unix.Close(f.fd)
		f.fd = -1
		f.opened = false
	}
	f.root.DecRef()
	return nil
}

// Remove unlinks the fid's path and then clunks it. remove on the
// share root itself is EPERM.
func (f *File) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.root.ReadOnly() {
		return unix.EROFS
	}
	f.mu.Lock()
	path := f.path
	isDir := f.isDir
	root := f.root
	f.mu.Unlock()

	if path == "" {
		return unix.EPERM
	}

	flags := 0
	if isDir {
		flags = unix.AT_REMOVEDIR
	}
	err := root.WithIdentity(func() error {
		return unix.Unlinkat(root.DirFd(), path, flags)
	})
	if err != nil {
		return err
	}
	return f.Clunk()
}

// Path returns the fid's path relative to the share root, for use by
// mkdir/symlink/mknod/link/rename handlers that need to address a
// parent directory plus a leaf name.
func (f *File) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// IsDir reports whether the fid currently refers to a directory.
func (f *File) IsDir() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isDir
}

// IsOpen reports whether the fid has a live file descriptor.
func (f *File) IsOpen() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.opened
}

// Fd returns the held descriptor, or -1 if unopened.
func (f *File) Fd() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fd
}

// RootDirFd exposes the share root's directory descriptor, used by
// standalone handlers (mkdir, symlink, mknod, link, rename, renameat,
// unlinkat) that operate relative to a directory fid's path without
// going through a typed Fid method.
func (f *File) RootDirFd() int {
	return f.root.DirFd()
}

// Root returns the fid's bound Root.
func (f *File) Root() Root {
	return f.root
}
