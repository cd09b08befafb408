package fid

import (
	"io"

	"golang.org/x/sys/unix"
)

// dirCursor wraps an open directory fd to give readdir a
// seek-then-bulk-read cursor: offsets are opaque host offsets (the raw
// kernel d_off values embedded in the getdents buffer), so resuming at
// the same offset or seeking to a previously returned one is just an
// lseek before the next getdents call. The conn package parses the raw
// buffer into wire-format entries and picks out the next offset to
// hand back to the client.
type dirCursor struct {
	fd int
}

func newDirCursor(fd int) *dirCursor {
	return &dirCursor{fd: fd}
}

func (c *dirCursor) readAt(offset uint64, buf []byte) (int, error) {
	if _, err := unix.Seek(c.fd, int64(offset), io.SeekStart); err != nil {
		return 0, err
	}
	n, err := unix.Getdents(c.fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}
