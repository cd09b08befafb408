package conn

import (
	"context"

	"golang.org/x/sys/unix"
)

// errnoOf maps an error returned by a handler to the positive Linux
// error number Rlerror's body carries (spec §4.4: "the response is
// rewritten as an error response (type Rlerror, body u32(-e) treating
// the error as a positive Linux error number)"). Cancellation surfaces
// as ECANCELED per spec §7.
func errnoOf(err error) int {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return int(errno)
	}
	if err == context.Canceled {
		return int(unix.ECANCELED)
	}
	return int(unix.EIO)
}
