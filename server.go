package w9p

import (
	"net"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"libp9.dev/w9p/accept"
	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

// Option configures a Server at construction time.
//
// Grounded on the teacher's functional-option-free Server struct
// (server.go held a bare Logger field); this repo adds the option
// pattern cobra-based CLIs in the retrieval pack (rclone-rclone's
// fs.Config construction) favor over exported mutable fields.
type Option func(*Server)

// WithLogger sets the *zap.SugaredLogger used for structured
// diagnostic logging. The zero Server logs nothing.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithServerIdentity records the uid the server process runs as and
// whether that uid is root, the two facts share.MakeRoot's attach-time
// identity resolution needs (spec §4.7).
func WithServerIdentity(uid uint32, isRoot bool) Option {
	return func(s *Server) {
		s.uid = uid
		s.isRoot = isRoot
	}
}

// Server is a 9P2000.L/.W server: a share registry plus the acceptors
// currently serving connections against it.
type Server struct {
	shares *share.List
	log    *zap.SugaredLogger
	uid    uint32
	isRoot bool
}

// New returns a Server with an empty share list. Callers add shares
// with AddShare before calling Serve.
func New(opts ...Option) *Server {
	s := &Server{
		shares: share.NewList(),
		log:    zap.NewNop().Sugar(),
		uid:    uint32(os.Getuid()),
		isRoot: os.Getuid() == 0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddShare registers a new named share rooted at path on the host
// filesystem, matching spec §4.7's Share: "(name:string, root_fd) kept
// in a process-wide registry". path is opened once, as a directory,
// and kept open for the life of the share; readOnly rejects every
// mutating fid operation against roots bound to it with EROFS.
func (s *Server) AddShare(name, path string, readOnly bool) error {
	dirFd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return errors.Wrapf(err, "w9p: open share %q at %q", name, path)
	}

	var st unix.Stat_t
	if err := unix.Fstat(dirFd, &st); err != nil {
		unix.Close(dirFd)
		return errors.Wrapf(err, "w9p: stat share %q", name)
	}

	sh := &share.Share{
		Name:     name,
		Path:     path,
		DirFd:    dirFd,
		ReadOnly: readOnly,
		Qid:      wire.NewQid(wire.QTDir, uint32(st.Mtim.Sec), uint64(st.Ino)),
		Dev:      uint64(st.Dev),
	}
	if err := s.shares.Add(sh); err != nil {
		unix.Close(dirFd)
		return err
	}
	s.log.Infow("share added", "name", name, "path", path, "readonly", readOnly)
	return nil
}

// RemoveShare unregisters name. It does not affect connections already
// attached to it; their Root keeps the share reachable via its own
// reference until the last fid referencing it is clunked.
func (s *Server) RemoveShare(name string) error {
	if err := s.shares.Remove(name); err != nil {
		return err
	}
	s.log.Infow("share removed", "name", name)
	return nil
}

// Serve accepts connections on l until Pause or Teardown is called on
// the returned Acceptor, dispatching each to the protocol engine in
// package conn (spec §4.3/§4.4).
func (s *Server) Serve(l net.Listener) *accept.Acceptor {
	a := accept.New(l, s.shares, s.uid, s.isRoot, s.log)
	a.Resume()
	return a
}
