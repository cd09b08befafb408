// Package share implements the process-wide share list and the
// per-connection Root view constructed from it at attach time.
//
// Grounded on the teacher's top-level server.go registration pattern
// (a concurrent map guarding named registrations) and its
// internal/util.RefCount for the Root lifetime spec §4.7 describes
// ("Root created on first successful attach; destroyed when the last
// referencing fid is destroyed").
package share

import (
	"sync"

	"github.com/pkg/errors"

	"libp9.dev/w9p/wire"
)

// MaxConnections is the acceptor's fixed connection-count ceiling
// (spec §4.3: "Rejects if concurrent connection count >= the share
// list's declared maximum (fixed at 4,096)").
const MaxConnections = 4096

// ErrDuplicateName is returned by List.Add when name is already
// registered.
var ErrDuplicateName = errors.New("share: duplicate name")

// ErrNotFound is returned by List.Remove and List.Lookup when name has
// no registration.
var ErrNotFound = errors.New("share: not found")

// A Share is a named registration binding a mountable root directory
// and its identity (spec §3: "A named registration (name:string,
// root_fd) kept in a process-wide registry").
type Share struct {
	Name     string
	Path     string
	DirFd    int
	ReadOnly bool
	Qid      wire.Qid
	Dev      uint64
}

// A List is the process-wide share registry: a concurrent map with a
// unique-name invariant.
type List struct {
	mu sync.RWMutex
	m  map[string]*Share
}

// NewList returns an empty share list.
func NewList() *List {
	return &List{m: make(map[string]*Share)}
}

// Add registers s under s.Name. It fails with ErrDuplicateName if the
// name is already registered.
func (l *List) Add(s *Share) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[s.Name]; ok {
		return ErrDuplicateName
	}
	l.m[s.Name] = s
	return nil
}

// Remove unregisters name. It fails with ErrNotFound if absent.
func (l *List) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[name]; !ok {
		return ErrNotFound
	}
	delete(l.m, name)
	return nil
}

// Lookup returns the Share registered under name.
func (l *List) Lookup(name string) (*Share, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[name]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len reports the number of registered shares.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}
