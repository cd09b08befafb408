package fid

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrInUse is returned by Table.Insert when the requested number
// already refers to a live fid: reusing a fid number without clunking
// it first is a client protocol error.
var ErrInUse = errors.New("fid: number already in use")

// ErrNotFound is returned when a fid number has no live entry.
var ErrNotFound = errors.New("fid: no such fid")

// A Table is the per-connection mapping of client-chosen fid numbers to
// Fid objects, guarded by one rw-lock for the whole table: lookups
// share it and may run concurrently with each other, while
// Insert/Delete/Replace hold it exclusively. Flush never takes this
// lock.
type Table struct {
	mu sync.RWMutex
	m  map[uint32]Fid
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{m: make(map[uint32]Fid)}
}

// Insert installs f at num. It fails with ErrInUse if num already
// refers to a live fid.
func (t *Table) Insert(num uint32, f Fid) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.m[num]; ok {
		return ErrInUse
	}
	t.m[num] = f
	return nil
}

// Lookup returns the fid at num, or ErrNotFound.
func (t *Table) Lookup(num uint32) (Fid, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.m[num]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// LookupPair atomically resolves two fid numbers under a single reader
// guard.
func (t *Table) LookupPair(a, b uint32) (Fid, Fid, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fa, ok := t.m[a]
	if !ok {
		return nil, nil, ErrNotFound
	}
	fb, ok := t.m[b]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return fa, fb, nil
}

// Replace overwrites num's entry unconditionally, used by walk and
// wopen when newfid equals fid, and by xattrcreate. It does not clunk
// the previous occupant; the caller is responsible for that.
func (t *Table) Replace(num uint32, f Fid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[num] = f
}

// Delete removes num from the table and reports whether it was
// present.
func (t *Table) Delete(num uint32) (Fid, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.m[num]
	if ok {
		delete(t.m, num)
	}
	return f, ok
}

// Range calls fn for every live fid, used by connection teardown to
// clunk everything remaining. fn must not call back into the Table.
func (t *Table) Range(fn func(num uint32, f Fid)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for num, f := range t.m {
		fn(num, f)
	}
}

// Len reports the number of live fids.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
