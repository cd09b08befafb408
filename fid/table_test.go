package fid_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/wire"
)

type stubFid struct {
	fid.Unsupported
	qid wire.Qid
}

func (s *stubFid) Qid() wire.Qid { return s.qid }
func (s *stubFid) Clone() fid.Fid { c := *s; return &c }
func (s *stubFid) Clunk() error   { return nil }

func TestTableInsertLookupDelete(t *testing.T) {
	tbl := fid.NewTable()
	f := &stubFid{qid: wire.NewQid(wire.QTFile, 0, 1)}

	require.NoError(t, tbl.Insert(1, f))
	require.ErrorIs(t, tbl.Insert(1, f), fid.ErrInUse)

	got, err := tbl.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, f, got)

	_, err = tbl.Lookup(2)
	require.ErrorIs(t, err, fid.ErrNotFound)

	require.Equal(t, 1, tbl.Len())
	removed, ok := tbl.Delete(1)
	require.True(t, ok)
	require.Equal(t, f, removed)
	require.Equal(t, 0, tbl.Len())

	_, ok = tbl.Delete(1)
	require.False(t, ok)
}

func TestTableLookupPair(t *testing.T) {
	tbl := fid.NewTable()
	a := &stubFid{qid: wire.NewQid(wire.QTFile, 0, 1)}
	b := &stubFid{qid: wire.NewQid(wire.QTFile, 0, 2)}
	require.NoError(t, tbl.Insert(1, a))
	require.NoError(t, tbl.Insert(2, b))

	fa, fb, err := tbl.LookupPair(1, 2)
	require.NoError(t, err)
	require.Equal(t, a, fa)
	require.Equal(t, b, fb)

	_, _, err = tbl.LookupPair(1, 99)
	require.ErrorIs(t, err, fid.ErrNotFound)
}

func TestTableReplaceDoesNotClunkPrevious(t *testing.T) {
	tbl := fid.NewTable()
	a := &stubFid{qid: wire.NewQid(wire.QTFile, 0, 1)}
	b := &stubFid{qid: wire.NewQid(wire.QTFile, 0, 2)}
	require.NoError(t, tbl.Insert(1, a))

	tbl.Replace(1, b)
	got, err := tbl.Lookup(1)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestTableRangeConcurrentWithLookup(t *testing.T) {
	tbl := fid.NewTable()
	for i := uint32(0); i < 50; i++ {
		require.NoError(t, tbl.Insert(i, &stubFid{qid: wire.NewQid(wire.QTFile, 0, uint64(i))}))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		count := 0
		tbl.Range(func(num uint32, f fid.Fid) { count++ })
		require.Equal(t, 50, count)
	}()
	go func() {
		defer wg.Done()
		for i := uint32(0); i < 50; i++ {
			tbl.Lookup(i)
		}
	}()
	wg.Wait()
}
