package share_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

func TestListAddDuplicateName(t *testing.T) {
	l := share.NewList()
	s := &share.Share{Name: "public", Qid: wire.NewQid(wire.QTDir, 0, 1)}
	require.NoError(t, l.Add(s))
	require.ErrorIs(t, l.Add(s), share.ErrDuplicateName)
	require.Equal(t, 1, l.Len())
}

func TestListLookupNotFound(t *testing.T) {
	l := share.NewList()
	_, err := l.Lookup("missing")
	require.ErrorIs(t, err, share.ErrNotFound)
}

func TestListRemove(t *testing.T) {
	l := share.NewList()
	require.NoError(t, l.Add(&share.Share{Name: "public", Qid: wire.NewQid(wire.QTDir, 0, 1)}))
	require.NoError(t, l.Remove("public"))
	require.ErrorIs(t, l.Remove("public"), share.ErrNotFound)
	require.Equal(t, 0, l.Len())
}

func TestListLookupReturnsRegisteredShare(t *testing.T) {
	l := share.NewList()
	s := &share.Share{Name: "ro", ReadOnly: true, Qid: wire.NewQid(wire.QTDir, 0, 7)}
	require.NoError(t, l.Add(s))

	got, err := l.Lookup("ro")
	require.NoError(t, err)
	require.Same(t, s, got)
	require.True(t, got.ReadOnly)
}
