package share_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"libp9.dev/w9p/share"
	"libp9.dev/w9p/wire"
)

func TestMakeRootSameUIDNoSwitch(t *testing.T) {
	l := share.NewList()
	require.NoError(t, l.Add(&share.Share{Name: "public", Qid: wire.NewQid(wire.QTDir, 0, 1)}))

	r, err := share.MakeRoot(l, "public", 1000, 1000, false)
	require.NoError(t, err)
	require.Equal(t, wire.NewQid(wire.QTDir, 0, 1), r.Qid())
}

func TestMakeRootRejectsUnknownShare(t *testing.T) {
	l := share.NewList()
	_, err := share.MakeRoot(l, "missing", 1000, 1000, false)
	require.ErrorIs(t, err, share.ErrNotFound)
}

func TestMakeRootRejectsForeignUIDWithoutServerRoot(t *testing.T) {
	l := share.NewList()
	require.NoError(t, l.Add(&share.Share{Name: "public", Qid: wire.NewQid(wire.QTDir, 0, 1)}))

	_, err := share.MakeRoot(l, "public", 1001, 1000, false)
	require.Error(t, err)
}

func TestRootRefCountingLifetime(t *testing.T) {
	l := share.NewList()
	require.NoError(t, l.Add(&share.Share{Name: "public", Qid: wire.NewQid(wire.QTDir, 0, 1)}))

	r, err := share.MakeRoot(l, "public", 1000, 1000, false)
	require.NoError(t, err)

	// MakeRoot's own IncRef counts as the attach fid's reference.
	r.IncRef() // a cloned fid takes a second reference
	require.True(t, r.DecRef(), "one reference should remain")
	require.False(t, r.DecRef(), "no references should remain")
}
