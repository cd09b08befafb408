package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"libp9.dev/w9p/wire"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	w := wire.NewWriter(buf)
	w.PutUint8(7)
	w.PutUint16(1234)
	w.PutUint32(0xdeadbeef)
	w.PutUint64(0x0102030405060708)
	qid := wire.NewQid(wire.QTDir, 3, 99)
	w.PutQid(qid)
	w.PutString("hello")
	w.PutBytes([]byte("raw"))

	r := wire.NewReader(w.Bytes())
	require.EqualValues(t, 7, r.Uint8())
	require.EqualValues(t, 1234, r.Uint16())
	require.EqualValues(t, 0xdeadbeef, r.Uint32())
	require.EqualValues(t, 0x0102030405060708, r.Uint64())
	require.Equal(t, qid, r.Qid())
	require.Equal(t, "hello", r.String())
	require.Equal(t, []byte("raw"), r.Bytes(3))
	require.NoError(t, r.Err())
}

func TestReaderShortFrame(t *testing.T) {
	r := wire.NewReader([]byte{1, 2})
	_ = r.Uint32()
	require.ErrorIs(t, r.Err(), wire.ErrShortFrame)
	// Once an error is latched, further reads are no-ops returning zero.
	require.EqualValues(t, 0, r.Uint64())
	require.ErrorIs(t, r.Err(), wire.ErrShortFrame)
}

func TestPathElemRejectsReservedNames(t *testing.T) {
	for _, name := range []string{"", ".", ".."} {
		body := make([]byte, 2+len(name))
		w := wire.NewWriter(body)
		w.PutString(name)
		r := wire.NewReader(w.Bytes())
		_ = r.PathElem()
		require.ErrorIs(t, r.Err(), wire.ErrReservedName, "name=%q", name)
	}
}

func TestPathElemRejectsSlash(t *testing.T) {
	body := make([]byte, 2+len("a/b"))
	w := wire.NewWriter(body)
	w.PutString("a/b")
	r := wire.NewReader(w.Bytes())
	_ = r.PathElem()
	require.ErrorIs(t, r.Err(), wire.ErrContainsSlash)
}

func TestQidAccessors(t *testing.T) {
	q := wire.NewQid(wire.QTSymlink, 5, 42)
	require.Equal(t, wire.QTSymlink, q.Type())
	require.EqualValues(t, 5, q.Version())
	require.EqualValues(t, 42, q.Path())
}

func TestAttrTailRoundTrip(t *testing.T) {
	a := wire.Attr{
		Valid: 0xdead, // not part of the tail; must not survive the round trip
		Qid:   wire.NewQid(wire.QTFile, 1, 2),
		Mode:  0o644, UID: 1000, GID: 1000,
		Nlink: 1, Size: 4096, Gen: 7, DataVersion: 8,
	}
	buf := make([]byte, wire.AttrTailLen)
	n := a.EncodeTail(buf)
	require.Equal(t, wire.AttrTailLen, n)

	r := wire.NewReader(buf)
	got := r.AttrTail()
	require.NoError(t, r.Err())
	require.Zero(t, got.Valid)
	require.Zero(t, got.Qid)
	require.Equal(t, a.Mode, got.Mode)
	require.Equal(t, a.UID, got.UID)
	require.Equal(t, a.GID, got.GID)
	require.Equal(t, a.Size, got.Size)
	require.Equal(t, a.Gen, got.Gen)
	require.Equal(t, a.DataVersion, got.DataVersion)
}

func TestWriterOverflowPanics(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	w := wire.NewWriter(make([]byte, 1))
	w.PutUint32(1)
}
