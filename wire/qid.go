package wire

import (
	"encoding/binary"
	"fmt"
)

// QidLen is the encoded size, in bytes, of a Qid: type[1] version[4] path[8].
const QidLen = 13

// A Qid is the server's unique identification for the file being
// accessed: two files on the same server hierarchy are the same if and
// only if their Qids are equal. Grounded on the teacher's styxproto.Qid
// (same byte layout, extended here with the type bits 9P2000.L uses for
// mountpoints and device files).
type Qid [QidLen]byte

// QidType is a bitfield describing the type of a filesystem object.
type QidType uint8

const (
	QTDir       QidType = 0x80
	QTAppend    QidType = 0x40
	QTExclusive QidType = 0x20
	QTMount     QidType = 0x10
	QTAuth      QidType = 0x08
	QTTemporary QidType = 0x04
	QTSymlink   QidType = 0x02
	QTLink      QidType = 0x01
	QTFile      QidType = 0x00
)

// NewQid builds a Qid from its three fields.
func NewQid(qtype QidType, version uint32, path uint64) Qid {
	var q Qid
	q[0] = byte(qtype)
	binary.LittleEndian.PutUint32(q[1:5], version)
	binary.LittleEndian.PutUint64(q[5:13], path)
	return q
}

func (q Qid) Type() QidType   { return QidType(q[0]) }
func (q Qid) Version() uint32 { return binary.LittleEndian.Uint32(q[1:5]) }
func (q Qid) Path() uint64    { return binary.LittleEndian.Uint64(q[5:13]) }

func (q Qid) String() string {
	return fmt.Sprintf("{type=%#x version=%d path=%d}", q.Type(), q.Version(), q.Path())
}
