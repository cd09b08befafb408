package wire

import "encoding/binary"

// AttrLen is the encoded size, in bytes, of an Attr record: the body of
// an Rgetattr response, and the "stat_result" this server embeds in
// each Rwreaddir entry (spec's wreaddir description calls for a
// stat_result per entry; the 9P2000.L wire format doesn't separately
// name a smaller structure, so this server uses the same Rgetattr
// layout both places).
//
//	valid[8] qid[13] mode[4] uid[4] gid[4] nlink[8] rdev[8] size[8]
//	blksize[8] blocks[8] atime_sec[8] atime_nsec[8] mtime_sec[8]
//	mtime_nsec[8] ctime_sec[8] ctime_nsec[8] btime_sec[8] btime_nsec[8]
//	gen[8] data_version[8]
const AttrLen = 8 + QidLen + 4 + 4 + 4 + 8*15

// AttrTailLen is the encoded size of an Attr record with its leading
// valid[8] and qid[13] fields stripped: mode[4] uid[4] gid[4] plus the
// 15 trailing u64 fields. Used by Rwopen, whose body already carries
// the leaf qid separately (spec §4.5's wopen response) and has no
// "valid" field at all (the client's request already sent attr_mask),
// so only this tail of the full Attr record is encoded there.
const AttrTailLen = AttrLen - 8 - QidLen

// Attr holds the fields of a 9P2000.L getattr/setattr record in
// decoded form.
type Attr struct {
	Valid       uint64
	Qid         Qid
	Mode        uint32
	UID         uint32
	GID         uint32
	Nlink       uint64
	Rdev        uint64
	Size        uint64
	Blksize     uint64
	Blocks      uint64
	AtimeSec    uint64
	AtimeNsec   uint64
	MtimeSec    uint64
	MtimeNsec   uint64
	CtimeSec    uint64
	CtimeNsec   uint64
	BtimeSec    uint64
	BtimeNsec   uint64
	Gen         uint64
	DataVersion uint64
}

// Encode writes the Attr to buf, which must be at least AttrLen bytes,
// and returns the number of bytes written.
func (a Attr) Encode(buf []byte) int {
	_ = buf[:AttrLen]
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], a.Valid)
	off += 8
	copy(buf[off:], a.Qid[:])
	off += QidLen
	binary.LittleEndian.PutUint32(buf[off:], a.Mode)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.UID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.GID)
	off += 4
	for _, v := range []uint64{
		a.Nlink, a.Rdev, a.Size, a.Blksize, a.Blocks,
		a.AtimeSec, a.AtimeNsec, a.MtimeSec, a.MtimeNsec,
		a.CtimeSec, a.CtimeNsec, a.BtimeSec, a.BtimeNsec,
		a.Gen, a.DataVersion,
	} {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	return off
}

// EncodeTail writes the mode..data_version tail of the Attr to buf
// (AttrTailLen bytes), omitting the leading valid and qid fields.
func (a Attr) EncodeTail(buf []byte) int {
	_ = buf[:AttrTailLen]
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], a.Mode)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.UID)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.GID)
	off += 4
	for _, v := range []uint64{
		a.Nlink, a.Rdev, a.Size, a.Blksize, a.Blocks,
		a.AtimeSec, a.AtimeNsec, a.MtimeSec, a.MtimeNsec,
		a.CtimeSec, a.CtimeNsec, a.BtimeSec, a.BtimeNsec,
		a.Gen, a.DataVersion,
	} {
		binary.LittleEndian.PutUint64(buf[off:], v)
		off += 8
	}
	return off
}

// decodeAttrTail parses the mode..data_version tail written by
// EncodeTail from buf, which must be at least AttrTailLen bytes long.
func decodeAttrTail(buf []byte) (Attr, error) {
	if len(buf) < AttrTailLen {
		return Attr{}, ErrShortFrame
	}
	var a Attr
	off := 0
	a.Mode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.UID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.GID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	fields := []*uint64{
		&a.Nlink, &a.Rdev, &a.Size, &a.Blksize, &a.Blocks,
		&a.AtimeSec, &a.AtimeNsec, &a.MtimeSec, &a.MtimeNsec,
		&a.CtimeSec, &a.CtimeNsec, &a.BtimeSec, &a.BtimeNsec,
		&a.Gen, &a.DataVersion,
	}
	for _, f := range fields {
		*f = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	return a, nil
}

// DecodeAttr parses an Attr from buf, which must be at least AttrLen
// bytes long.
func DecodeAttr(buf []byte) (Attr, error) {
	if len(buf) < AttrLen {
		return Attr{}, ErrShortFrame
	}
	var a Attr
	off := 0
	a.Valid = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	copy(a.Qid[:], buf[off:off+QidLen])
	off += QidLen
	a.Mode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.UID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	a.GID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	fields := []*uint64{
		&a.Nlink, &a.Rdev, &a.Size, &a.Blksize, &a.Blocks,
		&a.AtimeSec, &a.AtimeNsec, &a.MtimeSec, &a.MtimeNsec,
		&a.CtimeSec, &a.CtimeNsec, &a.BtimeSec, &a.BtimeNsec,
		&a.Gen, &a.DataVersion,
	}
	for _, f := range fields {
		*f = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	return a, nil
}
