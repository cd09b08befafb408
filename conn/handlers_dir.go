package conn

import (
	"context"
	"encoding/binary"

	"golang.org/x/sys/unix"

	"libp9.dev/w9p/fid"
	"libp9.dev/w9p/wire"
)

// rawDirent is one parsed Linux getdents64 entry.
type rawDirent struct {
	ino   uint64
	off   int64
	dtype uint8
	name  string
}

// parseDirents walks a raw getdents64 buffer (as returned by
// unix.Getdents) into individual entries. The kernel's linux_dirent64
// layout is: ino u64, off s64, reclen u16, type u8, name[] (NUL
// terminated, padded to reclen).
func parseDirents(buf []byte) []rawDirent {
	var out []rawDirent
	for len(buf) >= 19 {
		reclen := binary.LittleEndian.Uint16(buf[16:18])
		if reclen == 0 || int(reclen) > len(buf) {
			break
		}
		ino := binary.LittleEndian.Uint64(buf[0:8])
		off := int64(binary.LittleEndian.Uint64(buf[8:16]))
		dtype := buf[18]
		nameBytes := buf[19:reclen]
		end := 0
		for end < len(nameBytes) && nameBytes[end] != 0 {
			end++
		}
		name := string(nameBytes[:end])
		if name != "." && name != ".." {
			out = append(out, rawDirent{ino: ino, off: off, dtype: dtype, name: name})
		}
		buf = buf[reclen:]
	}
	return out
}

func dtypeToQidType(dtype uint8) wire.QidType {
	switch dtype {
	case unix.DT_DIR:
		return wire.QTDir
	case unix.DT_LNK:
		return wire.QTSymlink
	default:
		return wire.QTFile
	}
}

// tReaddir implements both readdir (9P2000.L) and wreaddir (9P2000.W);
// the latter additionally embeds a stat_result per entry, falling back
// to a minimal mode/nlink-only record when stat fails (spec §4.5).
func (c *Conn) tReaddir(ctx context.Context, r *wire.Reader, isW bool) ([]byte, uint8, error) {
	fidNum := r.Uint32()
	offset := r.Uint64()
	count := r.Uint32()
	if r.Err() != nil {
		if isW {
			return nil, wire.Rwreaddir, unix.EINVAL
		}
		return nil, wire.Rreaddir, unix.EINVAL
	}
	rtype := uint8(wire.Rreaddir)
	if isW {
		rtype = wire.Rwreaddir
	}

	f, err := c.lookupFile(fidNum)
	if err != nil {
		return nil, rtype, err
	}

	raw := make([]byte, 64*1024)
	n, err := f.Readdir(ctx, offset, raw)
	if err != nil {
		return nil, rtype, err
	}
	entries := parseDirents(raw[:n])

	out := make([]byte, 4, int(count)+4)
	budget := int(count)
	emitted := 0
	for _, e := range entries {
		entryLen := wire.QidLen + 8 + 1 + 2 + len(e.name)
		if isW {
			entryLen += wire.AttrLen
		}
		if emitted > 0 && entryLen > budget {
			break
		}
		budget -= entryLen

		qid := wire.NewQid(dtypeToQidType(e.dtype), 0, e.ino)
		entry := make([]byte, entryLen)
		w := wire.NewWriter(entry)
		w.PutQid(qid)
		w.PutUint64(uint64(e.off))
		w.PutUint8(e.dtype)
		w.PutString(e.name)
		if isW {
			attr, serr := statAttrByName(f, e.name)
			if serr != nil {
				attr = wire.Attr{Mode: uint32(e.dtype) << 12, Nlink: 1}
			}
			w.PutAttr(attr)
		}
		out = append(out, w.Bytes()...)
		emitted++
	}
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(out)-4))
	return out, rtype, nil
}

func statAttrByName(f *fid.File, name string) (wire.Attr, error) {
	var st unix.Stat_t
	rel := joinPath(f.Path(), name)
	if err := unix.Fstatat(f.RootDirFd(), rel, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return wire.Attr{}, err
	}
	return wire.Attr{
		Qid:       wire.NewQid(0, uint32(st.Mtim.Sec), uint64(st.Ino)),
		Mode:      uint32(st.Mode),
		UID:       st.Uid,
		GID:       st.Gid,
		Nlink:     uint64(st.Nlink),
		Rdev:      st.Rdev,
		Size:      uint64(st.Size),
		Blksize:   uint64(st.Blksize),
		Blocks:    uint64(st.Blocks),
		AtimeSec:  uint64(st.Atim.Sec),
		AtimeNsec: uint64(st.Atim.Nsec),
		MtimeSec:  uint64(st.Mtim.Sec),
		MtimeNsec: uint64(st.Mtim.Nsec),
		CtimeSec:  uint64(st.Ctim.Sec),
		CtimeNsec: uint64(st.Ctim.Nsec),
	}, nil
}
