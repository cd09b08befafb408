package wire

import "encoding/binary"

// A Writer encodes typed fields into a caller-owned byte span, writing
// in place and never reallocating. Callers size the span up front (see
// the conn package's response-buffer policy, spec §4.4) and hand it to
// Reset before encoding a message body.
//
// Grounded on the teacher's styxproto.Encoder / internal.ErrWriter
// pattern of accumulating a write offset and deferring error handling,
// adapted here to a fixed span instead of a streaming bufio.Writer: an
// overflow is a programmer error (the caller mis-sized the buffer), not
// an I/O error, so Writer panics on overflow rather than threading an
// error return through every Put call.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a Writer over buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Reset rebinds the Writer to a new span and resets the write position
// to 0.
func (w *Writer) Reset(buf []byte) {
	w.buf = buf
	w.pos = 0
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.pos }

// Bytes returns the portion of the span written so far.
func (w *Writer) Bytes() []byte { return w.buf[:w.pos] }

// Cap returns the capacity of the underlying span.
func (w *Writer) Cap() int { return len(w.buf) }

func (w *Writer) reserve(n int) []byte {
	if w.pos+n > len(w.buf) {
		panic("wire: Writer overflow: response buffer undersized")
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b
}

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) {
	w.reserve(1)[0] = v
}

// PutUint16 appends a little-endian 16-bit integer.
func (w *Writer) PutUint16(v uint16) {
	binary.LittleEndian.PutUint16(w.reserve(2), v)
}

// PutUint32 appends a little-endian 32-bit integer.
func (w *Writer) PutUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.reserve(4), v)
}

// PutUint64 appends a little-endian 64-bit integer.
func (w *Writer) PutUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.reserve(8), v)
}

// PutQid appends a 13-byte Qid.
func (w *Writer) PutQid(q Qid) {
	copy(w.reserve(QidLen), q[:])
}

// PutAttr appends a getattr/stat_result record.
func (w *Writer) PutAttr(a Attr) {
	a.Encode(w.reserve(AttrLen))
}

// PutAttrTail appends the mode..data_version tail of an Attr record,
// used by Rwopen (see AttrTailLen).
func (w *Writer) PutAttrTail(a Attr) {
	a.EncodeTail(w.reserve(AttrTailLen))
}

// PutString appends a length-prefixed string: len[2] bytes.
func (w *Writer) PutString(s string) {
	w.PutUint16(uint16(len(s)))
	copy(w.reserve(len(s)), s)
}

// PutBytes appends a raw byte payload with no length prefix (used for
// Rread bodies, whose count field was already written separately).
func (w *Writer) PutBytes(p []byte) {
	copy(w.reserve(len(p)), p)
}

// Backpatch writes the (size, type, tag) header at offset 0 of the
// span, using the number of bytes written so far as size. It must be
// called after the full body has been written, and only once.
func (w *Writer) Backpatch(mtype uint8, tag uint16) {
	if len(w.buf) < HeaderLen {
		panic("wire: Writer span shorter than header")
	}
	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(w.pos))
	w.buf[4] = mtype
	binary.LittleEndian.PutUint16(w.buf[5:7], tag)
}

// WriteHeaderPlaceholder advances past the 7-byte header so callers can
// write the body first and Backpatch afterward, matching the order
// spec §4.1 describes ("a header-backpatch operation that writes
// (size,type,tag) at offset 0 after the body has been written").
func (w *Writer) WriteHeaderPlaceholder() {
	w.reserve(HeaderLen)
}
