package wire

import (
	"bytes"
	"encoding/binary"
)

// A Reader decodes typed fields from a caller-owned byte span in
// sequence. It allocates nothing beyond the Go strings that String and
// PathElem return, and never reads past the span it was given. Every
// decode operation checks the remaining length first; once
// a shortage is hit, the Reader remembers the error and every
// subsequent read is a no-op returning the zero value, so a handler can
// perform a whole sequence of reads and check Err() once at the end.
//
// Grounded on the teacher's styxproto.Decoder sliding-window design,
// simplified to a flat span since frame reassembly (§4.4 of the spec)
// is the connection handler's job, not the codec's.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader returns a Reader over buf. buf is not copied; it must
// remain valid and unmodified for the lifetime of the Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Reset rebinds the Reader to a new span, clearing any previous error.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.pos = 0
	r.err = nil
}

// Err returns the first error encountered while decoding, if any.
func (r *Reader) Err() error { return r.err }

// Len returns the number of unread bytes remaining in the span.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Pos returns the current read offset into the span.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.Len() < n {
		r.fail(ErrShortFrame)
		return false
	}
	return true
}

// Uint8 decodes a single byte.
func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

// Uint16 decodes a little-endian 16-bit integer.
func (r *Reader) Uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

// Uint32 decodes a little-endian 32-bit integer.
func (r *Reader) Uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

// Uint64 decodes a little-endian 64-bit integer.
func (r *Reader) Uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

// Qid decodes a 13-byte Qid.
func (r *Reader) Qid() Qid {
	var q Qid
	if !r.need(QidLen) {
		return q
	}
	copy(q[:], r.buf[r.pos:r.pos+QidLen])
	r.pos += QidLen
	return q
}

// Attr decodes a getattr/stat_result record.
func (r *Reader) Attr() Attr {
	if !r.need(AttrLen) {
		return Attr{}
	}
	a, err := DecodeAttr(r.buf[r.pos : r.pos+AttrLen])
	if err != nil {
		r.fail(err)
		return Attr{}
	}
	r.pos += AttrLen
	return a
}

// AttrTail decodes the mode..data_version tail of an Attr record (see
// AttrTailLen), used when parsing an Rwopen response.
func (r *Reader) AttrTail() Attr {
	if !r.need(AttrTailLen) {
		return Attr{}
	}
	a, err := decodeAttrTail(r.buf[r.pos : r.pos+AttrTailLen])
	if err != nil {
		r.fail(err)
		return Attr{}
	}
	r.pos += AttrTailLen
	return a
}

// rawString decodes a length-prefixed string with no path-component
// validation: a 16-bit byte length followed by that many bytes.
func (r *Reader) rawString() []byte {
	if !r.need(2) {
		return nil
	}
	n := int(binary.LittleEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	if !r.need(n) {
		return nil
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	return s
}

// String decodes a free-form length-prefixed string (no path-component
// restrictions: used for aname, symlink targets, xattr names, etc).
func (r *Reader) String() string {
	s := r.rawString()
	if r.err != nil {
		return ""
	}
	// truncate at first NUL, matching the teacher's and the original
	// server's C-string handling of names read off the wire.
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// PathElem decodes a length-prefixed string and validates it as a
// single path component: after String's truncation at the first NUL
// byte, it must not be empty, ".", "..", and must not contain '/'.
// These rules apply only to path components (wname
// elements, file/link/xattr names), not to free-form strings such as
// aname or symlink targets.
func (r *Reader) PathElem() string {
	s := r.String()
	if r.err != nil {
		return ""
	}
	switch s {
	case "", ".", "..":
		r.fail(ErrReservedName)
		return ""
	}
	if bytes.ContainsRune([]byte(s), '/') {
		r.fail(ErrContainsSlash)
		return ""
	}
	return s
}

// Bytes returns the next n raw bytes without copying. The returned
// slice aliases the Reader's span and is only valid until the span is
// reused.
func (r *Reader) Bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// Rest returns every remaining unread byte in the span, without
// advancing past it logically consuming an error state.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

// TryUint32 is an advisory variant of Uint32 used by parsers (logging,
// directory-entry iteration) that want a success flag instead of
// sticking an error in the Reader for the rest of the sequence.
func (r *Reader) TryUint32() (uint32, bool) {
	if r.Len() < 4 {
		return 0, false
	}
	return r.Uint32(), true
}

// TryString is the advisory variant of String.
func (r *Reader) TryString() (string, bool) {
	if r.Len() < 2 {
		return "", false
	}
	save := r.pos
	n := int(binary.LittleEndian.Uint16(r.buf[save:]))
	if r.Len() < 2+n {
		return "", false
	}
	return r.String(), true
}
