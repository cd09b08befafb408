package wire

// parseError is modeled on the teacher's styxproto.parseError: a string
// type implementing error, cheap to declare as package-level constants.
type parseError string

func (p parseError) Error() string { return string(p) }

// Decode errors. These indicate a malformed frame; per spec §7 they are
// protocol faults, fatal for the request (and, if the frame cannot even
// be parsed, for the connection).
const (
	ErrShortFrame   = parseError("frame too short for field")
	ErrContainsSlash = parseError("name contains '/'")
	ErrReservedName = parseError(`name is "", "." or ".."`)
	ErrNulByte      = parseError("name contains a NUL byte")
	ErrTooManyWElem = parseError("too many walk elements")
	ErrStringTooLong = parseError("string exceeds field limit")
)
