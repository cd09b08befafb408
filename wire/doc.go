// Package wire implements the byte-level encoding used by the 9P2000.L
// and 9P2000.W protocol engine: message type and error constants, the
// Qid and attribute (stat) structures, and typed Reader/Writer pairs
// that operate in place over a caller-owned byte span.
//
// The package allocates nothing on the decode path beyond the strings
// it returns, and never grows a
// buffer on the encode path; callers are responsible for sizing the
// span they hand to a Writer (see Writer.Reset).
package wire
