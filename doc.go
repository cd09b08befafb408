/*
Package w9p implements a 9P2000.L/.W file server: the protocol engine
described by this repository's spec, wired into something a caller can
actually run against a net.Listener.

A Server owns a share.List (the named, host-backed roots clients attach
to) and hands each accepted connection to the accept package, which in
turn drives one conn.Conn per connection. The wire, sched, fid, share,
conn, and accept packages implement the protocol itself; this package
is the thin assembly that gives them a net.Listener, a logger, and the
server-wide identity (uid, whether the server runs as root) that the
attach handler's identity-resolution rules (spec §4.7) need.
*/
package w9p
