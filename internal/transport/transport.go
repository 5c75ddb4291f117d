// Package transport provides the raw packet capture/injection surface a
// scan runs over: open, set filter, send, loop, break loop, close. It
// provides one concrete Linux implementation backed by an AF_PACKET
// SOCK_RAW socket (golang.org/x/sys/unix in place of the bare syscall
// package), plus a second, in-process Mock implementation used by tests
// that never need a real interface.
package transport

// Transport is the capture/injection surface the scanner runtime, the
// senders, and the receiver are built against.
type Transport interface {
	// Open binds the transport to the named interface with the given
	// snapshot length.
	Open(iface string, snaplen int) error

	// SetFilter installs a capture filter matching the given IP-type and
	// destination address, and optionally destination port if pinned.
	SetFilter(ipType uint8, dstAddr [16]byte, dstPort int) error

	// Send transmits one complete Ethernet frame.
	Send(frame []byte) error

	// Loop blocks, invoking cb for every captured frame, until BreakLoop
	// is called or an unrecoverable read error occurs.
	Loop(cb func(tsNanos int64, frame []byte)) error

	// BreakLoop unblocks a concurrent Loop call.
	BreakLoop()

	// Close releases the underlying socket.
	Close() error

	// HasEthernetHeaders reports whether frames passed to Send/Loop
	// include a 14-byte Ethernet header (true for AF_PACKET; a
	// hypothetical IP-layer-only backend would report false).
	HasEthernetHeaders() bool
}
