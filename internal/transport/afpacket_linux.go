//go:build linux

package transport

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// AFPacket is the concrete Linux Transport implementation: an AF_PACKET
// SOCK_RAW socket bound to one interface, using golang.org/x/sys/unix
// for the AF_PACKET/BPF constants the bare syscall package doesn't
// expose.
type AFPacket struct {
	fd      int
	ifindex int
	broken  int32 // atomic bool, set by BreakLoop
}

// NewAFPacket returns an unopened AFPacket transport.
func NewAFPacket() *AFPacket { return &AFPacket{fd: -1} }

func (t *AFPacket) Open(iface string, snaplen int) error {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return fmt.Errorf("opening AF_PACKET socket: %w", err)
	}

	ifi, err := netInterfaceByName(iface)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("resolving interface %q: %w", iface, err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("binding to interface %q: %w", iface, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, snaplen*256); err != nil {
		glog.V(2).Infof("transport: SO_RCVBUF hint rejected: %v", err)
	}

	t.fd = fd
	t.ifindex = ifi
	glog.V(2).Infof("transport: opened AF_PACKET socket on %s (ifindex %d)", iface, ifi)
	return nil
}

// SetFilter installs a classic BPF program matching the configured
// IP-type. The generated program is intentionally small: ethertype ==
// IPv6 and next-header == ipType. dstAddr and dstPort are not part of
// the program; the receiver checks the destination address and, when
// the source port is pinned, the destination port in Go after capture.
func (t *AFPacket) SetFilter(ipType uint8, dstAddr [16]byte, dstPort int) error {
	prog := buildEtherTypeAndProtoFilter(ipType)
	sockFilter := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: (*unix.SockFilter)(unsafe.Pointer(&prog[0])),
	}
	return unix.SetsockoptSockFprog(t.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &sockFilter)
}

func (t *AFPacket) Send(frame []byte) error {
	sa := &unix.SockaddrLinklayer{Ifindex: t.ifindex}
	return unix.Sendto(t.fd, frame, 0, sa)
}

func (t *AFPacket) Loop(cb func(tsNanos int64, frame []byte)) error {
	buf := make([]byte, 65536)
	for atomic.LoadInt32(&t.broken) == 0 {
		n, _, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if atomic.LoadInt32(&t.broken) != 0 {
				return nil
			}
			return fmt.Errorf("reading from AF_PACKET socket: %w", err)
		}
		cb(monotonicNowNanos(), buf[:n])
	}
	return nil
}

func (t *AFPacket) BreakLoop() {
	atomic.StoreInt32(&t.broken, 1)
}

func (t *AFPacket) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

func (t *AFPacket) HasEthernetHeaders() bool { return true }

func htons(v uint16) uint16 {
	return (v<<8)&0xff00 | (v>>8)&0x00ff
}

// buildEtherTypeAndProtoFilter returns a minimal classic-BPF program
// (`ether proto ipv6 and ip6 proto ipType`-equivalent) matching the
// "--attach-filter" shape the socket option expects.
func buildEtherTypeAndProtoFilter(ipType uint8) []unix.SockFilter {
	const (
		bpfLdH  = 0x28
		bpfLdB  = 0x30
		bpfJeq  = 0x15
		bpfRetK = 0x06
		etOff   = 12
		nhOff   = 20
	)
	return []unix.SockFilter{
		{Code: bpfLdH, K: etOff},
		{Code: bpfJeq, Jt: 0, Jf: 3, K: 0x86dd},
		{Code: bpfLdB, K: nhOff},
		{Code: bpfJeq, Jt: 0, Jf: 1, K: uint32(ipType)},
		{Code: bpfRetK, K: 0xffffffff},
		{Code: bpfRetK, K: 0},
	}
}
