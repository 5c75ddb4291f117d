// Package wire implements the byte-level Ethernet/IPv6/TCP/UDP/ICMPv6
// frame builders, modifiers and decoders that the scanner drives.
package wire

import "encoding/binary"

// Fixed frame sizes, in bytes.
const (
	EthSize  = 14
	IPv6Size = 40
	TCPSize  = 20
	UDPSize  = 8
	ICMPSize = 8
)

// EtherType values.
const (
	EtherTypeIPv6 = 0x86DD
)

// IPv6 next-header / IP-type values used throughout the scanner.
const (
	IPTypeTCP    = 6
	IPTypeUDP    = 17
	IPTypeICMPv6 = 58
)

// PrepareEthernet writes a fixed Ethernet header prefix: destination MAC
// (the router/gateway MAC), source MAC, and EtherType. The senders call
// it before every packet; they do not keep a prepared prefix across
// packets.
func PrepareEthernet(buf []byte, srcMAC, dstMAC [6]byte, etherType uint16) {
	copy(buf[0:6], dstMAC[:])
	copy(buf[6:12], srcMAC[:])
	binary.BigEndian.PutUint16(buf[12:14], etherType)
}

// DecodeEthernet returns the frame's EtherType.
func DecodeEthernet(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf[12:14])
}
