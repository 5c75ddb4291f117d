package wire

import "encoding/binary"

// ipv6 header layout, offsets relative to the start of the IPv6 frame:
//
//	0       version(4) + traffic class(8) + flow label(20)
//	4       payload length (2)
//	6       next header (1)
//	7       hop limit (1)
//	8-23    source address
//	24-39   destination address

// PrepareIPv6 writes the fixed parts of an IPv6 header: version 6, zero
// traffic class/flow label, next-header (the scan's IP-type), hop limit
// (TTL) and the source address. Payload length and destination address
// are filled in per-packet by ModifyIPv6.
func PrepareIPv6(buf []byte, nextHeader uint8, srcAddr [16]byte, hopLimit uint8) {
	binary.BigEndian.PutUint32(buf[0:4], 6<<28)
	buf[6] = nextHeader
	buf[7] = hopLimit
	copy(buf[8:24], srcAddr[:])
}

// ModifyIPv6 sets the payload length and destination address for the
// next packet to be sent.
func ModifyIPv6(buf []byte, payloadLen uint16, dstAddr [16]byte) {
	binary.BigEndian.PutUint16(buf[4:6], payloadLen)
	copy(buf[24:40], dstAddr[:])
}

// DecodeIPv6 extracts the next-header value and the source/destination
// addresses of a captured IPv6 header.
func DecodeIPv6(buf []byte) (nextHeader uint8, src, dst [16]byte) {
	nextHeader = buf[6]
	copy(src[:], buf[8:24])
	copy(dst[:], buf[24:40])
	return
}

// PseudoHeaderChecksum folds the IPv6 pseudo-header (source, destination,
// upper-layer length, next header) into a running checksum accumulator,
// per RFC 8200 §8.1 / the original ph struct in udp.c.
func PseudoHeaderChecksum(srcAddr, dstAddr [16]byte, upperLen uint32, nextHeader uint8) uint32 {
	var sum uint32
	sum += chksumAdd(srcAddr[:])
	sum += chksumAdd(dstAddr[:])
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], upperLen)
	sum += chksumAdd(lenBuf[:])
	sum += uint32(nextHeader)
	return sum
}
