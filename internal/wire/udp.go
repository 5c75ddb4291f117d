package wire

import "encoding/binary"

// udp header layout: source port, dest port, length, checksum (2 bytes each)

// ModifyUDP sets source/destination port.
func ModifyUDP(buf []byte, srcPort, dstPort uint16) {
	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
}

// ModifyUDPLength sets the UDP length field (header + payload).
func ModifyUDPLength(buf []byte, dataLen int) {
	binary.BigEndian.PutUint16(buf[4:6], uint16(UDPSize+dataLen))
}

// ChecksumUDP computes and writes the UDP checksum over the IPv6
// pseudo-header plus the UDP header and trailing data. UDPv6 checksums
// are mandatory, unlike UDPv4's optional checksum.
func ChecksumUDP(ipv6 []byte, udp []byte, dataLen int) {
	_, src, dst := DecodeIPv6(ipv6)
	ph := PseudoHeaderChecksum(src, dst, uint32(UDPSize+dataLen), IPTypeUDP)
	binary.BigEndian.PutUint16(udp[6:8], 0)
	sum := chksumFinal(ph, udp[:UDPSize+dataLen])
	if sum == 0 {
		sum = 0xffff // a computed zero checksum is illegal on the wire
	}
	binary.BigEndian.PutUint16(udp[6:8], sum)
}

// DecodeUDP extracts source/destination port from a captured UDP header.
func DecodeUDP(buf []byte) (srcPort, dstPort uint16) {
	srcPort = binary.BigEndian.Uint16(buf[0:2])
	dstPort = binary.BigEndian.Uint16(buf[2:4])
	return
}
