package wire

import "encoding/binary"

// ICMPv6 message types this scanner cares about.
const (
	ICMPTypeEchoRequest = 128
	ICMPTypeEchoReply   = 129
)

// icmpv6 header layout: type(1), code(1), checksum(2), body(4)
// body carries identifier+sequence as a single fingerprint word, per the
// scanner's ICMP_BODY own-flow fingerprint.

// PrepareEchoRequest writes an ICMPv6 Echo Request with the fixed
// identifier/sequence fingerprint used to recognize this scan's own
// replies.
func PrepareEchoRequest(buf []byte, body uint32) {
	buf[0] = ICMPTypeEchoRequest
	buf[1] = 0
	binary.BigEndian.PutUint32(buf[4:8], body)
}

// ChecksumICMPv6 computes and writes the ICMPv6 checksum over the IPv6
// pseudo-header plus the ICMPv6 message.
func ChecksumICMPv6(ipv6 []byte, icmp []byte, dataLen int) {
	_, src, dst := DecodeIPv6(ipv6)
	ph := PseudoHeaderChecksum(src, dst, uint32(ICMPSize+dataLen), IPTypeICMPv6)
	binary.BigEndian.PutUint16(icmp[2:4], 0)
	sum := chksumFinal(ph, icmp[:ICMPSize+dataLen])
	binary.BigEndian.PutUint16(icmp[2:4], sum)
}

// DecodeEchoReply extracts type, code and fingerprint body from a
// captured ICMPv6 message.
func DecodeEchoReply(buf []byte) (icmpType, code uint8, body uint32) {
	icmpType = buf[0]
	code = buf[1]
	body = binary.BigEndian.Uint32(buf[4:8])
	return
}
