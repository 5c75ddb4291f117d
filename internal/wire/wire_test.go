package wire

import "testing"

func TestTCPSynChecksumRoundTrips(t *testing.T) {
	buf := make([]byte, EthSize+IPv6Size+TCPSize)
	var srcMAC, dstMAC [6]byte
	copy(srcMAC[:], []byte{1, 2, 3, 4, 5, 6})
	copy(dstMAC[:], []byte{6, 5, 4, 3, 2, 1})
	PrepareEthernet(buf, srcMAC, dstMAC, EtherTypeIPv6)

	ipv6 := buf[EthSize:]
	var src, dst [16]byte
	src[0] = 0x20
	dst[0] = 0x20
	dst[15] = 1
	PrepareIPv6(ipv6, IPTypeTCP, src, 64)
	ModifyIPv6(ipv6, TCPSize, dst)

	tcp := buf[EthSize+IPv6Size:]
	PrepareTCP(tcp)
	MakeSYN(tcp, 0xF0000000)
	ModifyTCP(tcp, 12345, 80)
	ChecksumTCP(ipv6, tcp, 0)

	// The checksum over a correctly-summed packet including its own
	// checksum field must fold to zero.
	_, s, d := DecodeIPv6(ipv6)
	ph := PseudoHeaderChecksum(s, d, TCPSize, IPTypeTCP)
	if got := chksumFinal(ph, tcp[:TCPSize]); got != 0 {
		t.Fatalf("checksum did not fold to zero: %#x", got)
	}

	if DecodeEthernet(buf) != EtherTypeIPv6 {
		t.Fatalf("ethertype mismatch")
	}
	nh, _, gotDst := DecodeIPv6(ipv6)
	if nh != IPTypeTCP {
		t.Fatalf("next header mismatch: %d", nh)
	}
	if gotDst != dst {
		t.Fatalf("dst addr mismatch")
	}
	srcPort, dstPort, ack := DecodeTCP(tcp)
	if srcPort != 12345 || dstPort != 80 || ack != 0 {
		t.Fatalf("decode mismatch: %d %d %d", srcPort, dstPort, ack)
	}
	if TCPFlags(tcp) != FlagSYN {
		t.Fatalf("expected SYN flag only")
	}
}

func TestUDPChecksumAvoidsZero(t *testing.T) {
	ipv6 := make([]byte, IPv6Size)
	var src, dst [16]byte
	src[0] = 0x20
	dst[0] = 0x20
	PrepareIPv6(ipv6, IPTypeUDP, src, 64)
	ModifyIPv6(ipv6, UDPSize, dst)

	udp := make([]byte, UDPSize)
	ModifyUDP(udp, 1, 1)
	ModifyUDPLength(udp, 0)
	ChecksumUDP(ipv6, udp, 0)

	sum := udp[6:8]
	if sum[0] == 0 && sum[1] == 0 {
		t.Fatalf("UDP checksum must never be transmitted as zero on IPv6")
	}
}

func TestICMPv6EchoRoundTrip(t *testing.T) {
	ipv6 := make([]byte, IPv6Size)
	var src, dst [16]byte
	src[0] = 0x20
	dst[15] = 1
	PrepareIPv6(ipv6, IPTypeICMPv6, src, 64)
	ModifyIPv6(ipv6, ICMPSize, dst)

	icmp := make([]byte, ICMPSize)
	PrepareEchoRequest(icmp, 0xcafebabe)
	ChecksumICMPv6(ipv6, icmp, 0)

	typ, code, body := DecodeEchoReply(icmp)
	if typ != ICMPTypeEchoRequest || code != 0 || body != 0xcafebabe {
		t.Fatalf("unexpected decode: %d %d %#x", typ, code, body)
	}
}
