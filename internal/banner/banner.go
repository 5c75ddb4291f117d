// Package banner implements a small built-in table of per-port query
// templates and post-processors. A full template library covering every
// service is intentionally out of scope here, but the lookup/post-process
// interface itself is exercised by the UDP sender, the TCP/UDP
// classifiers, and the banner responder, so it needs a concrete (if
// minimal) table to stand behind that interface.
package banner

import (
	"bytes"
	"fmt"
)

// BannerMaxLength caps how many bytes of a reply are copied into a
// ScanBanner event.
const BannerMaxLength = 512

// Query returns the probe bytes to send after a UDP datagram's header for
// the given destination port, or nil if no query template is registered
// (the datagram is then sent with zero length).
func Query(port uint16) []byte {
	if q, ok := udpQueries[port]; ok {
		return q
	}
	return nil
}

// PostProcess rewrites a captured banner payload for human-readable
// output, unless the sink wants raw payloads. Binary-mode storage
// always bypasses this and keeps the payload verbatim.
func PostProcess(port uint16, payload []byte) []byte {
	if p, ok := postProcessors[port]; ok {
		return p(payload)
	}
	return payload
}

var udpQueries = map[uint16][]byte{
	53:  dnsVersionBindQuery(),
	123: ntpClientQuery(),
}

var postProcessors = map[uint16]func([]byte) []byte{
	80:   httpStatusLine,
	8080: httpStatusLine,
	53:   dnsFirstAnswer,
}

// dnsVersionBindQuery builds a minimal "CHAOS TXT version.bind" query:
// a fixed-ID header asking a single question, matching the classic
// version-probe used by DNS fingerprinting tools.
func dnsVersionBindQuery() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x13, 0x37, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	for _, label := range []string{"version", "bind"} {
		buf.WriteByte(byte(len(label)))
		buf.WriteString(label)
	}
	buf.WriteByte(0)
	buf.Write([]byte{0x00, 0x10, 0x00, 0x03}) // QTYPE=TXT, QCLASS=CHAOS
	return buf.Bytes()
}

// ntpClientQuery builds a minimal NTP client request (mode 3, version 4)
// with an all-zero payload, enough to elicit a server reply carrying a
// reference identifier worth capturing.
func ntpClientQuery() []byte {
	buf := make([]byte, 48)
	buf[0] = 0x23 // LI=0, VN=4, Mode=3 (client)
	return buf
}

func httpStatusLine(payload []byte) []byte {
	if i := bytes.IndexByte(payload, '\n'); i >= 0 {
		return bytes.TrimRight(payload[:i], "\r")
	}
	return payload
}

func dnsFirstAnswer(payload []byte) []byte {
	if len(payload) < 12 {
		return payload
	}
	ancount := int(payload[6])<<8 | int(payload[7])
	return []byte(fmt.Sprintf("%d answer(s), %d bytes", ancount, len(payload)))
}
