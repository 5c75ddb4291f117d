package scanner

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/bbhunter/fi6s/internal/banner"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/wire"
)

// receiveLoop drives the transport's capture loop and classifies every
// frame against this scan's own-flow fingerprint.
func (e *Engine) receiveLoop(ctx context.Context) {
	glog.V(2).Infoln("scanner: receiver starting")
	defer glog.V(2).Infoln("scanner: receiver done")

	err := e.Trans.Loop(func(tsNanos int64, frame []byte) {
		e.classify(tsNanos, frame)
	})
	if err != nil {
		glog.Errorf("scanner: receiver loop failed: %v", err)
		e.markReceiverError()
	}
}

func (e *Engine) classify(tsNanos int64, frame []byte) {
	atomicAddRecv(&e.pktsRecv)

	off := 0
	if e.Trans.HasEthernetHeaders() {
		if len(frame) < wire.EthSize {
			return
		}
		if wire.DecodeEthernet(frame) != wire.EtherTypeIPv6 {
			return
		}
		off = wire.EthSize
	}
	if len(frame) < off+wire.IPv6Size {
		return
	}
	nextHeader, _, dst := wire.DecodeIPv6(frame[off:])
	if dst != e.Config.Network.SourceIP {
		return
	}
	upper := frame[off+wire.IPv6Size:]
	ts := time.Unix(0, tsNanos).UTC()

	switch {
	case nextHeader == wire.IPTypeTCP && e.Config.IPType == scanconfig.IPTypeTCP:
		e.classifyTCP(ts, frame[off:off+wire.IPv6Size], upper)
	case nextHeader == wire.IPTypeUDP && e.Config.IPType == scanconfig.IPTypeUDP:
		e.classifyUDP(ts, frame[off:off+wire.IPv6Size], upper)
	case nextHeader == wire.IPTypeICMPv6 && e.Config.IPType == scanconfig.IPTypeICMPv6:
		e.classifyICMPv6(ts, frame[off:off+wire.IPv6Size], upper)
	}
}

// classifyTCP implements its TCP classification: require flags
// ACK && (SYN || RST). SYN+ACK replies with our own FirstSeqNum+1 ack
// number are an OPEN status; RST+ACK is CLOSED, emitted only with
// show-closed or when the sink is raw (binary).
func (e *Engine) classifyTCP(ts time.Time, ipv6, tcp []byte) {
	if len(tcp) < wire.TCPSize {
		return
	}
	flags := wire.TCPFlags(tcp)
	if flags&wire.FlagACK == 0 {
		return
	}
	if flags&(wire.FlagSYN|wire.FlagRST) == 0 {
		return
	}

	// Every SYN this scanner sends carries the fixed FirstSeqNum ISN
	// (senders.go always passes it to wire.MakeSYN), so a reply to one of
	// them acknowledges exactly FirstSeqNum+1. The flag check above does
	// not establish that; this check drops replies to anyone else's SYNs.
	srcPort, dstPort, ackNum := wire.DecodeTCP(tcp)
	if ackNum != FirstSeqNum+1 {
		return
	}
	if e.Config.SourcePort != scanconfig.SourcePortRandom && int(dstPort) != e.Config.SourcePort {
		return
	}

	_, srcAddr, _ := wire.DecodeIPv6(ipv6)

	status := scanconfig.StatusClosed
	if flags&wire.FlagSYN != 0 {
		status = scanconfig.StatusOpen
	}
	if status == scanconfig.StatusClosed && !e.Config.ShowClosed && !e.Out.Raw() {
		return
	}

	e.emitStatus(scanconfig.ScanStatus{
		Timestamp: ts, SourceIP: srcAddr, Proto: scanconfig.IPTypeTCP,
		SrcPort: dstPort, DstPort: srcPort, Status: status,
	})

	if status == scanconfig.StatusOpen && e.Config.Banners && e.responder != nil {
		e.responder.Offer(srcAddr, srcPort, ts)
	}
}

// classifyUDP implements its UDP classification: any reply is
// OPEN; a non-empty datagram with banners enabled is also captured as a
// banner event.
func (e *Engine) classifyUDP(ts time.Time, ipv6, udp []byte) {
	if len(udp) < wire.UDPSize {
		return
	}
	srcPort, dstPort := wire.DecodeUDP(udp)
	if e.Config.SourcePort != scanconfig.SourcePortRandom && int(dstPort) != e.Config.SourcePort {
		return
	}
	_, srcAddr, _ := wire.DecodeIPv6(ipv6)

	e.emitStatus(scanconfig.ScanStatus{
		Timestamp: ts, SourceIP: srcAddr, Proto: scanconfig.IPTypeUDP,
		SrcPort: dstPort, DstPort: srcPort, Status: scanconfig.StatusOpen,
	})

	if !e.Config.Banners {
		return
	}
	payload := udp[wire.UDPSize:]
	if len(payload) == 0 {
		return
	}
	if len(payload) > banner.BannerMaxLength {
		payload = payload[:banner.BannerMaxLength]
	}
	stored := append([]byte(nil), payload...)
	e.emitBanner(scanconfig.ScanBanner{
		Timestamp: ts, SourceIP: srcAddr, Proto: scanconfig.IPTypeUDP,
		Port: srcPort, Payload: stored,
	})
}

// classifyICMPv6 requires Echo Reply with our own fingerprint body.
func (e *Engine) classifyICMPv6(ts time.Time, ipv6, icmp []byte) {
	if len(icmp) < wire.ICMPSize {
		return
	}
	icmpType, _, body := wire.DecodeEchoReply(icmp)
	if icmpType != wire.ICMPTypeEchoReply || body != ICMPBody {
		return
	}
	_, srcAddr, _ := wire.DecodeIPv6(ipv6)
	e.emitStatus(scanconfig.ScanStatus{
		Timestamp: ts, SourceIP: srcAddr, Proto: scanconfig.IPTypeICMPv6,
		Status: scanconfig.StatusUp,
	})
}

func (e *Engine) emitStatus(s scanconfig.ScanStatus) {
	if err := e.Out.Status(s); err != nil {
		glog.Errorf("scanner: writing status event: %v", err)
	}
}

func (e *Engine) emitBanner(b scanconfig.ScanBanner) {
	if err := e.Out.Banner(b); err != nil {
		glog.Errorf("scanner: writing banner event: %v", err)
	}
}
