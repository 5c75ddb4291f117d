package scanner

import (
	"context"
	"math/rand"
	"time"

	"github.com/golang/glog"

	"github.com/bbhunter/fi6s/internal/banner"
	"github.com/bbhunter/fi6s/internal/wire"
)

// sendTCP implements the TCP SYN sender: for every generator
// address, iterate the whole configured port set, building and emitting
// one SYN per (address, port).
func (e *Engine) sendTCP(ctx context.Context) {
	glog.V(2).Infoln("scanner: TCP sender starting")
	defer glog.V(2).Infoln("scanner: TCP sender done")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	buf := make([]byte, wire.EthSize+wire.IPv6Size+wire.TCPSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		addr, ok := e.Gen.Next()
		if !ok {
			return
		}

		e.Config.Ports.Begin()
		for {
			port, ok := e.Config.Ports.Next()
			if !ok {
				break
			}

			srcPort := uint16(e.Config.SourcePort)
			if e.Config.SourcePort == -1 {
				srcPort = randomEphemeralPort(rng)
			}

			wire.PrepareEthernet(buf, e.Config.Network.SourceMAC, e.Config.Network.RouterMAC, wire.EtherTypeIPv6)
			wire.PrepareIPv6(buf[wire.EthSize:], wire.IPTypeTCP, e.Config.Network.SourceIP, e.Config.Network.TTL)
			wire.ModifyIPv6(buf[wire.EthSize:], wire.TCPSize, addr)
			wire.PrepareTCP(buf[wire.EthSize+wire.IPv6Size:])
			wire.MakeSYN(buf[wire.EthSize+wire.IPv6Size:], FirstSeqNum)
			wire.ModifyTCP(buf[wire.EthSize+wire.IPv6Size:], srcPort, port)
			wire.ChecksumTCP(buf[wire.EthSize:], buf[wire.EthSize+wire.IPv6Size:], 0)

			e.rateControlDelay(ctx)
			if err := e.Trans.Send(buf); err != nil {
				glog.Errorf("scanner: TCP send failed: %v", err)
				e.markSenderError()
				return
			}
		}
	}
}

// sendUDP implements the stateless UDP probe sender: one
// datagram per (address, port), carrying a per-port query template when
// banners are enabled.
func (e *Engine) sendUDP(ctx context.Context) {
	glog.V(2).Infoln("scanner: UDP sender starting")
	defer glog.V(2).Infoln("scanner: UDP sender done")

	const maxFrame = wire.EthSize + wire.IPv6Size + wire.UDPSize + 512
	buf := make([]byte, maxFrame)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		addr, ok := e.Gen.Next()
		if !ok {
			return
		}

		e.Config.Ports.Begin()
		for {
			port, ok := e.Config.Ports.Next()
			if !ok {
				break
			}

			payload := []byte(nil)
			if e.Config.Banners {
				payload = banner.Query(port)
			}
			frameLen := wire.EthSize + wire.IPv6Size + wire.UDPSize + len(payload)
			frame := buf[:frameLen]

			wire.PrepareEthernet(frame, e.Config.Network.SourceMAC, e.Config.Network.RouterMAC, wire.EtherTypeIPv6)
			wire.PrepareIPv6(frame[wire.EthSize:], wire.IPTypeUDP, e.Config.Network.SourceIP, e.Config.Network.TTL)
			wire.ModifyIPv6(frame[wire.EthSize:], uint16(wire.UDPSize+len(payload)), addr)

			srcPort := uint16(e.Config.SourcePort)
			if e.Config.SourcePort == -1 {
				srcPort = randomEphemeralPort(rng)
			}
			udpOff := wire.EthSize + wire.IPv6Size
			wire.ModifyUDP(frame[udpOff:], srcPort, port)
			wire.ModifyUDPLength(frame[udpOff:], len(payload))
			copy(frame[udpOff+wire.UDPSize:], payload)
			wire.ChecksumUDP(frame[wire.EthSize:], frame[udpOff:], len(payload))

			e.rateControlDelay(ctx)
			if err := e.Trans.Send(frame); err != nil {
				glog.Errorf("scanner: UDP send failed: %v", err)
				e.markSenderError()
				return
			}
		}
	}
}

// sendICMPv6 implements the ICMPv6 Echo sweep sender: one
// Echo Request per generator address; the port iterator is unused.
func (e *Engine) sendICMPv6(ctx context.Context) {
	glog.V(2).Infoln("scanner: ICMPv6 sender starting")
	defer glog.V(2).Infoln("scanner: ICMPv6 sender done")

	buf := make([]byte, wire.EthSize+wire.IPv6Size+wire.ICMPSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		addr, ok := e.Gen.Next()
		if !ok {
			return
		}

		wire.PrepareEthernet(buf, e.Config.Network.SourceMAC, e.Config.Network.RouterMAC, wire.EtherTypeIPv6)
		wire.PrepareIPv6(buf[wire.EthSize:], wire.IPTypeICMPv6, e.Config.Network.SourceIP, e.Config.Network.TTL)
		wire.ModifyIPv6(buf[wire.EthSize:], wire.ICMPSize, addr)
		wire.PrepareEchoRequest(buf[wire.EthSize+wire.IPv6Size:], ICMPBody)
		wire.ChecksumICMPv6(buf[wire.EthSize:], buf[wire.EthSize+wire.IPv6Size:], 0)

		e.rateControlDelay(ctx)
		if err := e.Trans.Send(buf); err != nil {
			glog.Errorf("scanner: ICMPv6 send failed: %v", err)
			e.markSenderError()
			return
		}
	}
}
