package scanner

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bbhunter/fi6s/internal/output"
	"github.com/bbhunter/fi6s/internal/ports"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/target"
	"github.com/bbhunter/fi6s/internal/transport"
	"github.com/bbhunter/fi6s/internal/wire"
)

func newTestEngine(t *testing.T, ipType scanconfig.IPType) (*Engine, *transport.Mock, *bytes.Buffer) {
	t.Helper()
	pset, err := ports.Parse("443")
	if err != nil {
		t.Fatalf("parse ports: %v", err)
	}
	spec, err := target.ParseSpec("2001:db8::/126")
	if err != nil {
		t.Fatalf("parse spec: %v", err)
	}
	gen := target.NewGenerator(rand.New(rand.NewSource(1)))
	gen.SetRandomized(false)
	if err := gen.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := gen.FinishAdd(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	cfg := scanconfig.ScanConfig{
		Network: scanconfig.NetworkSettings{
			SourceMAC: [6]byte{1, 2, 3, 4, 5, 6},
			RouterMAC: [6]byte{6, 5, 4, 3, 2, 1},
			SourceIP:  [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		},
		SourcePort: 40000,
		IPType:     ipType,
		Ports:      pset,
		MaxRate:    0, // unbounded, keeps the test fast
	}

	mock := transport.NewMock()
	_ = mock.Open("eth0", 65535)

	var buf bytes.Buffer
	out, err := output.NewWriter(&buf, output.ListSink{})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	e := NewEngine(cfg, gen, mock, out)
	return e, mock, &buf
}

func TestSendTCPEmitsOneSYNPerAddressPort(t *testing.T) {
	e, mock, _ := newTestEngine(t, scanconfig.IPTypeTCP)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.sendTCP(ctx)

	// 4 addresses (/126) x 1 port = 4 SYNs.
	if len(mock.Sent) != 4 {
		t.Fatalf("expected 4 SYNs sent, got %d", len(mock.Sent))
	}
	for _, frame := range mock.Sent {
		tcp := frame[wire.EthSize+wire.IPv6Size:]
		if wire.TCPFlags(tcp) != wire.FlagSYN {
			t.Fatalf("expected bare SYN flag, got %#x", wire.TCPFlags(tcp))
		}
		_, _, ack := wire.DecodeTCP(tcp)
		if ack != 0 {
			t.Fatalf("expected zero ack on outbound SYN, got %d", ack)
		}
	}
}

// buildSynAck constructs a captured frame that looks like a SYN+ACK
// reply to our own scan (own-flow fingerprint: ack == FirstSeqNum+1).
func buildSynAck(t *testing.T, srcAddr, dstAddr [16]byte, srcPort, dstPort uint16) []byte {
	t.Helper()
	buf := make([]byte, wire.EthSize+wire.IPv6Size+wire.TCPSize)
	wire.PrepareEthernet(buf, [6]byte{9, 9, 9, 9, 9, 9}, [6]byte{1, 1, 1, 1, 1, 1}, wire.EtherTypeIPv6)
	wire.PrepareIPv6(buf[wire.EthSize:], wire.IPTypeTCP, srcAddr, 64)
	wire.ModifyIPv6(buf[wire.EthSize:], wire.TCPSize, dstAddr)
	tcp := buf[wire.EthSize+wire.IPv6Size:]
	wire.PrepareTCP(tcp)
	wire.ModifyTCP(tcp, srcPort, dstPort)
	tcp[13] = wire.FlagSYN | wire.FlagACK
	// sequence number from the peer is irrelevant to classification;
	// only our own ack number matters.
	tcp[8], tcp[9], tcp[10], tcp[11] = 0xf0, 0, 0, 1 // big-endian FirstSeqNum+1
	wire.ChecksumTCP(buf[wire.EthSize:], tcp, 0)
	return buf
}

func TestReceiverClassifiesOwnFlowSynAckAsOpen(t *testing.T) {
	e, mock, buf := newTestEngine(t, scanconfig.IPTypeTCP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.receiveLoop(ctx)
	}()

	frame := buildSynAck(t, e.Config.Network.SourceIP, e.Config.Network.SourceIP, 443, 40000)
	mock.Inject(time.Now().UnixNano(), frame)

	// give the goroutine a moment to classify, then stop the loop.
	time.Sleep(20 * time.Millisecond)
	mock.BreakLoop()
	<-done
	_ = e.Out.Close()

	if !bytes.Contains(buf.Bytes(), []byte("open")) {
		t.Fatalf("expected an open status to be emitted, got %q", buf.String())
	}
}

func TestReceiverIgnoresFrameWithWrongAckNumber(t *testing.T) {
	e, mock, buf := newTestEngine(t, scanconfig.IPTypeTCP)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.receiveLoop(ctx)
	}()

	frame := buildSynAck(t, e.Config.Network.SourceIP, e.Config.Network.SourceIP, 443, 40000)
	// corrupt the ack number so it no longer matches FirstSeqNum+1.
	tcp := frame[wire.EthSize+wire.IPv6Size:]
	tcp[11] = 0x02
	mock.Inject(time.Now().UnixNano(), frame)

	time.Sleep(20 * time.Millisecond)
	mock.BreakLoop()
	<-done
	_ = e.Out.Close()

	if buf.Len() != 0 {
		t.Fatalf("expected no events for a non-matching ack, got %q", buf.String())
	}
}

func TestRandomEphemeralPortSetsBit14(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		p := randomEphemeralPort(rng)
		if p&0x4000 == 0 {
			t.Fatalf("expected bit 14 set, got %#x", p)
		}
		if p == 0 {
			t.Fatalf("ephemeral port must not be zero")
		}
	}
}
