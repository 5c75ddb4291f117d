package scanner

import (
	"context"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/bbhunter/fi6s/internal/banner"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/target"
)

// BannerTimeout is BANNER_TIMEOUT: how long a responder worker waits for
// a kernel-mediated connect+recv before giving up.
const BannerTimeout = 2500 * time.Millisecond

// candidate is a SYN+ACK the receiver has matched and offered to the
// responder for handshake completion. Using a channel to hand these off
// avoids a direct reference cycle between receiver and responder. ts is
// the SYN+ACK's own capture timestamp, carried through so the eventual
// banner event is tagged with the original reply's time, not whenever
// the handshake happens to finish.
type candidate struct {
	addr [16]byte
	port uint16
	ts   time.Time
}

// Responder completes selected TCP handshakes through the host kernel's
// own stack to extract an application banner, while the raw scanner
// itself stays stateless.
type Responder struct {
	cfg scanconfig.ScanConfig

	offers chan candidate
	wg     sync.WaitGroup

	reservation net.Listener

	// OnBanner, if set before Start, receives every banner a worker
	// captures. Engine wires this to its own output sink, so the
	// responder never touches the output sink directly.
	OnBanner func(scanconfig.ScanBanner)
}

// NewResponder builds a Responder with a bounded worker pool of the
// given size.
func NewResponder(cfg scanconfig.ScanConfig, workers int) *Responder {
	r := &Responder{cfg: cfg, offers: make(chan candidate, workers*4)}
	r.startWorkers(workers)
	return r
}

// Start reserves the scan's source port with a BPF-silenced listening
// socket, preventing the kernel from RST-ing the scanner's own spoofed
// SYN+ACK replies.
func (r *Responder) Start(ctx context.Context) {
	if r.cfg.SourcePort == scanconfig.SourcePortRandom {
		return
	}
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if ctrlErr != nil {
					return
				}
				// silence the listener: attach a classic-BPF program
				// that drops every packet, so the socket reserves the
				// port without the kernel ever seeing scan traffic on
				// it.
				prog := buildDropAllFilter()
				ctrlErr = unix.SetsockoptSockFprog(int(fd), unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	addr := net.JoinHostPort(target.AddrString(r.cfg.Network.SourceIP), strconv.Itoa(r.cfg.SourcePort))
	ln, err := lc.Listen(ctx, "tcp6", addr)
	if err != nil {
		glog.Errorf("scanner: responder could not reserve source port %d: %v", r.cfg.SourcePort, err)
		return
	}
	r.reservation = ln
	glog.V(2).Infof("scanner: responder reserved source port %d", r.cfg.SourcePort)
}

// Offer hands a matched SYN+ACK's (addr, port, ts) to a worker for
// handshake completion. Non-blocking: a full queue silently drops the
// candidate, since banner capture is best-effort on top of a stateless
// scan.
func (r *Responder) Offer(addr [16]byte, port uint16, ts time.Time) {
	select {
	case r.offers <- candidate{addr: addr, port: port, ts: ts}:
	default:
		glog.V(2).Infof("scanner: responder queue full, dropping banner candidate")
	}
}

func (r *Responder) startWorkers(n int) {
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for c := range r.offers {
				r.handle(c)
			}
		}()
	}
}

// handle completes one TCP handshake via the host kernel stack, sends an
// optional query template, reads up to BannerMaxLength bytes, and emits
// a banner event through the engine's output sink. It is a method of
// *Responder rather than *Engine, so the engine only
// depends on a single banner event sink via a callback set at
// construction.
func (r *Responder) handle(c candidate) {
	dialer := net.Dialer{Timeout: BannerTimeout}
	addr := net.JoinHostPort(target.AddrString(c.addr), strconv.Itoa(int(c.port)))
	conn, err := dialer.Dial("tcp6", addr)
	if err != nil {
		return
	}
	defer conn.Close()

	if q := banner.Query(c.port); len(q) > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(BannerTimeout))
		if _, err := conn.Write(q); err != nil {
			return
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(BannerTimeout))
	buf := make([]byte, banner.BannerMaxLength)
	n, _ := conn.Read(buf)
	if n == 0 {
		return
	}

	if r.OnBanner != nil {
		r.OnBanner(scanconfig.ScanBanner{
			Timestamp: c.ts,
			SourceIP:  c.addr,
			Proto:     scanconfig.IPTypeTCP,
			Port:      c.port,
			Payload:   append([]byte(nil), buf[:n]...),
		})
	}
}

// Finish drains all in-flight responder connections before the output
// footer is written, then releases the reserved listening socket.
func (r *Responder) Finish() {
	close(r.offers)
	r.wg.Wait()
	if r.reservation != nil {
		_ = r.reservation.Close()
	}
}

// buildDropAllFilter returns a classic-BPF program that accepts zero
// bytes of every packet, silencing the reservation listener.
func buildDropAllFilter() *unix.SockFprog {
	prog := []unix.SockFilter{{Code: 0x06, K: 0}} // ret #0
	return &unix.SockFprog{Len: uint16(len(prog)), Filter: &prog[0]}
}
