// Package scanner implements the scanner runtime, the TCP/UDP/ICMPv6
// senders, the receiver/classifier, and the TCP banner responder: the
// send/receive concurrency core that drives a scan from start-up
// through graceful or error shutdown.
//
// The three logical threads of a scan become goroutines here, wired
// together with context.Context + sync.WaitGroup for lifecycle. The
// three shared counters are sync/atomic values.
package scanner

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/bbhunter/fi6s/internal/output"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/target"
	"github.com/bbhunter/fi6s/internal/transport"
)

// StatsInterval is STATS_INTERVAL: the stats loop tick that resets the
// rate-control counter and drives the on-screen progress line.
const StatsInterval = 1000 * time.Millisecond

// FinishWaitTime is FINISH_WAIT_TIME: how long a graceful shutdown
// drains in-flight replies before breaking the capture loop.
const FinishWaitTime = 5 * time.Second

// FirstSeqNum seeds every SYN's sequence number; the receiver uses it to
// recognize the scan's own flows among captured replies.
const FirstSeqNum uint32 = 0xf0000000

// ICMPBody is the fixed identifier/sequence word stamped into every
// Echo Request and checked on every Echo Reply.
const ICMPBody uint32 = 0xf6f6f6f6

// Engine owns the configuration, counters, generator, transport, and
// output sink for one scan run as an explicit value; the sender,
// receiver, and stats goroutines all borrow it rather than reading
// package-level globals.
type Engine struct {
	Config scanconfig.ScanConfig
	Gen    *target.Generator
	Trans  transport.Transport
	Out    *output.Writer

	pktsSent   uint64
	pktsRecv   uint64
	statusBits uint32 // bit 0: sender error, bit 1: receiver error, bit 2: send finished

	responder *Responder
}

const (
	bitSenderError = 1 << iota
	bitReceiverError
	bitSendFinished
)

// NewEngine constructs an Engine ready to Run. gen must already have had
// FinishAdd called (or SetStreaming configured).
func NewEngine(cfg scanconfig.ScanConfig, gen *target.Generator, trans transport.Transport, out *output.Writer) *Engine {
	e := &Engine{Config: cfg, Gen: gen, Trans: trans, Out: out}
	if cfg.Banners && cfg.IPType == scanconfig.IPTypeTCP {
		e.responder = NewResponder(cfg, 64)
		e.responder.OnBanner = e.emitBanner
	}
	return e
}

// Run drives one full scan to completion: start-up, concurrent
// send/receive, stats loop, and shutdown. It blocks until the scan
// finishes or ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	dstPort := -1
	if e.Config.SourcePort != scanconfig.SourcePortRandom {
		dstPort = e.Config.SourcePort
	}
	if err := e.Trans.SetFilter(uint8(protoToNextHeader(e.Config.IPType)), e.Config.Network.SourceIP, dstPort); err != nil {
		return fmt.Errorf("installing capture filter: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.receiveLoop(runCtx)
	}()

	if e.responder != nil {
		e.responder.Start(runCtx)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.sendLoop(runCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.statsLoop(runCtx, cancel)
	}()

	wg.Wait()

	if e.responder != nil {
		e.responder.Finish()
	}
	return e.shutdownErr()
}

func (e *Engine) shutdownErr() error {
	bits := atomic.LoadUint32(&e.statusBits)
	if bits&bitSenderError != 0 {
		return fmt.Errorf("sender terminated with an error")
	}
	if bits&bitReceiverError != 0 {
		return fmt.Errorf("receiver terminated with an error")
	}
	return nil
}

// statsLoop ticks every StatsInterval, resetting the rate-control
// counter and logging progress; it requests shutdown once the sender
// reports SEND_FINISHED and the drain period has elapsed.
func (e *Engine) statsLoop(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(StatsInterval)
	defer ticker.Stop()

	var drainDeadline time.Time
	draining := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent := atomic.SwapUint64(&e.pktsSent, 0)
			recv := atomic.LoadUint64(&e.pktsRecv)
			bits := atomic.LoadUint32(&e.statusBits)

			glog.V(2).Infof("scanner: sent=%d recv(total)=%d progress=%.2f%%", sent, recv, e.Gen.Progress()*100)

			if bits&(bitSenderError|bitReceiverError) != 0 {
				e.Trans.BreakLoop()
				cancel()
				return
			}
			if bits&bitSendFinished != 0 && !draining {
				draining = true
				drainDeadline = time.Now().Add(FinishWaitTime)
			}
			if draining && !time.Now().Before(drainDeadline) {
				e.Trans.BreakLoop()
				cancel()
				return
			}
		}
	}
}

// rateControlDelay implements the "increment then sleep until the stats
// loop resets the counter" rate-control pattern, shared by all three
// senders.
func (e *Engine) rateControlDelay(ctx context.Context) {
	n := atomic.AddUint64(&e.pktsSent, 1)
	if e.Config.MaxRate <= 0 || n < uint64(e.Config.MaxRate) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
		// if another tick already reset the counter, stop waiting
		if atomic.LoadUint64(&e.pktsSent) < uint64(e.Config.MaxRate) {
			return
		}
	}
}

func (e *Engine) sendLoop(ctx context.Context) {
	defer orUint32(&e.statusBits, bitSendFinished)

	switch e.Config.IPType {
	case scanconfig.IPTypeTCP:
		e.sendTCP(ctx)
	case scanconfig.IPTypeUDP:
		e.sendUDP(ctx)
	case scanconfig.IPTypeICMPv6:
		e.sendICMPv6(ctx)
	}
}

func (e *Engine) markSenderError() {
	orUint32(&e.statusBits, bitSenderError)
}

func (e *Engine) markReceiverError() {
	orUint32(&e.statusBits, bitReceiverError)
}

func atomicAddRecv(addr *uint64) {
	atomic.AddUint64(addr, 1)
}

func orUint32(addr *uint32, bit uint32) {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old|bit) {
			return
		}
	}
}

// randomEphemeralPort draws a 16-bit source port with bit 14 set, so it
// is always >= 16384 and never zero.
func randomEphemeralPort(rng *rand.Rand) uint16 {
	return uint16(rng.Uint32()) | 0x4000
}

func protoToNextHeader(t scanconfig.IPType) uint8 {
	switch t {
	case scanconfig.IPTypeTCP:
		return 6
	case scanconfig.IPTypeUDP:
		return 17
	case scanconfig.IPTypeICMPv6:
		return 58
	default:
		return 0
	}
}
