package transport

import (
	"sync"
)

// Mock is an in-process Transport used only by tests: Send appends to
// Sent, and injecting a frame via Inject delivers it to whatever
// callback is currently blocked in Loop. It never touches a real
// interface, so it runs identically on every platform.
type Mock struct {
	mu        sync.Mutex
	Sent      [][]byte
	inbox     chan frame
	broken    chan struct{}
	breakOnce sync.Once
	opened    bool
}

type frame struct {
	ts   int64
	data []byte
}

// NewMock returns an unopened Mock transport.
func NewMock() *Mock {
	return &Mock{inbox: make(chan frame, 256), broken: make(chan struct{})}
}

func (m *Mock) Open(iface string, snaplen int) error {
	m.opened = true
	return nil
}

func (m *Mock) SetFilter(ipType uint8, dstAddr [16]byte, dstPort int) error {
	return nil
}

func (m *Mock) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.Sent = append(m.Sent, cp)
	return nil
}

// Inject delivers a frame to a concurrent Loop call, as if captured off
// the wire.
func (m *Mock) Inject(tsNanos int64, data []byte) {
	m.inbox <- frame{ts: tsNanos, data: data}
}

func (m *Mock) Loop(cb func(tsNanos int64, frame []byte)) error {
	for {
		select {
		case f := <-m.inbox:
			cb(f.ts, f.data)
		case <-m.broken:
			return nil
		}
	}
}

func (m *Mock) BreakLoop() {
	m.breakOnce.Do(func() { close(m.broken) })
}

func (m *Mock) Close() error { return nil }

func (m *Mock) HasEthernetHeaders() bool { return true }
