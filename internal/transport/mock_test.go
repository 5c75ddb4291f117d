package transport

import (
	"sync"
	"testing"
	"time"
)

func TestMockSendRecordsFrames(t *testing.T) {
	m := NewMock()
	if err := m.Open("eth0", 65535); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := m.Send([]byte{1, 2, 3}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(m.Sent) != 1 || string(m.Sent[0]) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected Sent: %v", m.Sent)
	}
}

func TestMockLoopDeliversInjectedFrames(t *testing.T) {
	m := NewMock()
	_ = m.Open("eth0", 65535)

	var wg sync.WaitGroup
	var got []byte
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Loop(func(ts int64, frame []byte) {
			got = frame
			m.BreakLoop()
		})
	}()

	m.Inject(time.Now().UnixNano(), []byte("hello"))
	wg.Wait()

	if string(got) != "hello" {
		t.Fatalf("expected injected frame to reach callback, got %q", got)
	}
}

func TestMockBreakLoopIsIdempotent(t *testing.T) {
	m := NewMock()
	m.BreakLoop()
	m.BreakLoop() // must not panic on double-close
}

func TestMockHasEthernetHeaders(t *testing.T) {
	m := NewMock()
	if !m.HasEthernetHeaders() {
		t.Fatalf("expected mock transport to report ethernet headers")
	}
}
