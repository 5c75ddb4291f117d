// Package output implements a scan's output sink abstraction and its
// three concrete sinks -- list, json, and binary -- plus the binary scan
// log codec that lets a binary-format capture be replayed later through
// any of the three sinks with --show-closed/--banners applied at read
// time.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/bbhunter/fi6s/internal/banner"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/target"
)

// Sink is a scan's output abstraction: begin/end bracket the stream,
// OutputStatus/OutputBanner emit one event each. Raw reports whether
// this sink wants pre-post-processed banner payloads (true only for the
// binary sink).
type Sink interface {
	Begin(w io.Writer) error
	End(w io.Writer) error
	OutputStatus(w io.Writer, s scanconfig.ScanStatus) error
	OutputBanner(w io.Writer, b scanconfig.ScanBanner) error
	Raw() bool
}

// Writer serializes concurrent writes from the receiver and responder
// goroutines onto a single underlying stream, the only shared mutable
// resource between them.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	sink Sink
}

// NewWriter begins a new output stream with the given sink.
func NewWriter(w io.Writer, sink Sink) (*Writer, error) {
	bw := bufio.NewWriter(w)
	out := &Writer{w: bw, sink: sink}
	if err := sink.Begin(bw); err != nil {
		return nil, err
	}
	return out, nil
}

// Close writes the sink's footer and flushes the underlying buffer.
func (o *Writer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.sink.End(o.w); err != nil {
		return err
	}
	if bw, ok := o.w.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}

// Raw reports whether this sink wants verbatim, non-post-processed
// banner payloads.
func (o *Writer) Raw() bool { return o.sink.Raw() }

// Status emits one status event, serialized against concurrent writers.
func (o *Writer) Status(s scanconfig.ScanStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sink.OutputStatus(o.w, s)
}

// Banner emits one banner event, serialized against concurrent writers.
func (o *Writer) Banner(b scanconfig.ScanBanner) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sink.OutputBanner(o.w, b)
}

// ListSink renders each event as one human-readable text line.
type ListSink struct{}

func (ListSink) Begin(io.Writer) error { return nil }
func (ListSink) End(io.Writer) error   { return nil }
func (ListSink) Raw() bool             { return false }

func (ListSink) OutputStatus(w io.Writer, s scanconfig.ScanStatus) error {
	_, err := fmt.Fprintf(w, "%s %s %s:%d %s\n",
		s.Timestamp.Format("2006-01-02 15:04:05.000"),
		s.Proto, target.AddrString(s.SourceIP), s.DstPort, s.Status)
	return err
}

func (ListSink) OutputBanner(w io.Writer, b scanconfig.ScanBanner) error {
	processed := banner.PostProcess(b.Port, b.Payload)
	_, err := fmt.Fprintf(w, "%s %s %s:%d banner: %q\n",
		b.Timestamp.Format("2006-01-02 15:04:05.000"),
		b.Proto, target.AddrString(b.SourceIP), b.Port, processed)
	return err
}

// JSONSink renders each event as one JSON object per line.
type JSONSink struct{}

func (JSONSink) Begin(io.Writer) error { return nil }
func (JSONSink) End(io.Writer) error   { return nil }
func (JSONSink) Raw() bool             { return false }

type jsonStatus struct {
	Timestamp int64  `json:"ts"`
	SourceIP  string `json:"src_ip"`
	Proto     string `json:"proto"`
	SrcPort   uint16 `json:"src_port"`
	DstPort   uint16 `json:"dst_port"`
	Status    string `json:"status"`
}

func (JSONSink) OutputStatus(w io.Writer, s scanconfig.ScanStatus) error {
	enc := json.NewEncoder(w)
	return enc.Encode(jsonStatus{
		Timestamp: s.Timestamp.UnixNano(),
		SourceIP:  target.AddrString(s.SourceIP),
		Proto:     s.Proto.String(),
		SrcPort:   s.SrcPort,
		DstPort:   s.DstPort,
		Status:    s.Status.String(),
	})
}

type jsonBanner struct {
	Timestamp int64  `json:"ts"`
	SourceIP  string `json:"src_ip"`
	Proto     string `json:"proto"`
	Port      uint16 `json:"port"`
	Banner    string `json:"banner"`
}

func (JSONSink) OutputBanner(w io.Writer, b scanconfig.ScanBanner) error {
	processed := banner.PostProcess(b.Port, b.Payload)
	enc := json.NewEncoder(w)
	return enc.Encode(jsonBanner{
		Timestamp: b.Timestamp.UnixNano(),
		SourceIP:  target.AddrString(b.SourceIP),
		Proto:     b.Proto.String(),
		Port:      b.Port,
		Banner:    string(processed),
	})
}
