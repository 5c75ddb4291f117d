package output

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bbhunter/fi6s/internal/scanconfig"
)

// binaryMagic/binaryVersion identify and version the self-describing
// binary scan log. Version is bumped on any incompatible record-layout
// change.
const (
	binaryMagic   uint32 = 0xf6550001
	binaryVersion uint8  = 1

	recordStatus uint8 = 1
	recordBanner uint8 = 2
)

// BinarySink stores every event verbatim: both OPEN and CLOSED TCP
// events (the show-closed filter is applied only at read time) and
// banners without post-processing (Raw reports true).
type BinarySink struct{}

func (BinarySink) Raw() bool { return true }

func (BinarySink) Begin(w io.Writer) error {
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[0:4], binaryMagic)
	hdr[4] = binaryVersion
	_, err := w.Write(hdr[:])
	return err
}

func (BinarySink) End(w io.Writer) error {
	_, err := w.Write([]byte{0}) // record type 0 == end-of-stream marker
	return err
}

func (BinarySink) OutputStatus(w io.Writer, s scanconfig.ScanStatus) error {
	var buf [1 + 8 + 16 + 1 + 2 + 2 + 1]byte
	i := 0
	buf[i] = recordStatus
	i++
	binary.BigEndian.PutUint64(buf[i:], uint64(s.Timestamp.UnixNano()))
	i += 8
	copy(buf[i:], s.SourceIP[:])
	i += 16
	buf[i] = uint8(s.Proto)
	i++
	binary.BigEndian.PutUint16(buf[i:], s.SrcPort)
	i += 2
	binary.BigEndian.PutUint16(buf[i:], s.DstPort)
	i += 2
	buf[i] = uint8(s.Status)
	_, err := w.Write(buf[:])
	return err
}

func (BinarySink) OutputBanner(w io.Writer, b scanconfig.ScanBanner) error {
	var hdr [1 + 8 + 16 + 1 + 2 + 4]byte
	i := 0
	hdr[i] = recordBanner
	i++
	binary.BigEndian.PutUint64(hdr[i:], uint64(b.Timestamp.UnixNano()))
	i += 8
	copy(hdr[i:], b.SourceIP[:])
	i += 16
	hdr[i] = uint8(b.Proto)
	i++
	binary.BigEndian.PutUint16(hdr[i:], b.Port)
	i += 2
	binary.BigEndian.PutUint32(hdr[i:], uint32(len(b.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b.Payload)
	return err
}

// Event is one decoded binary-log record: exactly one of Status or
// Banner is non-nil.
type Event struct {
	Status *scanconfig.ScanStatus
	Banner *scanconfig.ScanBanner
}

// Reader decodes a binary scan log, applying ShowClosed/Banners filters
// at read time over the superset capture.
type Reader struct {
	r          io.Reader
	ShowClosed bool
	Banners    bool
}

// NewReader validates the stream header and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading binary log header: %w", err)
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != binaryMagic {
		return nil, fmt.Errorf("not a fi6s binary scan log")
	}
	if hdr[4] != binaryVersion {
		return nil, fmt.Errorf("unsupported binary scan log version %d", hdr[4])
	}
	return &Reader{r: r}, nil
}

// Next decodes the next event, applying the reader's filters. It skips
// filtered-out records internally and returns io.EOF once the
// end-of-stream marker is reached.
func (rd *Reader) Next() (Event, error) {
	for {
		var typ [1]byte
		if _, err := io.ReadFull(rd.r, typ[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		switch typ[0] {
		case 0:
			return Event{}, io.EOF
		case recordStatus:
			s, err := rd.readStatus()
			if err != nil {
				return Event{}, err
			}
			if s.Status == scanconfig.StatusClosed && !rd.ShowClosed {
				continue
			}
			return Event{Status: &s}, nil
		case recordBanner:
			b, err := rd.readBanner()
			if err != nil {
				return Event{}, err
			}
			if !rd.Banners {
				continue
			}
			return Event{Banner: &b}, nil
		default:
			return Event{}, fmt.Errorf("unknown binary log record type %d", typ[0])
		}
	}
}

func (rd *Reader) readStatus() (scanconfig.ScanStatus, error) {
	var buf [8 + 16 + 1 + 2 + 2 + 1]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		return scanconfig.ScanStatus{}, err
	}
	var s scanconfig.ScanStatus
	i := 0
	s.Timestamp = nsToTime(binary.BigEndian.Uint64(buf[i:]))
	i += 8
	copy(s.SourceIP[:], buf[i:i+16])
	i += 16
	s.Proto = scanconfig.IPType(buf[i])
	i++
	s.SrcPort = binary.BigEndian.Uint16(buf[i:])
	i += 2
	s.DstPort = binary.BigEndian.Uint16(buf[i:])
	i += 2
	s.Status = scanconfig.Status(buf[i])
	return s, nil
}

func (rd *Reader) readBanner() (scanconfig.ScanBanner, error) {
	var hdr [8 + 16 + 1 + 2 + 4]byte
	if _, err := io.ReadFull(rd.r, hdr[:]); err != nil {
		return scanconfig.ScanBanner{}, err
	}
	var b scanconfig.ScanBanner
	i := 0
	b.Timestamp = nsToTime(binary.BigEndian.Uint64(hdr[i:]))
	i += 8
	copy(b.SourceIP[:], hdr[i:i+16])
	i += 16
	b.Proto = scanconfig.IPType(hdr[i])
	i++
	b.Port = binary.BigEndian.Uint16(hdr[i:])
	i += 2
	n := binary.BigEndian.Uint32(hdr[i:])
	b.Payload = make([]byte, n)
	if _, err := io.ReadFull(rd.r, b.Payload); err != nil {
		return scanconfig.ScanBanner{}, err
	}
	return b, nil
}
