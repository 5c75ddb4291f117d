// Package scanconfig holds the data model shared across the scanner
// runtime, senders, receiver, and output sinks: ScanConfig,
// NetworkSettings, and the two output event records, ScanStatus and
// ScanBanner.
package scanconfig

import (
	"fmt"
	"time"

	"github.com/bbhunter/fi6s/internal/ports"
)

// IPType selects which protocol a scan drives.
type IPType uint8

const (
	IPTypeTCP IPType = iota
	IPTypeUDP
	IPTypeICMPv6
)

func (t IPType) String() string {
	switch t {
	case IPTypeTCP:
		return "tcp"
	case IPTypeUDP:
		return "udp"
	case IPTypeICMPv6:
		return "icmp6"
	default:
		return "unknown"
	}
}

// SourcePortRandom, stored in ScanConfig.SourcePort, requests a random
// ephemeral source port per packet rather than a single pinned value.
const SourcePortRandom = -1

// NetworkSettings bundles the interface/MAC/TTL/source-IP tuple assembled
// once at CLI start-up from flags (there is no auto-detection) and
// passed into ScanConfig read-only.
type NetworkSettings struct {
	Interface string
	SourceMAC [6]byte
	RouterMAC [6]byte
	SourceIP  [16]byte
	TTL       uint8
}

// ScanConfig is the read-only configuration a scanner runtime is started
// with.
type ScanConfig struct {
	Network NetworkSettings

	// SourcePort is a fixed port in [0,65535], or SourcePortRandom.
	SourcePort int

	IPType IPType
	Ports  *ports.Set

	// MaxRate is the send cap in packets/second; <= 0 means unbounded.
	MaxRate int

	ShowClosed bool
	Banners    bool
}

// Validate checks the invariants the CLI must enforce before starting a
// real scan, minus the sanity gate which lives on the address
// generator.
func (c *ScanConfig) Validate() error {
	if c.Network.SourceIP == ([16]byte{}) {
		return fmt.Errorf("source IP is required")
	}
	if c.Network.SourceMAC == ([6]byte{}) {
		return fmt.Errorf("source MAC is required")
	}
	if c.Network.RouterMAC == ([6]byte{}) {
		return fmt.Errorf("router MAC is required")
	}
	if c.IPType != IPTypeICMPv6 && (c.Ports == nil || c.Ports.Len() == 0) {
		return fmt.Errorf("a port set is required for %s scans", c.IPType)
	}
	if c.Banners && c.IPType == IPTypeTCP && c.SourcePort == SourcePortRandom {
		return fmt.Errorf("--banners requires a pinned --source-port for TCP scans")
	}
	if c.SourcePort != SourcePortRandom && (c.SourcePort < 0 || c.SourcePort > 65535) {
		return fmt.Errorf("source port %d out of range", c.SourcePort)
	}
	return nil
}

// Status is one OPEN/CLOSED/UP classification event (ScanStatus).
type Status uint8

const (
	StatusOpen Status = iota
	StatusClosed
	StatusUp
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusUp:
		return "up"
	default:
		return "unknown"
	}
}

// ScanStatus is one classification event emitted by the receiver and
// consumed by an output sink.
type ScanStatus struct {
	Timestamp time.Time
	SourceIP  [16]byte
	Proto     IPType
	SrcPort   uint16
	DstPort   uint16
	Status    Status
}

// ScanBanner is one captured application banner, stored verbatim in
// binary mode and post-processed at emit time otherwise.
type ScanBanner struct {
	Timestamp time.Time
	SourceIP  [16]byte
	Proto     IPType
	Port      uint16
	Payload   []byte
}
