package scanconfig

import (
	"testing"

	"github.com/bbhunter/fi6s/internal/ports"
)

func validConfig(t *testing.T) *ScanConfig {
	t.Helper()
	pset, err := ports.Parse("1-1024")
	if err != nil {
		t.Fatalf("parse ports: %v", err)
	}
	return &ScanConfig{
		Network: NetworkSettings{
			SourceMAC: [6]byte{1, 2, 3, 4, 5, 6},
			RouterMAC: [6]byte{6, 5, 4, 3, 2, 1},
			SourceIP:  [16]byte{0x20, 0x01, 0x0d, 0xb8},
			TTL:       64,
		},
		SourcePort: SourcePortRandom,
		IPType:     IPTypeTCP,
		Ports:      pset,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := validConfig(t)
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMissingSourceIP(t *testing.T) {
	c := validConfig(t)
	c.Network.SourceIP = [16]byte{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing source IP")
	}
}

func TestValidateRejectsMissingPortsForTCP(t *testing.T) {
	c := validConfig(t)
	c.Ports = nil
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing ports")
	}
}

func TestValidateAllowsMissingPortsForICMPv6(t *testing.T) {
	c := validConfig(t)
	c.IPType = IPTypeICMPv6
	c.Ports = nil
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error for icmp6 without ports: %v", err)
	}
}

func TestValidateRejectsBannersWithoutPinnedSourcePortForTCP(t *testing.T) {
	c := validConfig(t)
	c.Banners = true
	c.SourcePort = SourcePortRandom
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for banners + random source port on TCP")
	}
}

func TestValidateAllowsBannersWithPinnedSourcePort(t *testing.T) {
	c := validConfig(t)
	c.Banners = true
	c.SourcePort = 40000
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIPTypeString(t *testing.T) {
	cases := map[IPType]string{IPTypeTCP: "tcp", IPTypeUDP: "udp", IPTypeICMPv6: "icmp6"}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Fatalf("IPType(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
