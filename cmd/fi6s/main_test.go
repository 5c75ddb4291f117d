package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPrintHostsModeListsEveryAddressAndSendsNoPackets(t *testing.T) {
	out, err := runCLI(t, "scan", "--print-hosts", "--randomize-hosts=false", "2001:db8::/126")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Fields(out)
	want := []string{"2001:db8::", "2001:db8::1", "2001:db8::2", "2001:db8::3"}
	if len(lines) != len(want) {
		t.Fatalf("got %v want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("index %d: got %s want %s", i, lines[i], want[i])
		}
	}
}

func TestPrintSummaryModePrintsCountAndRange(t *testing.T) {
	out, err := runCLI(t, "scan", "--print-summary", "-p", "1-1000", "2001:db8::/124")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "16 addresses") {
		t.Fatalf("expected summary to mention 16 addresses, got %q", out)
	}
}

func TestPrintNetworkSettingsModeRequiresNoTarget(t *testing.T) {
	out, err := runCLI(t, "scan", "--print-network-settings", "--interface", "eth0", "--ttl", "32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "eth0") || !strings.Contains(out, "32") {
		t.Fatalf("expected network settings to mention interface/ttl, got %q", out)
	}
}

func TestSanityGateRefusesHugeScanBeforeNetworkValidation(t *testing.T) {
	_, err := runCLI(t, "scan", "-p", "1-100", "::/0")
	if err == nil {
		t.Fatalf("expected the sanity gate to refuse ::/0")
	}
}

func TestScanRequiresPortsForTCP(t *testing.T) {
	_, err := runCLI(t, "scan", "--source-ip", "2001:db8::1",
		"--source-mac", "00:11:22:33:44:55", "--router-mac", "66:77:88:99:aa:bb",
		"2001:db8::1/126")
	if err == nil {
		t.Fatalf("expected missing --ports to be rejected")
	}
}

func TestBareInvocationDefaultsToScan(t *testing.T) {
	out, err := runCLI(t, "--print-hosts", "--randomize-hosts=false", "2001:db8::/127")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2001:db8::", "2001:db8::1"}
	got := strings.Fields(out)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestListProtocolsPrintsBuiltInPorts(t *testing.T) {
	out, err := runCLI(t, "list-protocols")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "80") || !strings.Contains(out, "53") {
		t.Fatalf("expected built-in ports in output, got %q", out)
	}
}
