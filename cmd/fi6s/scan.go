package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bbhunter/fi6s/internal/output"
	"github.com/bbhunter/fi6s/internal/ports"
	"github.com/bbhunter/fi6s/internal/scanconfig"
	"github.com/bbhunter/fi6s/internal/scanner"
	"github.com/bbhunter/fi6s/internal/target"
	"github.com/bbhunter/fi6s/internal/transport"
)

type scanFlags struct {
	portsStr          string
	outputFile        string
	outputFormat      string
	maxRate           int
	randomizeHosts    bool
	sourcePort        int
	streamTargets     bool
	udp               bool
	icmp              bool
	banners           bool
	quiet             bool
	showClosed        bool
	iface             string
	sourceMAC         string
	routerMAC         string
	sourceIP          string
	ttl               int
	printHosts        bool
	printSummary      bool
	printNetSettings  bool
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{randomizeHosts: true, ttl: 64, outputFormat: "list", sourcePort: scanconfig.SourcePortRandom}

	cmd := &cobra.Command{
		Use:   "scan <target-spec | @file>",
		Short: "Scan one or more IPv6 targets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.portsStr, "ports", "p", "", "port range(s) to scan")
	fs.StringVarP(&f.outputFile, "output-file", "o", "", "write results to <file> instead of stdout")
	fs.StringVar(&f.outputFormat, "output-format", "list", "output format: list, json, or binary")
	fs.IntVar(&f.maxRate, "max-rate", 0, "send no more than <n> packets per second (0 = unlimited)")
	fs.BoolVar(&f.randomizeHosts, "randomize-hosts", true, "randomize scan order of hosts")
	fs.IntVar(&f.sourcePort, "source-port", scanconfig.SourcePortRandom, "use the specified source port instead of a random one")
	fs.BoolVar(&f.streamTargets, "stream-targets", false, "read target IPs from file on demand instead of ahead-of-time")
	fs.BoolVarP(&f.udp, "udp", "u", false, "UDP scan")
	fs.BoolVar(&f.icmp, "icmp", false, "ICMPv6 Echo scan")
	fs.BoolVarP(&f.banners, "banners", "b", false, "capture banners on open TCP ports / UDP responses")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "do not print status messages during the scan")
	fs.BoolVar(&f.showClosed, "show-closed", false, "show closed ports (TCP)")
	fs.StringVar(&f.iface, "interface", "", "interface to use for capturing and sending packets")
	fs.StringVar(&f.sourceMAC, "source-mac", "", "Ethernet layer source MAC")
	fs.StringVar(&f.routerMAC, "router-mac", "", "Ethernet layer destination (gateway) MAC")
	fs.StringVar(&f.sourceIP, "source-ip", "", "source IPv6 address")
	fs.IntVar(&f.ttl, "ttl", 64, "time-to-live of sent packets")
	fs.BoolVar(&f.printHosts, "print-hosts", false, "print all hosts to be scanned and exit")
	fs.BoolVar(&f.printSummary, "print-summary", false, "print a summary of hosts to be scanned and exit")
	fs.BoolVar(&f.printNetSettings, "print-network-settings", false, "print resolved network settings and exit")

	return cmd
}

func runScan(cmd *cobra.Command, args []string, f *scanFlags) error {
	if f.printNetSettings {
		settings, err := resolveNetworkSettings(f)
		if err != nil {
			return err
		}
		printNetworkSettings(cmd.OutOrStdout(), settings)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("a target specification (or @file) is required")
	}

	gen := target.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	gen.SetRandomized(f.randomizeHosts)
	if err := loadTargets(gen, args[0], f.streamTargets); err != nil {
		return err
	}

	if f.printHosts {
		return printHosts(cmd.OutOrStdout(), gen)
	}

	if !f.streamTargets {
		if err := gen.FinishAdd(); err != nil {
			return err
		}
		if f.printSummary {
			fmt.Fprint(cmd.OutOrStdout(), gen.Summary(f.maxRate, countPorts(f)))
			return nil
		}
		if err := gen.SanityCheck(); err != nil {
			return err
		}
	}

	settings, err := resolveNetworkSettings(f)
	if err != nil {
		return err
	}

	cfg, err := buildScanConfig(f, settings)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sink, err := sinkFor(f.outputFormat)
	if err != nil {
		return err
	}

	w, closeFn, err := openOutput(f.outputFile)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := output.NewWriter(w, sink)
	if err != nil {
		return err
	}
	defer out.Close()

	trans := transport.NewAFPacket()
	if err := trans.Open(settings.Interface, 65535); err != nil {
		return fmt.Errorf("opening raw transport: %w", err)
	}
	defer trans.Close()

	engine := scanner.NewEngine(cfg, gen, trans, out)
	return engine.Run(context.Background())
}

func countPorts(f *scanFlags) int {
	if f.icmp || f.portsStr == "" {
		return 1
	}
	pset, err := ports.Parse(f.portsStr)
	if err != nil {
		return 1
	}
	return pset.Len()
}

func loadTargets(gen *target.Generator, arg string, streaming bool) error {
	if strings.HasPrefix(arg, "@") {
		path := arg[1:]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening target list file %q: %w", path, err)
		}
		if streaming {
			gen.SetStreaming(f)
			return nil
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			spec, err := target.ParseSpec(line)
			if err != nil {
				return fmt.Errorf("target list file %q: %w", path, err)
			}
			if err := gen.Add(spec); err != nil {
				return err
			}
		}
		return sc.Err()
	}

	if streaming {
		return fmt.Errorf("--stream-targets requires an @file argument")
	}
	spec, err := target.ParseSpec(arg)
	if err != nil {
		return err
	}
	return gen.Add(spec)
}

func printHosts(w io.Writer, gen *target.Generator) error {
	for {
		addr, ok := gen.Next()
		if !ok {
			return nil
		}
		if _, err := fmt.Fprintln(w, target.AddrString(addr)); err != nil {
			return err
		}
	}
}

func buildScanConfig(f *scanFlags, settings scanconfig.NetworkSettings) (scanconfig.ScanConfig, error) {
	cfg := scanconfig.ScanConfig{
		Network:    settings,
		SourcePort: f.sourcePort,
		MaxRate:    f.maxRate,
		ShowClosed: f.showClosed,
		Banners:    f.banners,
	}

	switch {
	case f.icmp:
		cfg.IPType = scanconfig.IPTypeICMPv6
	case f.udp:
		cfg.IPType = scanconfig.IPTypeUDP
	default:
		cfg.IPType = scanconfig.IPTypeTCP
	}

	if cfg.IPType != scanconfig.IPTypeICMPv6 {
		if f.portsStr == "" {
			return cfg, fmt.Errorf("-p/--ports is required for TCP/UDP scans")
		}
		pset, err := ports.Parse(f.portsStr)
		if err != nil {
			return cfg, err
		}
		cfg.Ports = pset
	}
	return cfg, nil
}

func sinkFor(format string) (output.Sink, error) {
	switch format {
	case "list", "":
		return output.ListSink{}, nil
	case "json":
		return output.JSONSink{}, nil
	case "binary":
		return output.BinarySink{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want list, json, or binary)", format)
	}
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file %q: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func resolveNetworkSettings(f *scanFlags) (scanconfig.NetworkSettings, error) {
	var settings scanconfig.NetworkSettings
	settings.TTL = uint8(f.ttl)
	settings.Interface = f.iface

	if f.sourceIP != "" {
		ip := net.ParseIP(f.sourceIP).To16()
		if ip == nil {
			return settings, fmt.Errorf("invalid --source-ip %q", f.sourceIP)
		}
		copy(settings.SourceIP[:], ip)
	}
	if f.sourceMAC != "" {
		mac, err := parseMAC(f.sourceMAC)
		if err != nil {
			return settings, fmt.Errorf("invalid --source-mac %q: %w", f.sourceMAC, err)
		}
		settings.SourceMAC = mac
	}
	if f.routerMAC != "" {
		mac, err := parseMAC(f.routerMAC)
		if err != nil {
			return settings, fmt.Errorf("invalid --router-mac %q: %w", f.routerMAC, err)
		}
		settings.RouterMAC = mac
	}

	// auto-detection of interface/MACs/source IP from the live network
	// stack is out of scope; callers are expected to supply them
	// explicitly via flags.
	return settings, nil
}

func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return mac, err
	}
	if len(hw) != 6 {
		return mac, fmt.Errorf("expected a 6-byte MAC address")
	}
	copy(mac[:], hw)
	return mac, nil
}

// printNetworkSettings renders the resolved NetworkSettings as a small
// setting/value table.
func printNetworkSettings(w io.Writer, s scanconfig.NetworkSettings) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"setting", "value"})
	table.Append([]string{"interface", s.Interface})
	table.Append([]string{"source MAC", net.HardwareAddr(s.SourceMAC[:]).String()})
	table.Append([]string{"router MAC", net.HardwareAddr(s.RouterMAC[:]).String()})
	table.Append([]string{"source IP", target.AddrString(s.SourceIP)})
	table.Append([]string{"ttl", fmt.Sprintf("%d", s.TTL)})
	table.Render()
}
