// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command scancore drives a single recon scan from the command line: it
// parses targets/ports/scan-type flags into a scanconfig.ScanConfig,
// opens the raw I/O backend for the chosen interface, and streams results
// to stdout as they resolve.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/reconwire/scancore/internal/orchestrator"
	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/rawio"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scheduler"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "scancore:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("scancore", flag.ExitOnError)
	targetsFlag := fs.String("targets", "", "comma-separated IPs, CIDRs, or hostnames")
	portsFlag := fs.String("ports", "1-1024", "comma-separated ports or ranges, e.g. 22,80,8000-8100")
	scanType := fs.String("scan-type", "syn", "syn|connect|udp|fin|null|xmas|ack")
	iface := fs.String("iface", "", "network interface for raw send/receive (ignored for scan-type=connect)")
	timing := fs.Int("timing", int(scanconfig.T3Normal), "timing template 0 (paranoid) .. 5 (insane)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *targetsFlag == "" {
		return fmt.Errorf("-targets is required")
	}

	st, err := parseScanType(*scanType)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	targets, err := scheduler.ExpandSpecs(ctx, strings.Split(*targetsFlag, ","), scanconfig.PreferV4, true)
	if err != nil {
		return fmt.Errorf("expanding targets: %w", err)
	}

	ports, err := parsePortSpec(*portsFlag, st)
	if err != nil {
		return fmt.Errorf("parsing -ports: %w", err)
	}

	cfg := &scanconfig.ScanConfig{
		ScanType:             st,
		Targets:              targets,
		Ports:                ports,
		TimingTemplate:       scanconfig.TimingTemplate(*timing),
		MmsgBatchSize:        rawio.DefaultBatchSize,
		MaxConcurrentTargets: 64,
		MinConcurrentTargets: 1,
	}

	orchCfg := orchestrator.Config{Scan: cfg}

	if st == scancore.ScanTCPConnect {
		orchCfg.Conn = noopConn{}
	} else {
		if *iface == "" {
			return fmt.Errorf("-iface is required for scan-type=%s", st)
		}
		netIface, err := net.InterfaceByName(*iface)
		if err != nil {
			return fmt.Errorf("resolving -iface: %w", err)
		}
		conn, err := rawio.Open(rawio.Config{Interface: netIface})
		if err != nil {
			return fmt.Errorf("opening raw I/O on %s: %w", *iface, err)
		}
		defer conn.Close()
		orchCfg.Conn = conn

		if mtu, mtuErr := rawio.LinkMTU(*iface); mtuErr == nil && cfg.Fragmentation.MTUBytes == 0 {
			cfg.Fragmentation.MTUBytes = mtu - (mtu % 8)
		}
		if offload, offloadErr := rawio.ChecksumOffloadEnabled(*iface); offloadErr == nil && offload && cfg.BadChecksumMode == scanconfig.ChecksumZero {
			fmt.Fprintf(os.Stderr, "scancore: warning: %s offloads checksums to hardware, bad-checksum mode may be silently corrected before transmit\n", *iface)
		}

		src, err := interfaceAddr(netIface)
		if err != nil {
			return fmt.Errorf("resolving source address on %s: %w", *iface, err)
		}
		orchCfg.SrcAddr = src
	}

	scan, err := orchestrator.New(orchCfg)
	if err != nil {
		return fmt.Errorf("building scan: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range scan.Results() {
			printResult(r)
		}
	}()

	runErr := scan.Run(ctx)
	<-done

	summary := scan.Summary()
	fmt.Printf("\nscan complete: %d hosts up, %d ports probed, duration %s\n",
		summary.HostsUp, totalPorts(summary), summary.Duration)

	return runErr
}

func printResult(r scancore.ScanResult) {
	line := fmt.Sprintf("%s\t%d/%s\t%s", r.Target.Addr, r.Port, r.Protocol, r.State)
	if r.Service != nil && r.Service.ServiceName != "" {
		line += "\t" + r.Service.ServiceName
	}
	fmt.Println(line)
}

func totalPorts(s scancore.ScanSummary) int {
	n := 0
	for _, c := range s.PortsByState {
		n += c
	}
	return n
}

func parseScanType(s string) (scancore.ScanType, error) {
	switch strings.ToLower(s) {
	case "syn":
		return scancore.ScanSynStealth, nil
	case "connect":
		return scancore.ScanTCPConnect, nil
	case "udp":
		return scancore.ScanUDP, nil
	case "fin":
		return scancore.ScanFin, nil
	case "null":
		return scancore.ScanNull, nil
	case "xmas":
		return scancore.ScanXmas, nil
	case "ack":
		return scancore.ScanAck, nil
	default:
		return 0, fmt.Errorf("unknown scan type %q", s)
	}
}

// parsePortSpec turns a flag value like "22,80,8000-8100" into a
// PortSpec for the transport a scan type implies (UDP for scan-type=udp,
// TCP for everything else).
func parsePortSpec(spec string, st scancore.ScanType) (*scancore.PortSpec, error) {
	proto := scancore.ProtoTCP
	if st == scancore.ScanUDP {
		proto = scancore.ProtoUDP
	}

	ps := scancore.NewPortSpec()
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err := strconv.ParseUint(lo, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("bad range %q: %w", part, err)
			}
			hiN, err := strconv.ParseUint(hi, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("bad range %q: %w", part, err)
			}
			if err := ps.AddRange(uint16(loN), uint16(hiN), proto); err != nil {
				return nil, err
			}
			continue
		}
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad port %q: %w", part, err)
		}
		ps.Add(uint16(n), proto)
	}
	return ps, nil
}

func interfaceAddr(iface *net.Interface) (netip.Addr, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP.To4())
		if ok {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("interface %s has no IPv4 address", iface.Name)
}

// noopConn satisfies rawio.Conn for TCP Connect scans, which never send
// or receive a raw packet.
type noopConn struct{}

func (noopConn) SendBatch(ctx context.Context, frames [][]byte) rawio.SendOutcome {
	return rawio.SendOutcome{OK: len(frames), ErrorIndex: -1}
}

func (noopConn) Receive(timeout time.Duration) (*packet.ParsedPacket, bool, error) {
	return nil, false, nil
}

func (noopConn) SetPortFilter(ports []uint16, proto scancore.Protocol) error { return nil }

func (noopConn) Close() error { return nil }
