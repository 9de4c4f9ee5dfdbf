// Package discovery finds live hosts on a network with an nmap ping sweep so
// they can be enrolled automatically.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"
)

// ErrInvalidTarget is returned for a target that is neither an IP address nor a CIDR range.
var ErrInvalidTarget = errors.New("target must be an IP address or CIDR range")

// Host is one live host reported by a sweep.
type Host struct {
	IP       string `json:"ip"`
	MAC      string `json:"mac,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// DeviceID is the identity a discovered host is enrolled under: its MAC
// address when nmap saw one (same L2 segment), its IP otherwise.
func (h Host) DeviceID() string {
	if h.MAC != "" {
		return strings.ToLower(h.MAC)
	}
	return h.IP
}

// Scanner runs nmap ping sweeps.
type Scanner struct {
	timeout           time.Duration
	skipHostDiscovery bool
	privileged        bool
	logger            *zap.Logger
}

// NewScanner creates a Scanner. The nmap binary is looked up on PATH when a
// sweep runs, not here.
func NewScanner(logger *zap.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		timeout: 2 * time.Minute,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover sweeps target and returns the hosts that are up.
func (s *Scanner) Discover(ctx context.Context, target string) ([]Host, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPingScan(),
	}
	if s.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if s.privileged {
		opts = append(opts, nmap.WithPrivileged())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create nmap scanner: %w", err)
	}

	s.logger.Info("discovery sweep started", zap.String("target", target))
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("nmap sweep of %s: %w", target, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.logger.Warn("nmap warnings", zap.String("target", target), zap.Strings("warnings", *warnings))
	}

	hosts := hostsFromRun(result)
	s.logger.Info("discovery sweep finished", zap.String("target", target), zap.Int("hosts", len(hosts)))
	return hosts, nil
}

// ValidateTarget accepts a single IP address or a CIDR range. Anything else,
// including strings that nmap would parse as flags, is rejected.
func ValidateTarget(target string) error {
	if net.ParseIP(target) != nil {
		return nil
	}
	if _, _, err := net.ParseCIDR(target); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
}

// hostsFromRun converts an nmap result into the hosts that are up.
func hostsFromRun(run *nmap.Run) []Host {
	if run == nil {
		return nil
	}
	var hosts []Host
	for _, h := range run.Hosts {
		if h.Status.State != "up" || len(h.Addresses) == 0 {
			continue
		}
		var host Host
		for _, addr := range h.Addresses {
			switch addr.AddrType {
			case "ipv4", "ipv6":
				if host.IP == "" {
					host.IP = addr.Addr
				}
			case "mac":
				host.MAC = addr.Addr
				host.Vendor = addr.Vendor
			}
		}
		if host.IP == "" {
			host.IP = h.Addresses[0].Addr
		}
		if len(h.Hostnames) > 0 {
			host.Hostname = h.Hostnames[0].Name
		}
		hosts = append(hosts, host)
	}
	return hosts
}
