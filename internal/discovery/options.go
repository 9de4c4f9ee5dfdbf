package discovery

import "time"

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout bounds a single sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSkipHostDiscovery treats every address as up (-Pn). Useful on networks
// that drop ICMP.
func WithSkipHostDiscovery(skip bool) Option {
	return func(s *Scanner) { s.skipHostDiscovery = skip }
}

// WithPrivileged tells nmap it may use raw sockets, which is what makes MAC
// addresses visible on the local segment.
func WithPrivileged(privileged bool) Option {
	return func(s *Scanner) { s.privileged = privileged }
}
