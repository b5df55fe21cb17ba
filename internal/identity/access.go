package identity

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// addrAllowed reports whether remoteAddr falls in ranges, a whitespace
// separated list of addresses, prefixes, and first-last ranges.
func addrAllowed(remoteAddr, ranges string) (bool, error) {
	addr, err := parseAddr(remoteAddr)
	if err != nil {
		return false, nil
	}
	for _, entry := range strings.Fields(ranges) {
		ok, err := rangeContains(entry, addr)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func rangeContains(entry string, addr netip.Addr) (bool, error) {
	if first, last, ok := strings.Cut(entry, "-"); ok {
		lo, err := netip.ParseAddr(strings.TrimSpace(first))
		if err != nil {
			return false, fmt.Errorf("allowed range %q: %w", entry, err)
		}
		hi, err := netip.ParseAddr(strings.TrimSpace(last))
		if err != nil {
			return false, fmt.Errorf("allowed range %q: %w", entry, err)
		}
		return lo.Compare(addr) <= 0 && addr.Compare(hi) <= 0, nil
	}
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return false, fmt.Errorf("allowed network %q: %w", entry, err)
		}
		return prefix.Masked().Contains(addr), nil
	}
	ip, err := netip.ParseAddr(entry)
	if err != nil {
		return false, fmt.Errorf("allowed address %q: %w", entry, err)
	}
	return ip == addr, nil
}

// parseAddr accepts a bare address or host:port.
func parseAddr(s string) (netip.Addr, error) {
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
